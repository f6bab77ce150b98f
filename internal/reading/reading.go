package reading

import "time"

// Reading is a single timestamped scalar sample from the sensor,
// suitable for JSON and MQTT.
type Reading struct {
	Value   float64   `json:"value"`             // sensor units (Newtons for the Spike force sensor)
	Touched bool      `json:"touched,omitempty"` // contact flag, only meaningful for the force sensor
	Time    time.Time `json:"time"`              // arrival time of the sample
	Source  string    `json:"source"`            // "spike", "nmea" or "mock"
}
