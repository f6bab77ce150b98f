package trigger

import "fmt"

// Direction selects which side of the threshold counts as triggered.
type Direction int

const (
	// Rising triggers when a reading climbs to or above the threshold
	// (force sensor pressed).
	Rising Direction = iota
	// Falling triggers when a reading drops to or below the threshold
	// (light sensor going dark on lights-out).
	Falling
)

func (d Direction) String() string {
	switch d {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection converts a config value into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "rising":
		return Rising, nil
	case "falling":
		return Falling, nil
	default:
		return 0, fmt.Errorf("trigger: unknown direction %q (want rising or falling)", s)
	}
}

// Threshold is the scalar boundary used to detect the stimulus. It is
// set once per session, by calibration or explicit override, and never
// changed mid-trial.
type Threshold struct {
	Value     float64   `json:"value"`
	Direction Direction `json:"direction"`
}

// Crossed reports whether a reading value is on the triggered side of
// the boundary.
func (t Threshold) Crossed(value float64) bool {
	if t.Direction == Rising {
		return value >= t.Value
	}
	return value <= t.Value
}
