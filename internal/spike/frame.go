// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package spike

import (
	"encoding/json"
	"errors"
	"fmt"
)

// The Spike Prime hub program streams CR-terminated JSON frames of the
// form {"m":0,"p":[[63,[force,touched]]]} where 63 is the force sensor
// port and the inner pair is the force in Newtons (0-10) plus a 0/1
// contact flag.
const (
	// SensorFrame is the message type carrying sensor values.
	SensorFrame = 0

	// ForceSensorPort identifies the force sensor entry inside a frame.
	ForceSensorPort = 63
)

// ErrNoSample indicates a well-formed frame that carries no force
// sensor value (status frames, other ports, etc).
var ErrNoSample = errors.New("spike: frame carries no force sample")

// Sample is one decoded force sensor measurement.
type Sample struct {
	Value   float64 // Newtons, 0-10
	Touched bool
}

type frame struct {
	M int               `json:"m"`
	P []json.RawMessage `json:"p"`
}

// ParseFrame decodes one CR-terminated line from the hub and extracts
// the force sensor sample, if the frame has one.
func ParseFrame(line []byte) (Sample, error) {
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		return Sample{}, fmt.Errorf("spike: malformed frame: %w", err)
	}
	if f.M != SensorFrame {
		return Sample{}, ErrNoSample
	}

	for _, raw := range f.P {
		var entry []json.RawMessage
		if err := json.Unmarshal(raw, &entry); err != nil || len(entry) != 2 {
			continue
		}

		var port int
		if err := json.Unmarshal(entry[0], &port); err != nil || port != ForceSensorPort {
			continue
		}

		var values []float64
		if err := json.Unmarshal(entry[1], &values); err != nil || len(values) < 2 {
			return Sample{}, fmt.Errorf("spike: bad force sensor payload %q", entry[1])
		}

		return Sample{Value: values[0], Touched: values[1] == 1}, nil
	}

	return Sample{}, ErrNoSample
}
