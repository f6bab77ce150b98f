// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"math"
	"time"

	"github.com/relabs-tech/reaction_trainer/internal/reading"
)

type mockSource struct {
	start    time.Time
	interval time.Duration
}

// NewMockSource creates a sensor source that needs no hardware. It
// idles around 1 N with a little drift and simulates a firm press for
// one second out of every five, so the whole trial loop can be
// exercised on a dev machine.
func NewMockSource(interval time.Duration) Source {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &mockSource{start: time.Now(), interval: interval}
}

func (m *mockSource) Next(ctx context.Context) (reading.Reading, error) {
	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return reading.Reading{}, ctx.Err()
	case <-timer.C:
	}

	elapsed := time.Since(m.start).Seconds()
	value := 1.0 + 0.3*math.Sin(elapsed*2)
	if math.Mod(elapsed, 5) > 4 {
		value += 8 // simulated press
	}

	return reading.Reading{
		Value:   value,
		Touched: value >= 5,
		Time:    time.Now(),
		Source:  ProtocolMock,
	}, nil
}
