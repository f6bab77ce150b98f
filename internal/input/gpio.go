// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package input

import (
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

type gpioSource struct {
	pin    gpio.PinIO
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewGPIOButton delivers an event on every falling edge of the named
// pin, wired as a pull-up push button on the Pi. Pin names follow
// gpioreg, e.g. "18" or "GPIO18".
func NewGPIOButton(pinName string) (Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("input: periph host init: %w", err)
	}

	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("input: button pin %q not found", pinName)
	}

	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("input: configure pin %q: %w", pinName, err)
	}

	s := &gpioSource{
		pin:    pin,
		events: make(chan Event, 4),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

func (s *gpioSource) Events() <-chan Event { return s.events }

func (s *gpioSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pin.Halt()
	})
	return err
}

func (s *gpioSource) loop() {
	for {
		if !s.pin.WaitForEdge(-1) {
			select {
			case <-s.done:
			default:
				log.Printf("input: edge wait ended on %s", s.pin)
			}
			return
		}
		at := time.Now()

		select {
		case <-s.done:
			return
		case s.events <- Event{Time: at, Source: "gpio"}:
		default:
		}
	}
}
