// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/reaction_trainer/internal/reading"
	"github.com/relabs-tech/reaction_trainer/internal/spike"
)

// Supported wire protocols.
const (
	ProtocolSpike = "spike" // CR-terminated JSON frames from the Spike Prime hub
	ProtocolNMEA  = "nmea"  // NMEA 0183 XDR transducer sentences
	ProtocolMock  = "mock"  // no hardware, synthetic readings
)

// Options configures a serial sensor channel.
type Options struct {
	Port     string
	BaudRate uint
	Protocol string // ProtocolSpike or ProtocolNMEA
}

// Channel is an exclusively-owned live stream of readings from one
// serial device. A single reader goroutine owns the port and feeds a
// bounded buffer; when the consumer falls behind the oldest buffered
// reading is dropped so the stream stays fresh.
type Channel struct {
	port     io.ReadWriteCloser
	readings chan reading.Reading
	done     chan struct{}
	once     sync.Once
	err      error // set by the reader goroutine before readings is closed
}

const channelBuffer = 64

// Open opens the serial port and starts streaming readings. The
// returned Channel is non-restartable: after an error or Close, open a
// new one.
func Open(opts Options) (*Channel, error) {
	var delim byte
	var parse func([]byte) (reading.Reading, bool)

	switch opts.Protocol {
	case ProtocolSpike:
		delim = '\r'
		parse = parseSpikeLine
	case ProtocolNMEA:
		delim = '\n'
		parse = parseNMEALine
	default:
		return nil, fmt.Errorf("sensors: unknown protocol %q", opts.Protocol)
	}

	serialOpts := serial.OpenOptions{
		PortName:        opts.Port,
		BaudRate:        opts.BaudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("sensors: open %s: %w", opts.Port, err)
	}

	c := &Channel{
		port:     port,
		readings: make(chan reading.Reading, channelBuffer),
		done:     make(chan struct{}),
	}
	go c.loop(delim, parse)
	return c, nil
}

// Next returns the next reading, blocking until one arrives, the
// context is cancelled, or the stream ends. A device disconnect
// surfaces as ErrConnectionLost.
func (c *Channel) Next(ctx context.Context) (reading.Reading, error) {
	select {
	case <-ctx.Done():
		return reading.Reading{}, ctx.Err()
	case rd, ok := <-c.readings:
		if !ok {
			if c.err != nil {
				return reading.Reading{}, c.err
			}
			return reading.Reading{}, ErrClosed
		}
		return rd, nil
	}
}

// Close releases the port. Safe to call more than once.
func (c *Channel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.port.Close()
	})
	return err
}

func (c *Channel) loop(delim byte, parse func([]byte) (reading.Reading, bool)) {
	defer close(c.readings)

	r := bufio.NewReader(c.port)
	for {
		line, err := r.ReadBytes(delim)
		if err != nil {
			select {
			case <-c.done:
				// deliberate Close, not a disconnect
			default:
				c.err = fmt.Errorf("sensors: serial read: %v: %w", err, ErrConnectionLost)
			}
			return
		}

		rd, ok := parse(line)
		if !ok {
			continue
		}
		rd.Time = time.Now()

		select {
		case c.readings <- rd:
		case <-c.done:
			return
		default:
			// Buffer full: drop the oldest reading, then try once more.
			select {
			case <-c.readings:
			default:
			}
			select {
			case c.readings <- rd:
			case <-c.done:
				return
			default:
			}
		}
	}
}

func parseSpikeLine(line []byte) (reading.Reading, bool) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return reading.Reading{}, false
	}

	// The hub interleaves status frames with sensor frames and the
	// stream can carry partial lines right after connect; skip anything
	// that does not decode to a force sample.
	sample, err := spike.ParseFrame([]byte(trimmed))
	if err != nil {
		return reading.Reading{}, false
	}

	return reading.Reading{
		Value:   sample.Value,
		Touched: sample.Touched,
		Source:  ProtocolSpike,
	}, true
}

func parseNMEALine(line []byte) (reading.Reading, bool) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" || !strings.HasPrefix(trimmed, "$") {
		return reading.Reading{}, false
	}

	sentence, err := nmea.Parse(trimmed)
	if err != nil {
		// noisy transducers produce partial sentences; skip them
		return reading.Reading{}, false
	}

	if sentence.DataType() != nmea.TypeXDR {
		return reading.Reading{}, false
	}

	m := sentence.(nmea.XDR)
	if len(m.Measurements) == 0 {
		return reading.Reading{}, false
	}

	return reading.Reading{
		Value:  m.Measurements[0].Value,
		Source: ProtocolNMEA,
	}, true
}
