package input

import (
	"bufio"
	"log"
	"os"
	"sync"
	"time"
)

type stdinSource struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewStdinSource delivers an event for every line on standard input.
// The timestamp is taken the moment the read returns, before the event
// is queued, so consumer scheduling does not inflate reaction times.
func NewStdinSource() Source {
	s := &stdinSource{
		events: make(chan Event, 4),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *stdinSource) Events() <-chan Event { return s.events }

// Close stops delivering events. The reader goroutine itself only
// exits on the next stdin line: there is no portable way to interrupt
// a blocked os.Stdin read.
func (s *stdinSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *stdinSource) loop() {
	reader := bufio.NewReader(os.Stdin)
	for {
		_, err := reader.ReadString('\n')
		at := time.Now()
		if err != nil {
			log.Printf("input: stdin closed: %v", err)
			return
		}

		select {
		case <-s.done:
			return
		case s.events <- Event{Time: at, Source: "stdin"}:
		default:
			// consumer is not waiting and the queue is full; drop
		}
	}
}
