package input

import "time"

// Event is one discrete user reaction (a key press or a button edge),
// stamped as close to the physical action as the source allows.
type Event struct {
	Time   time.Time `json:"time"`
	Source string    `json:"source"` // "stdin" or "gpio"
}

// Source supplies reaction events. The core is agnostic to the
// physical mechanism; tests feed a plain channel.
type Source interface {
	Events() <-chan Event
	Close() error
}
