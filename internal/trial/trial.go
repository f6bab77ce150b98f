package trial

import (
	"fmt"
	"time"
)

// Status is the tagged state of one trial. Representing the lifecycle
// as a single enum instead of boolean flags keeps illegal combinations
// (e.g. two concurrent triggers) unrepresentable.
type Status int

const (
	StatusIdle Status = iota
	StatusArmed
	StatusTriggered
	StatusCompleted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusArmed:
		return "armed"
	case StatusTriggered:
		return "triggered"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// AbortReason says why a trial ended without a reaction. Aborts are
// expected control flow, not errors; only a lost connection also ends
// the session.
type AbortReason int

const (
	AbortNone AbortReason = iota
	AbortTimeout
	AbortUser
	AbortConnection
)

func (r AbortReason) String() string {
	switch r {
	case AbortNone:
		return "none"
	case AbortTimeout:
		return "timeout"
	case AbortUser:
		return "user"
	case AbortConnection:
		return "connection"
	default:
		return fmt.Sprintf("AbortReason(%d)", int(r))
	}
}

// Trial is one arm-trigger-react-record cycle. StimulusTime is the
// timestamp of the confirmed crossing; ReactionTime is zero until the
// user reacts. A trial is immutable once terminal.
type Trial struct {
	StimulusTime time.Time     `json:"stimulus_time"`
	ReactionTime time.Time     `json:"reaction_time,omitzero"`
	Elapsed      time.Duration `json:"elapsed_ns"`
	Status       Status        `json:"status"`
	AbortReason  AbortReason   `json:"abort_reason,omitempty"`
}
