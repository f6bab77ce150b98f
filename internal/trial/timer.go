package trial

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotIdle is returned by Arm while a trial is still in flight: at
// most one trial is non-terminal at any time.
var ErrNotIdle = errors.New("trial: previous trial still in flight")

// Timer owns the per-trial state machine:
//
//	idle -> armed -> triggered -> completed
//	                armed/triggered -> aborted
//
// Terminal trials are handed out by value; the timer itself returns to
// idle on the next Arm. Timer is driven from a single goroutine.
type Timer struct {
	trial Trial
}

// NewTimer returns a timer in the idle state.
func NewTimer() *Timer {
	return &Timer{}
}

// Status returns the state of the current trial.
func (t *Timer) Status() Status { return t.trial.Status }

// Arm starts a new trial. Valid from idle or after the previous trial
// reached a terminal state.
func (t *Timer) Arm() error {
	if t.trial.Status != StatusIdle && !t.trial.Status.Terminal() {
		return ErrNotIdle
	}
	t.trial = Trial{Status: StatusArmed}
	return nil
}

// Trigger records the stimulus. Valid only while armed; the timestamp
// is the one carried by the stimulus event, not the observation time.
func (t *Timer) Trigger(at time.Time) error {
	if t.trial.Status != StatusArmed {
		return fmt.Errorf("trial: trigger in state %s", t.trial.Status)
	}
	t.trial.Status = StatusTriggered
	t.trial.StimulusTime = at
	return nil
}

// Complete records the reaction and finishes the trial. Valid only
// while triggered; a reaction timestamp before the stimulus is
// rejected.
func (t *Timer) Complete(at time.Time) (Trial, error) {
	if t.trial.Status != StatusTriggered {
		return Trial{}, fmt.Errorf("trial: complete in state %s", t.trial.Status)
	}
	if at.Before(t.trial.StimulusTime) {
		return Trial{}, fmt.Errorf("trial: reaction at %s precedes stimulus at %s",
			at.Format(time.RFC3339Nano), t.trial.StimulusTime.Format(time.RFC3339Nano))
	}
	t.trial.Status = StatusCompleted
	t.trial.ReactionTime = at
	t.trial.Elapsed = at.Sub(t.trial.StimulusTime)
	return t.trial, nil
}

// Abort ends the current trial without a reaction. Valid from any
// non-terminal, non-idle state.
func (t *Timer) Abort(reason AbortReason) (Trial, error) {
	if t.trial.Status != StatusArmed && t.trial.Status != StatusTriggered {
		return Trial{}, fmt.Errorf("trial: abort in state %s", t.trial.Status)
	}
	t.trial.Status = StatusAborted
	t.trial.AbortReason = reason
	return t.trial, nil
}
