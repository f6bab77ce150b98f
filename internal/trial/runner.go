package trial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/reaction_trainer/internal/input"
	"github.com/relabs-tech/reaction_trainer/internal/reading"
	"github.com/relabs-tech/reaction_trainer/internal/sensors"
	"github.com/relabs-tech/reaction_trainer/internal/trigger"
)

const defaultMaxWait = 5 * time.Second

// Runner drives one arm-trigger-react cycle over a sensor source, a
// trigger detector and a reaction input. All consumption is serialized
// here: one reading or one input event at a time, so trials stay
// strictly sequential.
type Runner struct {
	Timer    *Timer
	Source   sensors.Source
	Detector *trigger.Detector
	Events   <-chan input.Event
	MaxWait  time.Duration // reaction wait budget; defaults to 5s

	// OnReading, if set, observes every reading processed while armed.
	// Used to feed live display sinks; it must not block.
	OnReading func(reading.Reading)
}

// Run executes a single trial and returns it in a terminal state.
//
// Aborts are expected outcomes and return a nil error: cancellation of
// ctx aborts with AbortUser, an expired reaction wait aborts with
// AbortTimeout. A sensor failure aborts the trial with AbortConnection
// and returns the underlying error, which ends the session.
func (r *Runner) Run(ctx context.Context) (Trial, error) {
	if err := r.Timer.Arm(); err != nil {
		return Trial{}, err
	}
	r.Detector.Arm()

	// Discard reactions queued before arming; a press from the previous
	// trial must not complete this one.
	for {
		select {
		case <-r.Events:
			continue
		default:
		}
		break
	}

	stim, trial, err := r.awaitStimulus(ctx)
	if err != nil || trial.Status == StatusAborted {
		return trial, err
	}

	return r.awaitReaction(ctx, stim)
}

// awaitStimulus streams readings through the detector until a crossing
// is confirmed.
func (r *Runner) awaitStimulus(ctx context.Context) (trigger.Stimulus, Trial, error) {
	for {
		rd, err := r.Source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				trial, _ := r.Timer.Abort(AbortUser)
				return trigger.Stimulus{}, trial, nil
			}
			trial, _ := r.Timer.Abort(AbortConnection)
			return trigger.Stimulus{}, trial, fmt.Errorf("trial: sensor stream: %w", err)
		}

		if r.OnReading != nil {
			r.OnReading(rd)
		}

		// A reaction before the stimulus is a false start; swallow it so
		// it cannot complete the trial later.
		select {
		case <-r.Events:
		default:
		}

		stim, ok := r.Detector.Feed(rd)
		if !ok {
			continue
		}

		if err := r.Timer.Trigger(stim.Time); err != nil {
			trial, _ := r.Timer.Abort(AbortUser)
			return trigger.Stimulus{}, trial, err
		}
		return stim, Trial{}, nil
	}
}

// awaitReaction blocks until the user reacts, the wait budget expires,
// or the session is cancelled.
func (r *Runner) awaitReaction(ctx context.Context, stim trigger.Stimulus) (Trial, error) {
	maxWait := r.MaxWait
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	wait := time.NewTimer(maxWait)
	defer wait.Stop()

	for {
		select {
		case <-ctx.Done():
			trial, _ := r.Timer.Abort(AbortUser)
			return trial, nil
		case <-wait.C:
			trial, _ := r.Timer.Abort(AbortTimeout)
			return trial, nil
		case ev := <-r.Events:
			if ev.Time.Before(stim.Time) {
				continue // stale event from before the stimulus
			}
			return r.Timer.Complete(ev.Time)
		}
	}
}
