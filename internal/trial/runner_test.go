package trial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relabs-tech/reaction_trainer/internal/input"
	"github.com/relabs-tech/reaction_trainer/internal/reading"
	"github.com/relabs-tech/reaction_trainer/internal/sensors"
	"github.com/relabs-tech/reaction_trainer/internal/trigger"
)

// fakeSource yields canned readings, then either fails or stalls until
// the context is cancelled.
type fakeSource struct {
	readings []reading.Reading
	i        int
	err      error
}

func (s *fakeSource) Next(ctx context.Context) (reading.Reading, error) {
	if err := ctx.Err(); err != nil {
		return reading.Reading{}, err
	}
	if s.i >= len(s.readings) {
		if s.err != nil {
			return reading.Reading{}, s.err
		}
		<-ctx.Done()
		return reading.Reading{}, ctx.Err()
	}
	rd := s.readings[s.i]
	s.i++
	return rd, nil
}

func triggeringReadings(base time.Time) []reading.Reading {
	values := []float64{10, 10, 16, 16, 16}
	out := make([]reading.Reading, len(values))
	for i, v := range values {
		out[i] = reading.Reading{Value: v, Time: base.Add(time.Duration(i) * 10 * time.Millisecond)}
	}
	return out
}

func newRunner(src sensors.Source, events chan input.Event, maxWait time.Duration) *Runner {
	det := trigger.NewDetector(trigger.Threshold{Value: 15, Direction: trigger.Rising}, 2)
	return &Runner{
		Timer:    NewTimer(),
		Source:   src,
		Detector: det,
		Events:   events,
		MaxWait:  maxWait,
	}
}

func TestRunnerCompletesTrial(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rds := triggeringReadings(base)
	stimulus := rds[3].Time // debounce 2 confirms on the second crossing

	events := make(chan input.Event, 1)
	runner := newRunner(&fakeSource{readings: rds}, events, time.Second)

	go func() {
		time.Sleep(50 * time.Millisecond)
		events <- input.Event{Time: stimulus.Add(200 * time.Millisecond), Source: "test"}
	}()

	tr, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", tr.Status)
	}
	if !tr.StimulusTime.Equal(stimulus) {
		t.Fatalf("stimulus time = %v, want %v (debounce-satisfying reading)", tr.StimulusTime, stimulus)
	}
	if tr.Elapsed != 200*time.Millisecond {
		t.Fatalf("elapsed = %s, want 200ms", tr.Elapsed)
	}
}

func TestRunnerTimesOutWithoutReaction(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := make(chan input.Event, 1)
	runner := newRunner(&fakeSource{readings: triggeringReadings(base)}, events, 50*time.Millisecond)

	rec := NewRecorder()
	before := rec.Summary()

	tr, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Status != StatusAborted || tr.AbortReason != AbortTimeout {
		t.Fatalf("trial = %s/%s, want aborted/timeout", tr.Status, tr.AbortReason)
	}

	// A miss never enters the statistics.
	rec.RecordMiss(tr)
	after := rec.Summary()
	if after.Count != before.Count || after.Mean != before.Mean {
		t.Fatalf("mean changed by a timed-out trial: before %+v, after %+v", before, after)
	}
}

func TestRunnerAbortsOnCancellationWhileArmed(t *testing.T) {
	// No crossing: the source stalls after baseline readings, so the
	// runner is blocked waiting for a reading when the abort arrives.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rds := []reading.Reading{
		{Value: 10, Time: base},
		{Value: 10, Time: base.Add(10 * time.Millisecond)},
	}
	events := make(chan input.Event, 1)
	runner := newRunner(&fakeSource{readings: rds}, events, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	tr, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Status != StatusAborted || tr.AbortReason != AbortUser {
		t.Fatalf("trial = %s/%s, want aborted/user", tr.Status, tr.AbortReason)
	}
}

func TestRunnerAbortsOnCancellationWhileTriggered(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := make(chan input.Event, 1)
	runner := newRunner(&fakeSource{readings: triggeringReadings(base)}, events, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	tr, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Status != StatusAborted || tr.AbortReason != AbortUser {
		t.Fatalf("trial = %s/%s, want aborted/user", tr.Status, tr.AbortReason)
	}
}

func TestRunnerPropagatesConnectionLoss(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rds := []reading.Reading{{Value: 10, Time: base}}
	events := make(chan input.Event, 1)
	runner := newRunner(&fakeSource{readings: rds, err: sensors.ErrConnectionLost}, events, time.Second)

	tr, err := runner.Run(context.Background())
	if !errors.Is(err, sensors.ErrConnectionLost) {
		t.Fatalf("error = %v, want ErrConnectionLost", err)
	}
	if tr.Status != StatusAborted || tr.AbortReason != AbortConnection {
		t.Fatalf("trial = %s/%s, want aborted/connection", tr.Status, tr.AbortReason)
	}
}

func TestRunnerIgnoresFalseStart(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := make(chan input.Event, 4)
	// A press queued before the trial arms must not complete it.
	events <- input.Event{Time: base.Add(-time.Second), Source: "test"}

	runner := newRunner(&fakeSource{readings: triggeringReadings(base)}, events, 50*time.Millisecond)

	tr, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Status != StatusAborted || tr.AbortReason != AbortTimeout {
		t.Fatalf("trial = %s/%s, want aborted/timeout (false start swallowed)", tr.Status, tr.AbortReason)
	}
}

func TestRunnerRejectsSecondTrialInFlight(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := make(chan input.Event, 1)
	runner := newRunner(&fakeSource{readings: triggeringReadings(base)}, events, time.Second)

	if err := runner.Timer.Arm(); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if _, err := runner.Run(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("Run with trial in flight = %v, want ErrNotIdle", err)
	}
}
