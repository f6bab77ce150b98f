package trial

import (
	"testing"
	"time"
)

func completedTrial(elapsed time.Duration) Trial {
	stimulus := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return Trial{
		StimulusTime: stimulus,
		ReactionTime: stimulus.Add(elapsed),
		Elapsed:      elapsed,
		Status:       StatusCompleted,
	}
}

func TestRecorderSummary(t *testing.T) {
	rec := NewRecorder()
	for _, ms := range []int{180, 220, 200} {
		if err := rec.Record(completedTrial(time.Duration(ms) * time.Millisecond)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	s := rec.Summary()
	if s.Count != 3 {
		t.Fatalf("count = %d, want 3", s.Count)
	}
	if s.Min != 180*time.Millisecond {
		t.Fatalf("min = %s, want 180ms", s.Min)
	}
	if s.Max != 220*time.Millisecond {
		t.Fatalf("max = %s, want 220ms", s.Max)
	}
	if s.Mean != 200*time.Millisecond {
		t.Fatalf("mean = %s, want 200ms", s.Mean)
	}
}

func TestRecorderRejectsNonCompleted(t *testing.T) {
	rec := NewRecorder()
	if err := rec.Record(Trial{Status: StatusAborted}); err == nil {
		t.Fatal("recording an aborted trial should fail")
	}
	if err := rec.Record(Trial{Status: StatusArmed}); err == nil {
		t.Fatal("recording an in-flight trial should fail")
	}
	if got := rec.Summary().Count; got != 0 {
		t.Fatalf("count = %d, want 0", got)
	}
}

func TestRecorderMissesDoNotTouchStatistics(t *testing.T) {
	rec := NewRecorder()
	if err := rec.Record(completedTrial(200 * time.Millisecond)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	before := rec.Summary()

	rec.RecordMiss(Trial{Status: StatusAborted, AbortReason: AbortTimeout})

	after := rec.Summary()
	if after.Misses != 1 {
		t.Fatalf("misses = %d, want 1", after.Misses)
	}
	if after.Count != before.Count || after.Mean != before.Mean {
		t.Fatalf("statistics changed by a miss: before %+v, after %+v", before, after)
	}
}

func TestRecorderEmptySummary(t *testing.T) {
	s := NewRecorder().Summary()
	if s.Count != 0 || s.Min != 0 || s.Max != 0 || s.Mean != 0 {
		t.Fatalf("empty summary = %+v, want zeros", s)
	}
}

func TestRecorderTrialsReturnsCopy(t *testing.T) {
	rec := NewRecorder()
	if err := rec.Record(completedTrial(150 * time.Millisecond)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	trials := rec.Trials()
	trials[0].Elapsed = time.Hour

	if got := rec.Trials()[0].Elapsed; got != 150*time.Millisecond {
		t.Fatalf("recorder state mutated through copy: %s", got)
	}
}
