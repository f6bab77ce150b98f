package trial

import (
	"fmt"
	"sync"
	"time"
)

// Summary holds the aggregate statistics for a session, computed on
// demand over the completed trials.
type Summary struct {
	Count  int           `json:"count"`
	Misses int           `json:"misses"`
	Min    time.Duration `json:"min_ns"`
	Max    time.Duration `json:"max_ns"`
	Mean   time.Duration `json:"mean_ns"`
}

// Recorder accumulates the trials of one session. Completed trials are
// append-only and feed the statistics; aborted trials are counted as
// misses and never enter the elapsed-time aggregates.
type Recorder struct {
	mu        sync.Mutex
	completed []Trial
	misses    int
}

// NewRecorder creates an empty session recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a completed trial.
func (r *Recorder) Record(t Trial) error {
	if t.Status != StatusCompleted {
		return fmt.Errorf("trial: cannot record trial in state %s", t.Status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, t)
	return nil
}

// RecordMiss logs an aborted trial without touching the statistics.
func (r *Recorder) RecordMiss(t Trial) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses++
}

// Trials returns a copy of the completed trials in arrival order.
func (r *Recorder) Trials() []Trial {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Trial, len(r.completed))
	copy(out, r.completed)
	return out
}

// Summary computes the aggregate statistics over the current sequence.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{Count: len(r.completed), Misses: r.misses}
	if s.Count == 0 {
		return s
	}

	var total time.Duration
	s.Min = r.completed[0].Elapsed
	for _, t := range r.completed {
		if t.Elapsed < s.Min {
			s.Min = t.Elapsed
		}
		if t.Elapsed > s.Max {
			s.Max = t.Elapsed
		}
		total += t.Elapsed
	}
	s.Mean = total / time.Duration(s.Count)
	return s
}
