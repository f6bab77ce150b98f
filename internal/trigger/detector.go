package trigger

import (
	"time"

	"github.com/relabs-tech/reaction_trainer/internal/reading"
)

// Stimulus is one confirmed threshold crossing. Time is the timestamp
// of the reading that satisfied the debounce count, not the first
// crossing sample and not the time the orchestrator observed the event.
type Stimulus struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Detector turns the raw reading stream into discrete stimulus events.
// A crossing must persist for the debounce count of consecutive
// readings before it is confirmed; confirmation therefore lags the
// first crossing sample by (debounce-1) sample intervals, a constant
// offset. After emitting, the detector stays in cooldown until Arm is
// called again, so a trial in progress can never be re-triggered.
//
// Detector is not safe for concurrent use; readings are fed one at a
// time by the trial loop.
type Detector struct {
	threshold Threshold
	debounce  int
	streak    int
	cooldown  bool
}

// NewDetector creates a detector in cooldown; call Arm before feeding.
func NewDetector(threshold Threshold, debounce int) *Detector {
	if debounce < 1 {
		debounce = 1
	}
	return &Detector{threshold: threshold, debounce: debounce, cooldown: true}
}

// Threshold returns the configured threshold.
func (d *Detector) Threshold() Threshold { return d.threshold }

// Arm clears the cooldown and the crossing streak so the next
// confirmed crossing emits a fresh stimulus.
func (d *Detector) Arm() {
	d.streak = 0
	d.cooldown = false
}

// Feed evaluates one reading. It returns a stimulus and true exactly
// once per confirmed crossing; during cooldown all readings are
// ignored.
func (d *Detector) Feed(rd reading.Reading) (Stimulus, bool) {
	if d.cooldown {
		return Stimulus{}, false
	}

	if !d.threshold.Crossed(rd.Value) {
		d.streak = 0
		return Stimulus{}, false
	}

	d.streak++
	if d.streak < d.debounce {
		return Stimulus{}, false
	}

	d.cooldown = true
	return Stimulus{Time: rd.Time, Value: rd.Value}, true
}
