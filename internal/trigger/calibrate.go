package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/reaction_trainer/internal/sensors"
)

// ErrInsufficientSamples indicates calibration ran out of time before
// collecting the minimum baseline window. Recoverable: recalibrate.
var ErrInsufficientSamples = errors.New("trigger: insufficient calibration samples")

// CalibrateOptions control baseline sampling.
type CalibrateOptions struct {
	Samples    int           // window size to aim for
	MinSamples int           // fewer than this before Timeout fails calibration
	Margin     float64       // offset applied on the triggered side of the baseline mean
	Direction  Direction     // rising: mean+margin, falling: mean-margin
	Timeout    time.Duration // budget for collecting the window
}

// Calibrate observes a window of baseline readings while the stimulus
// is known to be absent and derives the trigger threshold from the
// observed mean. It never sets a threshold from a partial window
// smaller than MinSamples.
func Calibrate(ctx context.Context, src sensors.Source, opts CalibrateOptions) (Threshold, error) {
	if opts.Samples <= 0 {
		opts.Samples = 30
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var sum float64
	var count int
	for count < opts.Samples {
		rd, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return Threshold{}, fmt.Errorf("trigger: calibration read: %w", err)
		}
		sum += rd.Value
		count++
	}

	if count < opts.MinSamples {
		return Threshold{}, fmt.Errorf("%w: got %d, need %d", ErrInsufficientSamples, count, opts.MinSamples)
	}

	mean := sum / float64(count)
	value := mean + opts.Margin
	if opts.Direction == Falling {
		value = mean - opts.Margin
	}

	return Threshold{Value: value, Direction: opts.Direction}, nil
}
