package sensors

import (
	"context"
	"errors"

	"github.com/relabs-tech/reaction_trainer/internal/reading"
)

// ErrConnectionLost indicates the device disconnected mid-stream. The
// session must end: resuming after a reconnect would corrupt timing
// measurements, so callers never retry through this error.
var ErrConnectionLost = errors.New("sensors: connection lost")

// ErrClosed is returned by Next after a deliberate Close.
var ErrClosed = errors.New("sensors: channel closed")

// Source is anything that can provide sensor readings over time: the
// serial channel, the mock source, or a test fake. Next blocks until a
// sample arrives or the context is cancelled.
type Source interface {
	Next(ctx context.Context) (reading.Reading, error)
}
