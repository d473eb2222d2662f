// Package sensor adapts tracking hardware and feeds into frames for the control tick.
//
// Every source runs in its own goroutine and only ever publishes to a Sink.
// The control tick reads the latest frame from a FrameBuffer without blocking.
package sensor

import (
	"context"

	"github.com/okian/mangacatch/internal/domain/model"
)

// Sink receives frames from a source.
type Sink interface {
	Publish(f model.Frame)
}

// Source produces frames until ctx is canceled.
// Run returns nil when ctx ends or the source is exhausted, and an error
// when the underlying device fails and a restart may help.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}
