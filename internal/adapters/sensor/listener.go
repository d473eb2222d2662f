package sensor

import (
	"context"
	"sync"
	"time"

	"github.com/okian/mangacatch/pkg/logger"
	"github.com/okian/mangacatch/pkg/metrics"
)

// Restart backoff bounds.
const (
	DefaultMinBackoff = 250 * time.Millisecond
	DefaultMaxBackoff = 5 * time.Second
)

// Listener keeps a source running, restarting it with exponential backoff
// when it fails.
type Listener struct {
	source     Source
	sink       Sink
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     logger.Logger

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithBackoff sets the restart backoff bounds.
func WithBackoff(minBackoff, maxBackoff time.Duration) ListenerOption {
	return func(l *Listener) {
		l.minBackoff = minBackoff
		l.maxBackoff = maxBackoff
	}
}

// NewListener creates a Listener feeding sink from source.
func NewListener(source Source, sink Sink, opts ...ListenerOption) *Listener {
	l := &Listener{
		source:     source,
		sink:       sink,
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
		logger:     logger.Get().Named("sensor"),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run blocks until ctx is canceled, Shutdown is called, or the source
// finishes cleanly.
func (l *Listener) Run(ctx context.Context) {
	defer close(l.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	backoff := l.minBackoff
	for {
		l.logger.Info(ctx, "sensor source starting", logger.String("source", l.source.Name()))
		err := l.source.Run(ctx, l.sink)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			l.logger.Info(ctx, "sensor source finished", logger.String("source", l.source.Name()))
			return
		}

		metrics.RecordSensorRestart(l.source.Name())
		l.logger.Warn(ctx, "sensor source failed, restarting",
			logger.String("source", l.source.Name()),
			logger.Duration("backoff", backoff),
			logger.Error(err))

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff = min(backoff*2, l.maxBackoff)
	}
}

// Shutdown stops the source and waits for Run to return or ctx to expire.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.shutdownOnce.Do(func() { close(l.shutdown) })
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (l *Listener) Done() <-chan struct{} { return l.done }
