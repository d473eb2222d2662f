// Package worker writes finished session results to the ranking store.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/mangacatch/internal/adapters/mq/queue"
	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/pkg/logger"
	"github.com/okian/mangacatch/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultAttempts     = 3
	defaultBackoff      = 200 * time.Millisecond
	drainTimeout        = 5 * time.Second
	writeAttemptTimeout = 2 * time.Second
)

// Inserter persists one ranking entry.
type Inserter interface {
	Insert(ctx context.Context, day string, entry model.RankingEntry) ([]model.RankingEntry, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker drains ranking jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the worker after writing the jobs already queued.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker with bounded retries per job.
type InMemoryWorker struct {
	queue    Queue
	store    Inserter
	name     string
	attempts int
	backoff  time.Duration
	recorded func(day string, list []model.RankingEntry)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, store Inserter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		store:    store,
		name:     "recorder",
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("recorder"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "recorder" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(jobs)
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "ranking write abandoned", logger.String("day", j.Day), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// drain writes whatever is already queued, then returns.
func (w *InMemoryWorker) drain(jobs <-chan queue.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "ranking write abandoned during shutdown", logger.String("day", j.Day), logger.Error(err))
			}
		default:
			return
		}
	}
}

// process writes one job, retrying with linear backoff.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error {
	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		var list []model.RankingEntry
		list, err = w.insert(ctx, j)
		if err == nil {
			w.logger.Debug(ctx, "ranking recorded",
				logger.String("day", j.Day),
				logger.String("session", j.Entry.SessionID),
				logger.Int("score", j.Entry.Score),
				logger.Int("entries", len(list)),
			)
			if w.recorded != nil {
				w.recorded(j.Day, list)
			}
			return nil
		}
		w.logger.Warn(ctx, "ranking write failed",
			logger.String("day", j.Day),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
		if attempt == w.attempts {
			break
		}
		select {
		case <-ctx.Done():
			metrics.RecordRecorderDropped("cancelled")
			return fmt.Errorf("%w: %w", queue.ErrStopped, ctx.Err())
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}
	metrics.RecordRecorderDropped("write_failed")
	return fmt.Errorf("after %d attempts: %w", w.attempts, err)
}

func (w *InMemoryWorker) insert(ctx context.Context, j queue.Job) ([]model.RankingEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, writeAttemptTimeout)
	defer cancel()
	return w.store.Insert(ctx, j.Day, j.Entry)
}
