// Package worker writes finished session results to the ranking store.
package worker

import (
	"time"

	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRetry sets the attempts per job and the base backoff between them.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(w *InMemoryWorker) {
		if attempts > 0 {
			w.attempts = attempts
		}
		if backoff >= 0 {
			w.backoff = backoff
		}
	}
}

// WithOnRecorded registers a callback receiving the day list after each write.
func WithOnRecorded(fn func(day string, list []model.RankingEntry)) Option {
	return func(w *InMemoryWorker) {
		w.recorded = fn
	}
}
