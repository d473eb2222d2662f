package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/pkg/metrics"
)

// MemoryStore keeps the rankings in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	days   map[string][]model.RankingEntry
	max    int
	closed bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := defaults(opts)
	return &MemoryStore{days: make(map[string][]model.RankingEntry), max: s.maxEntries}
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, day string, entry model.RankingEntry) ([]model.RankingEntry, error) {
	if err := checkDay(day); err != nil {
		return nil, &PersistenceError{Op: "insert", Day: day, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &PersistenceError{Op: "insert", Day: day, Err: err}
	}
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, &PersistenceError{Op: "insert", Day: day, Err: ErrClosed}
	}
	list := Merge(s.days[day], entry, s.max)
	s.days[day] = list

	metrics.RecordRankingWrite(float64(time.Since(start).Microseconds()) / 1000)
	return slices.Clone(list), nil
}

// Day implements Store.
func (s *MemoryStore) Day(_ context.Context, day string) ([]model.RankingEntry, error) {
	if err := checkDay(day); err != nil {
		return nil, &PersistenceError{Op: "read", Day: day, Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &PersistenceError{Op: "read", Day: day, Err: ErrClosed}
	}
	return slices.Clone(s.days[day]), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
