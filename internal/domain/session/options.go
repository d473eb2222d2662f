package session

import (
	"math/rand/v2"
	"time"
)

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithClock sets the wall clock used for result timestamps and day keys.
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithRand sets the random source for the empty-session favorite.
func WithRand(rng *rand.Rand) Option {
	return func(m *Machine) {
		if rng != nil {
			m.rng = rng
		}
	}
}
