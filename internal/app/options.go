package service

import (
	"time"

	"github.com/okian/mangacatch/internal/adapters/repository"
	"github.com/okian/mangacatch/internal/adapters/sensor"
	"github.com/okian/mangacatch/internal/domain/catalog"
	"github.com/okian/mangacatch/internal/domain/falling"
	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/internal/domain/slots"
	"github.com/okian/mangacatch/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCatalog sets the item catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// WithStore sets the ranking store. The engine closes it on Stop.
func WithStore(s repository.Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

// WithSource sets the sensor source run by the engine's listener.
func WithSource(s sensor.Source) Option {
	return func(e *Engine) { e.source = s }
}

// WithTickRate sets the control tick rate in Hz.
func WithTickRate(hz int) Option {
	return func(e *Engine) {
		if hz > 0 {
			e.period = time.Second / time.Duration(hz)
		}
	}
}

// WithManualTick disables the internal ticker; the caller drives Step.
func WithManualTick() Option {
	return func(e *Engine) { e.manual = true }
}

// WithScreen sets the play-field size in pixels.
func WithScreen(width, height float64) Option {
	return func(e *Engine) {
		if width > 0 && height > 0 {
			e.width, e.height = width, height
		}
	}
}

// WithSpeedMultipliers sets the speed factor per confirmed participant count.
func WithSpeedMultipliers(m []float64) Option {
	return func(e *Engine) {
		if len(m) > 0 {
			e.multipliers = append([]float64(nil), m...)
		}
	}
}

// WithPhaseDurations overrides phase durations.
func WithPhaseDurations(d map[model.Phase]time.Duration) Option {
	return func(e *Engine) { e.durations = d }
}

// WithHoldTime sets the debounce hold for sources that do not confirm counts.
func WithHoldTime(d time.Duration) Option {
	return func(e *Engine) { e.holdTime = d }
}

// WithLeaveTimeout sets how long a slot and the latest frame stay valid
// without a refresh.
func WithLeaveTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.leaveTimeout = d
			e.slotOpts = append(e.slotOpts, slots.WithLeaveTimeout(d))
		}
	}
}

// WithSlotOptions passes options to the participant slot manager.
func WithSlotOptions(opts ...slots.Option) Option {
	return func(e *Engine) { e.slotOpts = append(e.slotOpts, opts...) }
}

// WithFallingOptions passes options to the falling object engine.
func WithFallingOptions(opts ...falling.Option) Option {
	return func(e *Engine) { e.fallingOpts = append(e.fallingOpts, opts...) }
}

// WithRecorderQueueSize sets how many results may wait to be written.
func WithRecorderQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// WithClock sets the wall clock used for timestamps and day keys.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithSeed makes spawning and favorite tie-breaks reproducible.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.seed = seed
		e.seeded = true
	}
}
