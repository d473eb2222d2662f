package falling

import "math/rand/v2"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithScreen sets the play-field size in pixels.
func WithScreen(width, height float64) Option {
	return func(e *Engine) {
		if width > 0 && height > 0 {
			e.width, e.height = width, height
		}
	}
}

// WithLanes sets the number of spawn lanes.
func WithLanes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.lanes = n
		}
	}
}

// WithCollider sets the collision policy.
func WithCollider(c Collider) Option {
	return func(e *Engine) {
		if c != nil {
			e.collider = c
		}
	}
}

// WithSpawnChance sets the per-lane, per-tick spawn probability at multiplier 1.
func WithSpawnChance(p float64) Option {
	return func(e *Engine) {
		if p >= 0 && p <= 1 {
			e.spawnChance = p
		}
	}
}

// WithLaneCooldown sets the cooldown, in ticks at multiplier 1, after a lane spawns.
func WithLaneCooldown(ticks float64) Option {
	return func(e *Engine) {
		if ticks >= 0 {
			e.cooldown = ticks
		}
	}
}

// WithFallSpeed sets the range fall speeds are drawn from, in pixels per tick.
func WithFallSpeed(lo, hi float64) Option {
	return func(e *Engine) {
		if lo > 0 && hi >= lo {
			e.minFall, e.maxFall = lo, hi
		}
	}
}

// WithRand sets the random source. Tests pass a seeded one.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}
