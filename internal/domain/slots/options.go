package slots

import "time"

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithScreen sets the play-field size used to map normalized positions to pixels.
func WithScreen(width, height float64) Option {
	return func(m *Manager) {
		if width > 0 && height > 0 {
			m.width, m.height = width, height
		}
	}
}

// WithLeaveTimeout sets how long an unrefreshed slot stays active.
func WithLeaveTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.leaveTimeout = d
		}
	}
}

// WithGraceTime sets how long after the last primary refresh pointer input is refused.
func WithGraceTime(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.graceTime = d
		}
	}
}

// WithMaxSlots limits the number of usable slots (1..MaxSlots).
func WithMaxSlots(n int) Option {
	return func(m *Manager) {
		if n >= 1 && n <= MaxSlots {
			m.max = n
		}
	}
}

// WithStrict makes invariant violations panic instead of being counted.
func WithStrict(strict bool) Option {
	return func(m *Manager) {
		m.strict = strict
	}
}

// WithPointerBaseline pins pointer slots to this many pixels above the bottom edge.
// Zero maps the pointer's own Y.
func WithPointerBaseline(px float64) Option {
	return func(m *Manager) {
		if px >= 0 {
			m.pointerBaseline = px
		}
	}
}
