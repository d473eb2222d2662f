package cluster

import "time"

// DefaultHoldTime is how long a raw count must stay unchanged before it is confirmed.
const DefaultHoldTime = 1500 * time.Millisecond

// Debouncer confirms a raw count once it has been stable for the hold time.
// Not safe for concurrent use.
type Debouncer struct {
	hold      time.Duration
	last      int
	since     time.Time
	confirmed int
	started   bool
}

// NewDebouncer creates a Debouncer. The confirmed count starts at zero.
func NewDebouncer(hold time.Duration) *Debouncer {
	return &Debouncer{hold: hold}
}

// Observe records a raw count at now. It returns the confirmed count and
// whether this call changed it. A confirmed value is reported as changed once.
func (d *Debouncer) Observe(count int, now time.Time) (int, bool) {
	if !d.started || count != d.last {
		d.started = true
		d.last = count
		d.since = now
	}
	if now.Sub(d.since) >= d.hold && d.confirmed != count {
		d.confirmed = count
		return d.confirmed, true
	}
	return d.confirmed, false
}

// Confirmed returns the last confirmed count.
func (d *Debouncer) Confirmed() int { return d.confirmed }

// Reset forgets all history.
func (d *Debouncer) Reset() {
	*d = Debouncer{hold: d.hold}
}
