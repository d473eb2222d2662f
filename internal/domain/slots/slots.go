// Package slots maps tracked identities onto a fixed set of participant slots.
//
// Slots are assigned in participation order: a new identity takes the lowest
// free index and keeps it until it times out. Nobody is evicted to make room.
package slots

import (
	"fmt"
	"time"

	"github.com/okian/mangacatch/internal/domain/model"
)

// MaxSlots is the hard upper bound on simultaneous participants.
const MaxSlots = 3

// pointerID is the synthetic identity used by pointer fallback input.
const pointerID = -1

// Defaults.
const (
	DefaultLeaveTimeout    = 1500 * time.Millisecond
	DefaultGraceTime       = 3000 * time.Millisecond
	DefaultPointerBaseline = 150.0
)

// Slot is one participant position on screen.
type Slot struct {
	Index      int
	Active     bool
	X          float64
	Y          float64
	LastSeen   time.Time
	Score      int
	ExternalID int
	Fallback   bool
}

// Result summarizes one ApplyDetections call.
type Result struct {
	Assigned  int
	Refreshed int
	Rejected  int
}

// Manager owns the slots. It is driven from the control tick and is not
// safe for concurrent use.
type Manager struct {
	width, height   float64
	leaveTimeout    time.Duration
	graceTime       time.Duration
	pointerBaseline float64
	max             int
	strict          bool

	slots       [MaxSlots]Slot
	byID        map[int]int // external id -> slot position
	lastPrimary time.Time

	violations int
}

// New creates a Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		width:           1920,
		height:          1080,
		leaveTimeout:    DefaultLeaveTimeout,
		graceTime:       DefaultGraceTime,
		pointerBaseline: DefaultPointerBaseline,
		max:             MaxSlots,
		byID:            make(map[int]int, MaxSlots),
	}
	for _, opt := range opts {
		opt(m)
	}
	for i := range m.slots {
		m.slots[i].Index = i + 1
	}
	return m
}

// ApplyDetections assigns or refreshes slots from primary tracking input.
// Detections with a non-positive id are ignored. Identities that do not fit
// in a free slot are rejected.
func (m *Manager) ApplyDetections(dets []model.Detection, now time.Time) Result {
	var res Result
	for _, d := range dets {
		if d.ExternalID <= 0 {
			continue
		}
		x, y := m.toScreen(d.X, d.Y)
		if i, ok := m.byID[d.ExternalID]; ok {
			s := &m.slots[i]
			s.X, s.Y, s.LastSeen = x, y, now
			res.Refreshed++
			continue
		}
		i := m.free()
		if i < 0 {
			res.Rejected++
			continue
		}
		m.occupy(i, d.ExternalID, x, y, now, false)
		res.Assigned++
	}
	if res.Assigned+res.Refreshed > 0 {
		m.lastPrimary = now
	}
	m.check()
	return res
}

// ApplyPointer feeds pointer fallback input. It is accepted only when the
// primary source has been silent for at least the grace time. It never
// displaces a primary slot.
func (m *Manager) ApplyPointer(p model.PointerSample, now time.Time) bool {
	if !m.lastPrimary.IsZero() && now.Sub(m.lastPrimary) < m.graceTime {
		return false
	}
	x, y := m.toScreen(p.X, p.Y)
	if m.pointerBaseline > 0 {
		y = m.height - m.pointerBaseline
	}
	if i, ok := m.byID[pointerID]; ok {
		s := &m.slots[i]
		s.X, s.Y, s.LastSeen = x, y, now
		return true
	}
	i := m.free()
	if i < 0 {
		return false
	}
	m.occupy(i, pointerID, x, y, now, true)
	m.check()
	return true
}

// Sweep deactivates slots not refreshed for longer than the leave timeout.
// It returns the indices released.
func (m *Manager) Sweep(now time.Time) []int {
	var released []int
	for i := 0; i < m.max; i++ {
		s := &m.slots[i]
		if s.Active && now.Sub(s.LastSeen) > m.leaveTimeout {
			delete(m.byID, s.ExternalID)
			*s = Slot{Index: s.Index}
			released = append(released, s.Index)
		}
	}
	return released
}

// CreditScore adds n to the slot at index (1-based). Inactive slots are ignored.
func (m *Manager) CreditScore(index, n int) {
	if index < 1 || index > m.max {
		return
	}
	if s := &m.slots[index-1]; s.Active {
		s.Score += n
	}
}

// ResetScores zeroes every slot score and keeps assignments.
func (m *Manager) ResetScores() {
	for i := range m.slots {
		m.slots[i].Score = 0
	}
}

// Reset releases every slot.
func (m *Manager) Reset() {
	for i := range m.slots {
		m.slots[i] = Slot{Index: i + 1}
	}
	clear(m.byID)
	m.lastPrimary = time.Time{}
}

// Active returns copies of the active slots in ascending index order.
func (m *Manager) Active() []Slot {
	out := make([]Slot, 0, m.max)
	for i := 0; i < m.max; i++ {
		if m.slots[i].Active {
			out = append(out, m.slots[i])
		}
	}
	return out
}

// Slots returns copies of all usable slots.
func (m *Manager) Slots() []Slot {
	out := make([]Slot, m.max)
	copy(out, m.slots[:m.max])
	return out
}

// ActiveCount returns the number of active slots.
func (m *Manager) ActiveCount() int {
	n := 0
	for i := 0; i < m.max; i++ {
		if m.slots[i].Active {
			n++
		}
	}
	return n
}

// Violations returns how many invariant violations were observed in lenient mode.
func (m *Manager) Violations() int { return m.violations }

func (m *Manager) free() int {
	for i := 0; i < m.max; i++ {
		if !m.slots[i].Active {
			return i
		}
	}
	return -1
}

func (m *Manager) occupy(i, id int, x, y float64, now time.Time, fallback bool) {
	m.slots[i] = Slot{
		Index:      i + 1,
		Active:     true,
		X:          x,
		Y:          y,
		LastSeen:   now,
		ExternalID: id,
		Fallback:   fallback,
	}
	m.byID[id] = i
}

func (m *Manager) toScreen(x, y float64) (float64, float64) {
	return clamp01(x) * m.width, clamp01(y) * m.height
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// check verifies that active slots and the identity map agree.
func (m *Manager) check() {
	err := m.validate()
	if err == nil {
		return
	}
	if m.strict {
		panic(err)
	}
	m.violations++
}

func (m *Manager) validate() error {
	active := 0
	for i := 0; i < m.max; i++ {
		s := m.slots[i]
		if !s.Active {
			continue
		}
		active++
		if j, ok := m.byID[s.ExternalID]; !ok || j != i {
			return fmt.Errorf("%w: slot %d holds id %d without a matching mapping", ErrInvariant, s.Index, s.ExternalID)
		}
	}
	if active > m.max {
		return fmt.Errorf("%w: %d active slots exceed %d", ErrInvariant, active, m.max)
	}
	if len(m.byID) != active {
		return fmt.Errorf("%w: %d mappings for %d active slots", ErrInvariant, len(m.byID), active)
	}
	return nil
}
