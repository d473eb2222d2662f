// Package session sequences the phases of one play cycle.
//
// The cycle is fixed: BOOT, TITLE, TUTORIAL, COUNTDOWN, PLAY, RESULT,
// RECOMMEND, PHOTO, RANKING, then back to TITLE. TITLE waits for an explicit
// start; every other phase ends when its duration has elapsed. A zero
// COUNTDOWN is skipped.
package session

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/mangacatch/internal/domain/catalog"
	"github.com/okian/mangacatch/internal/domain/ledger"
	"github.com/okian/mangacatch/internal/domain/model"
)

// DayLayout formats ranking day keys.
const DayLayout = "2006-01-02"

// Transition is one fired phase change.
type Transition struct {
	From model.Phase
	To   model.Phase
}

// Result is the outcome of a finished play phase.
type Result struct {
	SessionID  string
	Score      int
	RaritySum  int
	Histogram  map[string]int
	Favorite   string
	AchievedAt time.Time
}

// Hooks connect the machine to the rest of the engine. Nil hooks are skipped.
type Hooks struct {
	// EnterPlay runs before PLAY starts with the new session id.
	EnterPlay func(sessionID string)
	// Ledger supplies the session tally when PLAY ends.
	Ledger func() ledger.Snapshot
	// Record receives the result and its day key when PHOTO ends.
	// It must not block.
	Record func(day string, r Result)
	// Transitioned observes every transition.
	Transitioned func(t Transition)
}

// State is a read-only view of the machine.
type State struct {
	Phase        model.Phase
	PhaseElapsed time.Duration
	SessionID    string
	Favorite     string
	Result       *Result
}

// Machine is driven from the control tick and is not safe for concurrent use.
type Machine struct {
	catalog   *catalog.Catalog
	durations map[model.Phase]time.Duration
	hooks     Hooks
	clock     func() time.Time
	rng       *rand.Rand

	phase   model.Phase
	elapsed time.Duration
	session string
	result  *Result
}

// New creates a Machine in BOOT. Missing durations fall back to DefaultDurations.
func New(cat *catalog.Catalog, durations map[model.Phase]time.Duration, hooks Hooks, opts ...Option) *Machine {
	m := &Machine{
		catalog:   cat,
		durations: DefaultDurations(),
		hooks:     hooks,
		clock:     time.Now,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x73)),
		phase:     model.PhaseBoot,
	}
	for p, d := range durations {
		m.durations[p] = d
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultDurations returns the installation phase table.
func DefaultDurations() map[model.Phase]time.Duration {
	return map[model.Phase]time.Duration{
		model.PhaseBoot:      1 * time.Second,
		model.PhaseTutorial:  5 * time.Second,
		model.PhaseCountdown: 3 * time.Second,
		model.PhasePlay:      30 * time.Second,
		model.PhaseResult:    5 * time.Second,
		model.PhaseRecommend: 6 * time.Second,
		model.PhasePhoto:     10 * time.Second,
		model.PhaseRanking:   8 * time.Second,
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() model.Phase { return m.phase }

// State returns a copy of the machine state.
func (m *Machine) State() State {
	s := State{
		Phase:        m.phase,
		PhaseElapsed: m.elapsed,
		SessionID:    m.session,
	}
	if m.result != nil {
		r := *m.result
		s.Result = &r
		s.Favorite = r.Favorite
	}
	return s
}

// Remaining returns the time left in the current phase. TITLE has none.
func (m *Machine) Remaining() time.Duration {
	if m.phase == model.PhaseTitle {
		return 0
	}
	return max(0, m.durations[m.phase]-m.elapsed)
}

// Advance adds dt to the phase clock and fires every transition that became
// due, in order. Leftover time carries into the next phase; TITLE absorbs it.
func (m *Machine) Advance(dt time.Duration) []Transition {
	m.elapsed += dt
	var fired []Transition
	for m.phase != model.PhaseTitle {
		d := m.durations[m.phase]
		if m.elapsed < d {
			break
		}
		m.elapsed -= d
		fired = append(fired, m.transition(m.next(m.phase)))
	}
	if m.phase == model.PhaseTitle {
		m.elapsed = 0
	}
	return fired
}

// TriggerStart leaves TITLE. It reports false, and does nothing, in any other phase.
func (m *Machine) TriggerStart() bool {
	if m.phase != model.PhaseTitle {
		return false
	}
	m.transition(model.PhaseTutorial)
	return true
}

func (m *Machine) next(p model.Phase) model.Phase {
	switch p {
	case model.PhaseBoot:
		return model.PhaseTitle
	case model.PhaseTitle:
		return model.PhaseTutorial
	case model.PhaseTutorial:
		if m.durations[model.PhaseCountdown] <= 0 {
			return model.PhasePlay
		}
		return model.PhaseCountdown
	case model.PhaseCountdown:
		return model.PhasePlay
	case model.PhasePlay:
		return model.PhaseResult
	case model.PhaseResult:
		return model.PhaseRecommend
	case model.PhaseRecommend:
		return model.PhasePhoto
	case model.PhasePhoto:
		return model.PhaseRanking
	default:
		return model.PhaseTitle
	}
}

func (m *Machine) transition(to model.Phase) Transition {
	t := Transition{From: m.phase, To: to}

	switch t.From {
	case model.PhasePlay:
		m.finishPlay()
	case model.PhasePhoto:
		if m.result != nil && m.hooks.Record != nil {
			m.hooks.Record(m.clock().Format(DayLayout), *m.result)
		}
	}

	if to == model.PhasePlay {
		m.session = uuid.NewString()
		m.result = nil
		if m.hooks.EnterPlay != nil {
			m.hooks.EnterPlay(m.session)
		}
	}
	if to == model.PhaseTitle {
		m.elapsed = 0
	}

	m.phase = to
	if t.From == model.PhaseTitle {
		m.elapsed = 0
	}
	if m.hooks.Transitioned != nil {
		m.hooks.Transitioned(t)
	}
	return t
}

func (m *Machine) finishPlay() {
	var snap ledger.Snapshot
	if m.hooks.Ledger != nil {
		snap = m.hooks.Ledger()
	}
	m.result = &Result{
		SessionID:  m.session,
		Score:      snap.Total,
		RaritySum:  snap.RaritySum,
		Histogram:  snap.Histogram,
		Favorite:   Favorite(snap.Histogram, m.catalog, m.rng),
		AchievedAt: m.clock(),
	}
}

// Favorite returns the most caught item id. Ties go to the item that comes
// first in catalog order. With no catches a catalog item is picked at random.
func Favorite(hist map[string]int, cat *catalog.Catalog, rng *rand.Rand) string {
	best, bestCount := "", 0
	for i := 0; i < cat.Len(); i++ {
		id := cat.At(i).ID
		if n := hist[id]; n > bestCount {
			best, bestCount = id, n
		}
	}
	if best != "" {
		return best
	}
	return cat.At(rng.IntN(cat.Len())).ID
}
