// Package ledger accumulates the score of the current session.
package ledger

import (
	"maps"

	"github.com/okian/mangacatch/internal/domain/model"
)

// ItemTally is the per-item breakdown of a session.
type ItemTally struct {
	Count     int
	ScoreSum  int
	RaritySum int
}

// Snapshot is an immutable copy of the ledger.
type Snapshot struct {
	Total     int
	RaritySum int
	Catches   int
	Histogram map[string]int
	Items     map[string]ItemTally
	// PlayerScores is keyed by slot index.
	PlayerScores map[int]int
}

// Ledger is owned by the control tick and is not safe for concurrent use.
type Ledger struct {
	total     int
	rarity    int
	catches   int
	items     map[string]ItemTally
	byPlayers map[int]int
}

// New creates an empty Ledger.
func New() *Ledger {
	l := &Ledger{}
	l.Reset()
	return l
}

// Credit adds one catch of item.
func (l *Ledger) Credit(item model.ItemType) {
	l.CreditFor(0, item)
}

// CreditFor adds one catch of item made by the participant in slot.
// A slot of zero records no per-player score.
func (l *Ledger) CreditFor(slot int, item model.ItemType) {
	l.total += item.ScoreValue
	l.rarity += item.RarityPoint
	l.catches++

	t := l.items[item.ID]
	t.Count++
	t.ScoreSum += item.ScoreValue
	t.RaritySum += item.RarityPoint
	l.items[item.ID] = t

	if slot > 0 {
		l.byPlayers[slot] += item.ScoreValue
	}
}

// Reset clears every tally.
func (l *Ledger) Reset() {
	l.total, l.rarity, l.catches = 0, 0, 0
	l.items = make(map[string]ItemTally)
	l.byPlayers = make(map[int]int)
}

// Total returns the running score.
func (l *Ledger) Total() int { return l.total }

// Snapshot returns a copy that later credits do not affect.
func (l *Ledger) Snapshot() Snapshot {
	hist := make(map[string]int, len(l.items))
	for id, t := range l.items {
		hist[id] = t.Count
	}
	return Snapshot{
		Total:        l.total,
		RaritySum:    l.rarity,
		Catches:      l.catches,
		Histogram:    hist,
		Items:        maps.Clone(l.items),
		PlayerScores: maps.Clone(l.byPlayers),
	}
}
