// Package falling spawns, moves and catches the falling items of the play phase.
package falling

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/okian/mangacatch/internal/domain/model"
)

// Lottery draws items with probability proportional to their rarity weight.
// When every weight is zero the draw is uniform.
type Lottery struct {
	items   []model.ItemType
	cum     []float64
	total   float64
	uniform bool
}

// NewLottery builds the cumulative weight table. items must not be empty.
func NewLottery(items []model.ItemType) (*Lottery, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	l := &Lottery{
		items: append([]model.ItemType(nil), items...),
		cum:   make([]float64, len(items)),
	}
	weights := make([]float64, len(items))
	for i, it := range items {
		weights[i] = float64(it.RarityWeight)
	}
	floats.CumSum(l.cum, weights)
	l.total = l.cum[len(l.cum)-1]
	l.uniform = l.total <= 0
	return l, nil
}

// Uniform reports whether the lottery fell back to a uniform draw.
func (l *Lottery) Uniform() bool { return l.uniform }

// Draw picks one item using rng.
func (l *Lottery) Draw(rng *rand.Rand) model.ItemType {
	if l.uniform {
		return l.items[rng.IntN(len(l.items))]
	}
	r := rng.Float64() * l.total
	i := sort.Search(len(l.cum), func(i int) bool { return l.cum[i] > r })
	if i == len(l.cum) {
		i = len(l.cum) - 1
	}
	return l.items[i]
}
