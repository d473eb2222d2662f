package telemetrysim

import (
	"math"
	"math/rand/v2"

	"github.com/okian/mangacatch/internal/adapters/sensor"
)

// Movement patterns.
const (
	patternPacer = iota
	patternStander
	patternCrosser
	patternCount
)

type walker struct {
	pattern int
	phase   float64
	speed   float64
	depth   float64
	home    float64
}

// Generator produces player positions for successive frames.
type Generator struct {
	walkers []walker
}

// NewGenerator creates a generator with n players, clamped to [0, sensor.MaxPlayers].
func NewGenerator(n int, seed uint64) *Generator {
	n = max(0, min(n, sensor.MaxPlayers))
	rng := rand.New(rand.NewPCG(seed, seed+1))
	g := &Generator{walkers: make([]walker, n)}
	for i := range g.walkers {
		g.walkers[i] = walker{
			pattern: rng.IntN(patternCount),
			phase:   rng.Float64() * 2 * math.Pi,
			speed:   0.3 + rng.Float64()*0.9,
			depth:   0.7 + rng.Float64()*0.2,
			home:    (float64(i) + 0.5) / float64(n),
		}
	}
	return g
}

// Players returns the number of generated players.
func (g *Generator) Players() int { return len(g.walkers) }

// At returns every player's position t seconds into the run. Ids start at 1.
func (g *Generator) At(t float64) []sensor.Player {
	out := make([]sensor.Player, 0, len(g.walkers))
	for i, w := range g.walkers {
		var x float64
		switch w.pattern {
		case patternPacer:
			x = w.home + 0.15*math.Sin(t*w.speed*2+w.phase)
		case patternStander:
			x = w.home + 0.02*math.Sin(t*3+w.phase)
		case patternCrosser:
			// Triangle wave across the full width.
			p := math.Mod(t*w.speed*0.25+w.phase/(2*math.Pi), 1)
			x = 1 - math.Abs(2*p-1)
		}
		out = append(out, sensor.Player{
			ID: i + 1,
			X:  math.Max(0, math.Min(1, x)),
			Y:  w.depth,
		})
	}
	return out
}
