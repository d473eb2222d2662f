package sensor

import (
	"context"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/okian/mangacatch/internal/domain/model"
)

// DefaultSimulatedRate is how often the simulated source publishes.
const DefaultSimulatedRate = 30 * time.Millisecond

type walker struct {
	phase float64
	speed float64
	depth float64
}

// SimulatedSource publishes synthetic walkers pacing across the floor.
// The number of walkers can be changed while running.
type SimulatedSource struct {
	name    string
	rate    time.Duration
	clock   func() time.Time
	count   atomic.Int32
	walkers [MaxPlayers]walker
	start   time.Time
}

// NewSimulatedSource creates a source with n walkers, clamped to [0, MaxPlayers].
func NewSimulatedSource(n int, rate time.Duration, seed uint64) *SimulatedSource {
	if rate <= 0 {
		rate = DefaultSimulatedRate
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	s := &SimulatedSource{name: "simulated", rate: rate, clock: time.Now}
	s.start = s.clock()
	for i := range s.walkers {
		s.walkers[i] = walker{
			phase: rng.Float64() * 2 * math.Pi,
			speed: 0.4 + rng.Float64()*0.8,
			depth: 0.75 + rng.Float64()*0.15,
		}
	}
	s.SetPlayers(n)
	return s
}

// Name implements Source.
func (s *SimulatedSource) Name() string { return s.name }

// SetPlayers changes the number of walkers.
func (s *SimulatedSource) SetPlayers(n int) {
	n = max(0, min(n, MaxPlayers))
	s.count.Store(int32(n))
}

// Players returns the current number of walkers.
func (s *SimulatedSource) Players() int { return int(s.count.Load()) }

// Run implements Source.
func (s *SimulatedSource) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(s.rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sink.Publish(s.FrameAt(s.clock()))
		}
	}
}

// FrameAt returns the walkers' positions at now.
func (s *SimulatedSource) FrameAt(now time.Time) model.Frame {
	n := s.Players()
	t := now.Sub(s.start).Seconds()
	dets := make([]model.Detection, 0, n)
	for i := range n {
		w := s.walkers[i]
		dets = append(dets, model.Detection{
			ExternalID: i + 1,
			X:          clamp01(0.5 + 0.4*math.Sin(t*w.speed+w.phase)),
			Y:          w.depth,
		})
	}
	return model.Frame{Source: s.name, At: now, Detections: dets, PersonCount: n}
}

var _ Source = (*SimulatedSource)(nil)
