package falling

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/internal/domain/slots"
)

// Geometry and pacing defaults. Speeds and cooldowns are expressed per
// reference tick and scaled by the real tick length.
const (
	DefaultLanes        = 5
	DefaultSpawnChance  = 0.024
	DefaultLaneCooldown = 45.0
	DefaultMinFall      = 4.0
	DefaultMaxFall      = 7.0
	DefaultCatchRadius  = 120.0

	SpawnY        = -250.0
	BottomMargin  = 150.0
	referenceTick = time.Second / 60
)

// Sway is a horizontal oscillation preset.
type Sway struct {
	Amplitude float64
	Speed     float64
}

// SwayPresets are picked uniformly at spawn.
var SwayPresets = [...]Sway{
	{Amplitude: 30, Speed: 2.0},
	{Amplitude: 50, Speed: 1.5},
	{Amplitude: 80, Speed: 1.0},
	{Amplitude: 120, Speed: 0.8},
	{Amplitude: 20, Speed: 3.0},
}

// Object is one falling item.
type Object struct {
	ID        uint64
	Lane      int
	BaseX     float64
	X         float64
	Y         float64
	Elapsed   float64 // seconds since spawn
	Sway      Sway
	FallSpeed float64
	Item      model.ItemType
}

// Catch records an object caught by a slot.
type Catch struct {
	Object    Object
	SlotIndex int
}

// Stats are cumulative counters since the engine was created.
type Stats struct {
	Spawned uint64
	Caught  uint64
	Missed  uint64
}

// Engine owns the falling objects. It is driven from the control tick and
// is not safe for concurrent use.
type Engine struct {
	width, height float64
	lanes         int
	collider      Collider
	spawnChance   float64
	cooldown      float64
	minFall       float64
	maxFall       float64
	rng           *rand.Rand

	lottery   *Lottery
	objects   []Object
	cooldowns []float64
	nextID    uint64
	stats     Stats
}

// New creates an Engine drawing items from lottery.
func New(lottery *Lottery, opts ...Option) *Engine {
	e := &Engine{
		width:       1920,
		height:      1080,
		lanes:       DefaultLanes,
		collider:    Radius{R: DefaultCatchRadius},
		spawnChance: DefaultSpawnChance,
		cooldown:    DefaultLaneCooldown,
		minFall:     DefaultMinFall,
		maxFall:     DefaultMaxFall,
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6d63)),
		lottery:     lottery,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cooldowns = make([]float64, e.lanes)
	return e
}

// LaneX returns the centre of lane i.
func (e *Engine) LaneX(i int) float64 {
	w := e.width / float64(e.lanes)
	return w*float64(i) + w/2
}

// Step advances one tick: spawn, move, collide, discard.
// Active slots are tested in ascending index order; the first hit wins.
func (e *Engine) Step(active []slots.Slot, multiplier float64, dt time.Duration) []Catch {
	if multiplier <= 0 {
		multiplier = 1
	}
	scale := float64(dt) / float64(referenceTick)

	e.spawn(multiplier, scale)

	var catches []Catch
	kept := e.objects[:0]
	for _, o := range e.objects {
		o.Elapsed += dt.Seconds()
		o.Y += o.FallSpeed * multiplier * scale
		o.X = o.BaseX + math.Sin(o.Elapsed*o.Sway.Speed)*o.Sway.Amplitude

		if idx := e.hit(o, active); idx > 0 {
			catches = append(catches, Catch{Object: o, SlotIndex: idx})
			e.stats.Caught++
			continue
		}
		if o.Y >= e.height+BottomMargin {
			e.stats.Missed++
			continue
		}
		kept = append(kept, o)
	}
	clear(e.objects[len(kept):])
	e.objects = kept
	return catches
}

func (e *Engine) hit(o Object, active []slots.Slot) int {
	for _, s := range active {
		if s.Active && e.collider.Hit(o, s) {
			return s.Index
		}
	}
	return 0
}

func (e *Engine) spawn(multiplier, scale float64) {
	for lane := range e.cooldowns {
		e.cooldowns[lane] = math.Max(0, e.cooldowns[lane]-multiplier*scale)
		if e.cooldowns[lane] > 0 {
			continue
		}
		if e.rng.Float64() >= e.spawnChance*multiplier {
			continue
		}
		e.SpawnInLane(lane, e.lottery.Draw(e.rng))
		e.cooldowns[lane] = e.cooldown / multiplier
	}
}

// SpawnInLane places item at the top of lane with a random sway and fall speed.
func (e *Engine) SpawnInLane(lane int, item model.ItemType) Object {
	if lane < 0 || lane >= e.lanes {
		lane = 0
	}
	e.nextID++
	base := e.LaneX(lane)
	o := Object{
		ID:        e.nextID,
		Lane:      lane,
		BaseX:     base,
		X:         base,
		Y:         SpawnY,
		Sway:      SwayPresets[e.rng.IntN(len(SwayPresets))],
		FallSpeed: e.minFall + e.rng.Float64()*(e.maxFall-e.minFall),
		Item:      item,
	}
	e.objects = append(e.objects, o)
	e.stats.Spawned++
	return o
}

// Clear removes every object and resets lane cooldowns.
func (e *Engine) Clear() {
	clear(e.objects)
	e.objects = e.objects[:0]
	clear(e.cooldowns)
}

// Objects returns a copy of the live objects.
func (e *Engine) Objects() []Object {
	return append([]Object(nil), e.objects...)
}

// Stats returns the cumulative counters.
func (e *Engine) Stats() Stats { return e.stats }
