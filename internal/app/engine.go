// Package service owns the game engine: one control tick that moves
// sensor input through participant slots, falling objects, scoring and
// phase sequencing, plus the background ranking recorder.
package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/mangacatch/internal/adapters/mq/queue"
	"github.com/okian/mangacatch/internal/adapters/mq/worker"
	"github.com/okian/mangacatch/internal/adapters/repository"
	"github.com/okian/mangacatch/internal/adapters/sensor"
	"github.com/okian/mangacatch/internal/domain/catalog"
	"github.com/okian/mangacatch/internal/domain/cluster"
	"github.com/okian/mangacatch/internal/domain/dedupe"
	"github.com/okian/mangacatch/internal/domain/falling"
	"github.com/okian/mangacatch/internal/domain/ledger"
	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/internal/domain/session"
	"github.com/okian/mangacatch/internal/domain/slots"
	"github.com/okian/mangacatch/internal/domain/types"
	"github.com/okian/mangacatch/pkg/logger"
	"github.com/okian/mangacatch/pkg/metrics"
)

// Engine defaults.
const (
	DefaultTickRate  = 60
	defaultQueueSize = 64
	// maxStep caps the simulated time of one tick after a stall.
	maxStep         = 250 * time.Millisecond
	shutdownTimeout = 10 * time.Second
	msPerNs         = 1e6
)

// DefaultSpeedMultipliers maps one, two and three confirmed participants.
var DefaultSpeedMultipliers = []float64{1.0, 1.2, 1.5}

// Engine is the single owner of every game component. Step, TriggerStart
// and Pointer serialize on one mutex; Snapshot never blocks.
type Engine struct {
	// configuration
	period      time.Duration
	manual      bool
	width       float64
	height      float64
	multipliers []float64
	durations   map[model.Phase]time.Duration
	holdTime    time.Duration
	slotOpts    []slots.Option
	fallingOpts []falling.Option
	queueSize   int
	clock       func() time.Time
	seed        uint64
	seeded      bool
	logger      logger.Logger

	// leaveTimeout bounds the age of a usable frame and of a slot refresh.
	leaveTimeout time.Duration

	// tick state, guarded by mu
	mu          sync.Mutex
	catalog     *catalog.Catalog
	slots       *slots.Manager
	falling     *falling.Engine
	ledger      *ledger.Ledger
	session     *session.Machine
	debouncer   *cluster.Debouncer
	lastSeq     uint64
	lastStep    time.Time
	tick        uint64
	personCount int
	multiplier  float64

	snap atomic.Pointer[types.Snapshot]

	// sensing and recording
	source   sensor.Source
	frames   *sensor.FrameBuffer
	listener *sensor.Listener
	store    repository.Store
	queue    *queue.InMemoryQueue
	recorder *worker.InMemoryWorker
	seen     dedupe.Deduper

	rankMu      sync.RWMutex
	rankDay     string
	rankList    []model.RankingEntry
	rankVersion uint64

	// lifecycle, guarded by lifeMu
	lifeMu   sync.Mutex
	started  bool
	stopped  bool
	stopCh   chan struct{}
	loopDone chan struct{}
}

// New constructs an Engine in BOOT. Nothing runs until Start.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		period:       time.Second / DefaultTickRate,
		width:        1920,
		height:       1080,
		multipliers:  DefaultSpeedMultipliers,
		holdTime:     cluster.DefaultHoldTime,
		leaveTimeout: slots.DefaultLeaveTimeout,
		queueSize:    defaultQueueSize,
		clock:        time.Now,
		logger:       logger.Get().Named("engine"),
		catalog:      catalog.Default(),
		frames:       sensor.NewFrameBuffer(),
		seen:         dedupe.NewInMemoryDeduper(),
		stopCh:       make(chan struct{}),
		multiplier:   1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = repository.NewMemoryStore()
	}

	seed := e.seed
	if !e.seeded {
		seed = uint64(time.Now().UnixNano())
	}

	lottery, err := falling.NewLottery(e.catalog.Items())
	if err != nil {
		return nil, fmt.Errorf("build lottery: %w", err)
	}
	e.falling = falling.New(lottery, append([]falling.Option{
		falling.WithScreen(e.width, e.height),
		falling.WithRand(rand.New(rand.NewPCG(seed, 0x66616c6c))),
	}, e.fallingOpts...)...)

	e.slots = slots.New(append([]slots.Option{slots.WithScreen(e.width, e.height)}, e.slotOpts...)...)
	e.ledger = ledger.New()
	e.debouncer = cluster.NewDebouncer(e.holdTime)
	e.session = session.New(e.catalog, e.durations, session.Hooks{
		EnterPlay:    e.enterPlay,
		Ledger:       e.ledger.Snapshot,
		Record:       e.record,
		Transitioned: e.transitioned,
	}, session.WithClock(e.clock), session.WithRand(rand.New(rand.NewPCG(seed, 0x73657373))))

	e.queue = queue.NewInMemoryQueue(queue.WithCapacity(e.queueSize))
	e.recorder = worker.NewInMemoryWorker(e.queue, e.store, worker.WithOnRecorded(e.recorded))

	e.publish()
	return e, nil
}

// Start loads today's ranking and launches the recorder, the sensor
// listener and, unless ticking manually, the control tick.
func (e *Engine) Start(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if e.stopped {
		return ErrStopped
	}
	if e.started {
		return nil
	}

	e.logger.Info(ctx, "starting engine...")

	if _, err := e.TodayRanking(ctx); err != nil {
		e.logger.Warn(ctx, "could not load today's ranking", logger.Error(err))
	}

	// The recorder outlives ctx so Stop can drain pending writes.
	go e.recorder.Run(context.WithoutCancel(ctx))

	if e.source != nil {
		e.listener = sensor.NewListener(e.source, e.frames)
		go e.listener.Run(ctx)
	}

	if !e.manual {
		e.loopDone = make(chan struct{})
		go e.loop(ctx)
	}

	e.started = true
	source := "none"
	if e.source != nil {
		source = e.source.Name()
	}
	e.logger.Info(ctx, "engine started",
		logger.String("source", source),
		logger.Duration("tick", e.period),
		logger.Int("items", e.catalog.Len()),
	)
	return nil
}

// Stop halts the sensor listener and the tick, waits for an in-flight
// tick, then drains the ranking recorder and closes the store.
func (e *Engine) Stop() {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if !e.started || e.stopped {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	e.logger.Info(ctx, "stopping engine...")

	if e.listener != nil {
		if err := e.listener.Shutdown(ctx); err != nil {
			e.logger.Warn(ctx, "sensor listener did not stop", logger.Error(err))
		}
	}

	close(e.stopCh)
	if e.loopDone != nil {
		<-e.loopDone
	}
	e.frames.Close()

	_ = e.queue.Close()
	if err := e.recorder.Shutdown(ctx); err != nil {
		e.logger.Warn(ctx, "ranking recorder did not drain", logger.Error(err))
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn(ctx, "ranking store close failed", logger.Error(err))
	}

	e.started = false
	e.stopped = true
	e.logger.Info(ctx, "engine stopped")
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.loopDone)
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.Step(e.clock())
		}
	}
}

// Step runs one control tick at now: latest frame, slot apply and sweep,
// participant count, speed multiplier, falling objects (PLAY only), then
// phase advance.
func (e *Engine) Step(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	began := time.Now()

	dt := e.period
	if !e.lastStep.IsZero() {
		dt = min(max(now.Sub(e.lastStep), 0), maxStep)
	}
	e.lastStep = now
	e.tick++

	frame, seq := e.frames.Latest()
	if seq != e.lastSeq {
		e.lastSeq = seq
		res := e.slots.ApplyDetections(frame.Detections, now)
		for range res.Rejected {
			metrics.RecordSlotRejection()
		}
	}
	for range e.slots.Sweep(now) {
		metrics.RecordSlotTimeout()
	}

	e.personCount = e.countParticipants(frame, seq, now)
	e.multiplier = Multiplier(e.personCount, e.multipliers)

	if e.session.Phase() == model.PhasePlay {
		before := e.falling.Stats()
		for _, c := range e.falling.Step(e.slots.Active(), e.multiplier, dt) {
			e.ledger.CreditFor(c.SlotIndex, c.Object.Item)
			e.slots.CreditScore(c.SlotIndex, c.Object.Item.ScoreValue)
			metrics.RecordCatch(c.Object.Item.ID)
		}
		after := e.falling.Stats()
		for range after.Spawned - before.Spawned {
			metrics.RecordSpawn()
		}
		for range after.Missed - before.Missed {
			metrics.RecordMiss()
		}
	}

	e.session.Advance(dt)
	e.publish()

	took := time.Since(began)
	metrics.RecordTick(float64(took)/msPerNs, took > e.period)
	metrics.UpdateConfirmedParticipants(e.personCount)
	metrics.UpdateActiveSlots(e.slots.ActiveCount())
	metrics.UpdateFallingObjects(len(e.falling.Objects()))
	metrics.UpdateSessionScore(e.ledger.Total())
}

// countParticipants returns the confirmed participant count. Sources that
// already debounce report it directly; raw counts go through the engine's
// debouncer. A frame older than the leave timeout counts as empty.
func (e *Engine) countParticipants(frame model.Frame, seq uint64, now time.Time) int {
	raw := 0
	if seq > 0 && (frame.At.IsZero() || now.Sub(frame.At) <= e.leaveTimeout) {
		if frame.Confirmed {
			return frame.PersonCount
		}
		raw = frame.PersonCount
	}
	count, _ := e.debouncer.Observe(raw, now)
	return count
}

// Multiplier maps a confirmed count, clamped to [1, len(table)], to its
// speed factor.
func Multiplier(count int, table []float64) float64 {
	if len(table) == 0 {
		return 1
	}
	i := min(max(count, 1), len(table)) - 1
	return table[i]
}

// TriggerStart leaves TITLE. It fails with ErrNotTitle in any other phase.
func (e *Engine) TriggerStart() error {
	e.lifeMu.Lock()
	stopped := e.stopped
	e.lifeMu.Unlock()
	if stopped {
		return ErrStopped
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.session.TriggerStart() {
		return fmt.Errorf("%w: phase is %s", ErrNotTitle, e.session.Phase())
	}
	e.publish()
	return nil
}

// Drop places the catalog item itemID at the top of lane, counted from
// zero. It only works during PLAY.
func (e *Engine) Drop(lane int, itemID string) error {
	item, ok := e.catalog.Lookup(itemID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownItem, itemID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if phase := e.session.Phase(); phase != model.PhasePlay {
		return fmt.Errorf("%w: phase is %s", ErrNotPlaying, phase)
	}
	e.falling.SpawnInLane(lane, item)
	metrics.RecordSpawn()
	e.publish()
	return nil
}

// Pointer applies a pointer fallback sample. It reports whether a slot
// accepted it; samples are refused while primary tracking is fresh.
func (e *Engine) Pointer(p model.PointerSample) bool {
	if p.At.IsZero() {
		p.At = e.clock()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots.ApplyPointer(p, p.At)
}

// Frames returns the sink sensor sources publish into.
func (e *Engine) Frames() sensor.Sink { return e.frames }

// Snapshot returns the state published by the last tick.
func (e *Engine) Snapshot() types.Snapshot {
	return *e.snap.Load()
}

// Phase returns the current phase.
func (e *Engine) Phase() model.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Phase()
}

func (e *Engine) enterPlay(id string) {
	e.ledger.Reset()
	e.slots.ResetScores()
	e.falling.Clear()
	e.logger.Info(context.Background(), "session started", logger.String("session", id))
}

func (e *Engine) transitioned(t session.Transition) {
	metrics.RecordPhaseTransition(t.From.String(), t.To.String(), t.To.Ordinal())
	if t.From == model.PhasePlay {
		e.falling.Clear()
		e.logger.Info(context.Background(), "session finished",
			logger.Int("score", e.ledger.Total()),
			logger.Int("catches", e.ledger.Snapshot().Catches))
	}
	e.logger.Debug(context.Background(), "phase changed",
		logger.String("from", t.From.String()), logger.String("to", t.To.String()))
}

// publish stores an immutable snapshot. Called with mu held.
func (e *Engine) publish() {
	st := e.session.State()
	led := e.ledger.Snapshot()

	s := &types.Snapshot{
		Tick:           e.tick,
		Phase:          st.Phase.String(),
		PhaseElapsedMS: st.PhaseElapsed.Milliseconds(),
		SessionID:      st.SessionID,
		Score:          led.Total,
		RaritySum:      led.RaritySum,
		Histogram:      led.Histogram,
		Favorite:       st.Favorite,
		PersonCount:    e.personCount,
		Multiplier:     e.multiplier,
		Ranking:        e.cachedToday(),
	}
	for _, sl := range e.slots.Slots() {
		s.Slots = append(s.Slots, types.Slot{
			Index: sl.Index, Active: sl.Active, X: sl.X, Y: sl.Y, Score: sl.Score, Fallback: sl.Fallback,
		})
	}
	objects := e.falling.Objects()
	s.Objects = make([]types.Object, 0, len(objects))
	for _, o := range objects {
		s.Objects = append(s.Objects, types.Object{ID: o.ID, Lane: o.Lane, X: o.X, Y: o.Y, ItemID: o.Item.ID})
	}
	e.snap.Store(s)
}

// GetStats returns engine statistics for monitoring.
func (e *Engine) GetStats() map[string]interface{} {
	e.lifeMu.Lock()
	started := e.started
	e.lifeMu.Unlock()

	e.mu.Lock()
	fs := e.falling.Stats()
	stats := map[string]interface{}{
		"started":         started,
		"tick":            e.tick,
		"phase":           e.session.Phase().String(),
		"personCount":     e.personCount,
		"multiplier":      e.multiplier,
		"activeSlots":     e.slots.ActiveCount(),
		"slotViolations":  e.slots.Violations(),
		"fallingObjects":  len(e.falling.Objects()),
		"spawned":         fs.Spawned,
		"caught":          fs.Caught,
		"missed":          fs.Missed,
		"score":           e.ledger.Total(),
		"catalogItems":    e.catalog.Len(),
		"recorderPending": e.queue.Len(context.Background()),
		"recordedIDs":     e.seen.Size(),
	}
	e.mu.Unlock()

	if e.source != nil {
		stats["source"] = e.source.Name()
	}
	stats["rankingToday"] = len(e.cachedToday())
	return stats
}
