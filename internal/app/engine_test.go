package service_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/mangacatch/internal/adapters/repository"
	"github.com/okian/mangacatch/internal/adapters/sensor"
	service "github.com/okian/mangacatch/internal/app"
	"github.com/okian/mangacatch/internal/domain/catalog"
	"github.com/okian/mangacatch/internal/domain/falling"
	"github.com/okian/mangacatch/internal/domain/model"
	"github.com/okian/mangacatch/internal/domain/types"
	"github.com/okian/mangacatch/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const step = 10 * time.Millisecond

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func shortPhases() map[model.Phase]time.Duration {
	return map[model.Phase]time.Duration{
		model.PhaseBoot:      100 * time.Millisecond,
		model.PhaseTutorial:  100 * time.Millisecond,
		model.PhaseCountdown: 100 * time.Millisecond,
		model.PhasePlay:      5 * time.Second,
		model.PhaseResult:    100 * time.Millisecond,
		model.PhaseRecommend: 100 * time.Millisecond,
		model.PhasePhoto:     100 * time.Millisecond,
		model.PhaseRanking:   100 * time.Millisecond,
	}
}

// run steps the engine until cond holds or limit elapses, optionally
// publishing a frame before every step.
func run(e *service.Engine, clock *fakeClock, limit time.Duration, frame func(now time.Time) *model.Frame, cond func() bool) bool {
	for elapsed := time.Duration(0); elapsed <= limit; elapsed += step {
		now := clock.Advance(step)
		if frame != nil {
			if f := frame(now); f != nil {
				e.Frames().Publish(*f)
			}
		}
		e.Step(now)
		if cond != nil && cond() {
			return true
		}
	}
	return cond == nil
}

func phaseIs(e *service.Engine, p model.Phase) func() bool {
	return func() bool { return e.Snapshot().Phase == p.String() }
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestEngine_New(t *testing.T) {
	Convey("Given a new engine with default options", t, func() {
		e, err := service.New(service.WithManualTick())
		So(err, ShouldBeNil)

		Convey("Then it starts in BOOT with empty slots and ranking", func() {
			s := e.Snapshot()
			So(s.Phase, ShouldEqual, "BOOT")
			So(s.Slots, ShouldHaveLength, 3)
			for _, sl := range s.Slots {
				So(sl.Active, ShouldBeFalse)
			}
			So(s.Objects, ShouldBeEmpty)
			So(s.Ranking, ShouldBeEmpty)
			So(s.Multiplier, ShouldEqual, 1.0)
		})

		Convey("Then stats describe an idle engine", func() {
			stats := e.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["phase"], ShouldEqual, "BOOT")
			So(stats["catalogItems"], ShouldEqual, 10)
		})
	})
}

func TestMultiplier(t *testing.T) {
	Convey("Given the default speed table", t, func() {
		table := service.DefaultSpeedMultipliers
		So(service.Multiplier(0, table), ShouldEqual, 1.0)
		So(service.Multiplier(1, table), ShouldEqual, 1.0)
		So(service.Multiplier(2, table), ShouldEqual, 1.2)
		So(service.Multiplier(3, table), ShouldEqual, 1.5)
		So(service.Multiplier(7, table), ShouldEqual, 1.5)
		So(service.Multiplier(2, nil), ShouldEqual, 1.0)
	})
}

func TestEngine_PhaseCycle(t *testing.T) {
	Convey("Given an engine with short phases", t, func() {
		clock := newFakeClock()
		e, err := service.New(
			service.WithManualTick(),
			service.WithClock(clock.Now),
			service.WithPhaseDurations(shortPhases()),
			service.WithSeed(1),
		)
		So(err, ShouldBeNil)

		Convey("Start is refused outside TITLE", func() {
			So(errors.Is(e.TriggerStart(), service.ErrNotTitle), ShouldBeTrue)
		})

		Convey("BOOT ends on its own and TITLE waits for a start", func() {
			So(run(e, clock, time.Second, nil, phaseIs(e, model.PhaseTitle)), ShouldBeTrue)
			run(e, clock, 2*time.Second, nil, nil)
			So(e.Phase(), ShouldEqual, model.PhaseTitle)

			Convey("A start runs the whole cycle back to TITLE", func() {
				So(e.TriggerStart(), ShouldBeNil)
				So(errors.Is(e.TriggerStart(), service.ErrNotTitle), ShouldBeTrue)

				var seen []string
				run(e, clock, 10*time.Second, nil, func() bool {
					p := e.Snapshot().Phase
					if len(seen) == 0 || seen[len(seen)-1] != p {
						seen = append(seen, p)
					}
					return p == "TITLE"
				})
				So(seen, ShouldResemble, []string{
					"TUTORIAL", "COUNTDOWN", "PLAY", "RESULT", "RECOMMEND", "PHOTO", "RANKING", "TITLE",
				})
			})
		})
	})
}

func TestEngine_Play(t *testing.T) {
	Convey("Given an engine with one lane dropping items continuously", t, func() {
		clock := newFakeClock()
		e, err := service.New(
			service.WithManualTick(),
			service.WithClock(clock.Now),
			service.WithPhaseDurations(shortPhases()),
			service.WithSeed(7),
			service.WithFallingOptions(
				falling.WithLanes(1),
				falling.WithSpawnChance(1),
				falling.WithLaneCooldown(20),
			),
		)
		So(err, ShouldBeNil)
		So(e.Start(context.Background()), ShouldBeNil)
		defer e.Stop()

		// One tracked player standing under the only lane.
		player := func(now time.Time) *model.Frame {
			return &model.Frame{
				Source: "test", At: now, PersonCount: 1,
				Detections: []model.Detection{{ExternalID: 1, X: 0.5, Y: 0.5}},
			}
		}

		So(run(e, clock, time.Second, player, phaseIs(e, model.PhaseTitle)), ShouldBeTrue)
		So(e.TriggerStart(), ShouldBeNil)
		So(run(e, clock, time.Second, player, phaseIs(e, model.PhasePlay)), ShouldBeTrue)
		sessionID := e.Snapshot().SessionID
		So(sessionID, ShouldNotBeEmpty)

		Convey("The player catches items and the score is credited once per catch", func() {
			So(run(e, clock, 6*time.Second, player, phaseIs(e, model.PhaseResult)), ShouldBeTrue)
			s := e.Snapshot()
			So(s.Score, ShouldBeGreaterThan, 0)
			So(s.Slots[0].Active, ShouldBeTrue)
			So(s.Slots[0].Score, ShouldEqual, s.Score)
			So(s.Objects, ShouldBeEmpty)
			So(s.Favorite, ShouldNotBeEmpty)

			total := 0
			for _, n := range s.Histogram {
				total += n
			}
			So(total, ShouldBeGreaterThan, 0)
			stats := e.GetStats()
			So(stats["caught"], ShouldEqual, uint64(total))

			Convey("The result is recorded in today's ranking after PHOTO", func() {
				So(run(e, clock, 2*time.Second, player, phaseIs(e, model.PhaseTitle)), ShouldBeTrue)
				So(eventually(func() bool {
					list, err := e.TodayRanking(context.Background())
					return err == nil && len(list) == 1
				}), ShouldBeTrue)

				list, _ := e.TodayRanking(context.Background())
				So(list[0].Rank, ShouldEqual, 1)
				So(list[0].SessionID, ShouldEqual, sessionID)
				So(list[0].Score, ShouldEqual, s.Score)
				So(list[0].RaritySum, ShouldEqual, s.RaritySum)

				e.Step(clock.Advance(step))
				So(e.Snapshot().Ranking, ShouldHaveLength, 1)
			})
		})

		Convey("A second session starts from zero", func() {
			So(run(e, clock, 10*time.Second, player, phaseIs(e, model.PhaseTitle)), ShouldBeTrue)
			So(e.TriggerStart(), ShouldBeNil)
			So(run(e, clock, time.Second, player, phaseIs(e, model.PhasePlay)), ShouldBeTrue)
			s := e.Snapshot()
			So(s.SessionID, ShouldNotEqual, sessionID)
			So(s.Score, ShouldEqual, 0)
			So(s.Slots[0].Score, ShouldEqual, 0)
		})
	})
}

func TestEngine_ThreeClusters(t *testing.T) {
	Convey("Given three people in front of the rangefinder", t, func() {
		clock := newFakeClock()
		e, err := service.New(
			service.WithManualTick(),
			service.WithClock(clock.Now),
			service.WithPhaseDurations(shortPhases()),
			service.WithFallingOptions(
				falling.WithSpawnChance(0),
				falling.WithCollider(falling.Radius{R: 200}),
			),
		)
		So(err, ShouldBeNil)
		rf := sensor.NewRangefinderSource("/dev/null", 115200, sensor.WithArea(4000, 3000))

		person := func(cx float64) []model.RawPoint {
			var pts []model.RawPoint
			for dx := -200.0; dx <= 200; dx += 100 {
				pts = append(pts, model.RawPoint{X: cx + dx, Y: 1500})
			}
			return pts
		}
		var scan []model.RawPoint
		for _, cx := range []float64{-1200, 0, 1200} {
			scan = append(scan, person(cx)...)
		}
		frame := func(now time.Time) *model.Frame {
			f := rf.ProcessScan(scan, now)
			return &f
		}

		Convey("All three slots fill at once but the speed waits for the hold", func() {
			run(e, clock, 0, frame, nil)
			s := e.Snapshot()
			for _, sl := range s.Slots {
				So(sl.Active, ShouldBeTrue)
				So(sl.Fallback, ShouldBeFalse)
			}
			xs := []float64{s.Slots[0].X, s.Slots[1].X, s.Slots[2].X}
			slices.Sort(xs)
			for i, want := range []float64{384, 960, 1536} {
				So(xs[i], ShouldAlmostEqual, want, 1e-6)
			}
			So(s.PersonCount, ShouldEqual, 0)
			So(s.Multiplier, ShouldEqual, 1.0)

			So(run(e, clock, 2*time.Second, frame, func() bool { return e.Snapshot().PersonCount == 3 }), ShouldBeTrue)
			So(e.Snapshot().Multiplier, ShouldEqual, 1.5)
		})

		Convey("An object dropped over the middle person is caught by them exactly once", func() {
			So(run(e, clock, 2*time.Second, frame, func() bool { return e.Snapshot().PersonCount == 3 }), ShouldBeTrue)
			So(run(e, clock, time.Second, frame, phaseIs(e, model.PhaseTitle)), ShouldBeTrue)
			So(e.TriggerStart(), ShouldBeNil)
			So(run(e, clock, time.Second, frame, phaseIs(e, model.PhasePlay)), ShouldBeTrue)
			So(e.Snapshot().Multiplier, ShouldEqual, 1.5)

			item := catalog.Default().At(0)
			So(e.Drop(2, item.ID), ShouldBeNil)
			objects := e.Snapshot().Objects
			So(objects, ShouldHaveLength, 1)
			So(objects[0].Lane, ShouldEqual, 2)

			caught := func() bool { return e.Snapshot().Histogram[item.ID] > 0 }
			So(run(e, clock, 3*time.Second, frame, caught), ShouldBeTrue)
			run(e, clock, time.Second, frame, nil)

			s := e.Snapshot()
			So(s.Phase, ShouldEqual, "PLAY")
			So(s.Objects, ShouldBeEmpty)
			So(s.Score, ShouldEqual, item.ScoreValue)
			So(s.Histogram, ShouldResemble, map[string]int{item.ID: 1})
			for _, sl := range s.Slots {
				want := 0
				if sl.X > 900 && sl.X < 1020 {
					want = item.ScoreValue
				}
				So(sl.Score, ShouldEqual, want)
			}
		})

		Convey("Objects can only be dropped during play and from the catalog", func() {
			So(errors.Is(e.Drop(2, catalog.Default().At(0).ID), service.ErrNotPlaying), ShouldBeTrue)
			So(run(e, clock, time.Second, frame, phaseIs(e, model.PhaseTitle)), ShouldBeTrue)
			So(e.TriggerStart(), ShouldBeNil)
			So(run(e, clock, time.Second, frame, phaseIs(e, model.PhasePlay)), ShouldBeTrue)
			So(errors.Is(e.Drop(2, "no_such_item"), service.ErrUnknownItem), ShouldBeTrue)
		})

		Convey("When everyone leaves the slots time out and the speed drops", func() {
			run(e, clock, 2*time.Second, frame, nil)
			empty := func(now time.Time) *model.Frame {
				f := rf.ProcessScan(nil, now)
				return &f
			}
			So(run(e, clock, 5*time.Second, empty, func() bool {
				s := e.Snapshot()
				return s.PersonCount == 0 && !s.Slots[0].Active && !s.Slots[1].Active && !s.Slots[2].Active
			}), ShouldBeTrue)
			So(e.Snapshot().Multiplier, ShouldEqual, 1.0)
		})
	})
}

func TestEngine_RawCounts(t *testing.T) {
	Convey("Given a source reporting raw counts", t, func() {
		clock := newFakeClock()
		e, err := service.New(service.WithManualTick(), service.WithClock(clock.Now),
			service.WithHoldTime(500*time.Millisecond))
		So(err, ShouldBeNil)
		two := func(now time.Time) *model.Frame {
			return &model.Frame{At: now, PersonCount: 2, Detections: []model.Detection{
				{ExternalID: 1, X: 0.3, Y: 0.5}, {ExternalID: 2, X: 0.7, Y: 0.5},
			}}
		}

		Convey("The engine debounces the count itself", func() {
			run(e, clock, 400*time.Millisecond, two, nil)
			So(e.Snapshot().PersonCount, ShouldEqual, 0)
			So(run(e, clock, 200*time.Millisecond, two, func() bool { return e.Snapshot().PersonCount == 2 }), ShouldBeTrue)
			So(e.Snapshot().Multiplier, ShouldEqual, 1.2)

			Convey("A silent source counts as nobody once its frame is stale", func() {
				So(run(e, clock, 3*time.Second, nil, func() bool { return e.Snapshot().PersonCount == 0 }), ShouldBeTrue)
			})
		})

		Convey("The configured leave timeout decides when a frame is stale", func() {
			short, err := service.New(service.WithManualTick(), service.WithClock(clock.Now),
				service.WithHoldTime(500*time.Millisecond),
				service.WithLeaveTimeout(300*time.Millisecond))
			So(err, ShouldBeNil)
			So(run(short, clock, time.Second, two, func() bool { return short.Snapshot().PersonCount == 2 }), ShouldBeTrue)

			// 300 ms until stale plus the 500 ms hold; the default timeout would need 2 s.
			So(run(short, clock, time.Second, nil, func() bool { return short.Snapshot().PersonCount == 0 }), ShouldBeTrue)
			So(short.Snapshot().Slots[0].Active, ShouldBeFalse)
		})
	})
}

func TestEngine_Pointer(t *testing.T) {
	Convey("Given an engine without tracking input", t, func() {
		clock := newFakeClock()
		e, err := service.New(service.WithManualTick(), service.WithClock(clock.Now))
		So(err, ShouldBeNil)

		Convey("A pointer sample takes a fallback slot", func() {
			So(e.Pointer(model.PointerSample{X: 0.25, Y: 0.1}), ShouldBeTrue)
			e.Step(clock.Advance(step))
			s := e.Snapshot()
			So(s.Slots[0].Active, ShouldBeTrue)
			So(s.Slots[0].Fallback, ShouldBeTrue)
			So(s.Slots[0].X, ShouldEqual, 480)
		})

		Convey("Pointer samples are refused while tracking is fresh", func() {
			e.Frames().Publish(model.Frame{At: clock.Now(), PersonCount: 1,
				Detections: []model.Detection{{ExternalID: 4, X: 0.5, Y: 0.5}}})
			e.Step(clock.Advance(step))
			So(e.Pointer(model.PointerSample{X: 0.25, Y: 0.1}), ShouldBeFalse)
		})
	})
}

// brokenStore fails every read.
type brokenStore struct{ repository.Store }

func (brokenStore) Day(context.Context, string) ([]model.RankingEntry, error) {
	return nil, &repository.PersistenceError{Op: "read", Err: errors.New("disk gone")}
}

func (brokenStore) Close() error { return nil }

func TestEngine_Ranking(t *testing.T) {
	Convey("Given an engine with a seeded memory store", t, func() {
		clock := newFakeClock()
		store := repository.NewMemoryStore()
		at := clock.Now()
		_, err := store.Insert(context.Background(), "2026-06-30", model.RankingEntry{SessionID: "old", Score: 9, AchievedAt: at})
		So(err, ShouldBeNil)
		e, err := service.New(service.WithManualTick(), service.WithClock(clock.Now), service.WithStore(store))
		So(err, ShouldBeNil)

		Convey("Any valid day can be read", func() {
			list, err := e.Ranking(context.Background(), "2026-06-30")
			So(err, ShouldBeNil)
			want := []types.Entry{{Rank: 1, SessionID: "old", Score: 9, AchievedAt: at}}
			So(cmp.Diff(want, list), ShouldBeEmpty)
		})

		Convey("Today starts empty", func() {
			list, err := e.TodayRanking(context.Background())
			So(err, ShouldBeNil)
			So(list, ShouldBeEmpty)
		})

		Convey("A malformed day is an error", func() {
			_, err := e.Ranking(context.Background(), "yesterday")
			So(errors.Is(err, repository.ErrInvalidDay), ShouldBeTrue)
		})
	})

	Convey("Given a store that cannot be read", t, func() {
		e, err := service.New(service.WithManualTick(), service.WithStore(brokenStore{}))
		So(err, ShouldBeNil)
		list, err := e.TodayRanking(context.Background())
		So(err, ShouldBeNil)
		So(list, ShouldBeEmpty)
	})
}

func TestEngine_Lifecycle(t *testing.T) {
	Convey("Given an engine ticking on its own with a simulated source", t, func() {
		e, err := service.New(
			service.WithTickRate(120),
			service.WithSource(sensor.NewSimulatedSource(2, 5*time.Millisecond, 3)),
		)
		So(err, ShouldBeNil)
		So(e.Start(context.Background()), ShouldBeNil)
		So(e.Start(context.Background()), ShouldBeNil)

		Convey("Ticks advance and the walkers take slots", func() {
			So(eventually(func() bool {
				s := e.Snapshot()
				return s.Tick > 5 && s.Slots[0].Active && s.Slots[1].Active
			}), ShouldBeTrue)
			So(e.GetStats()["source"], ShouldEqual, "simulated")
			e.Stop()

			Convey("Once stopped, ticks stop and starts are refused", func() {
				tick := e.Snapshot().Tick
				time.Sleep(50 * time.Millisecond)
				So(e.Snapshot().Tick, ShouldEqual, tick)
				So(errors.Is(e.TriggerStart(), service.ErrStopped), ShouldBeTrue)
				So(errors.Is(e.Start(context.Background()), service.ErrStopped), ShouldBeTrue)
				e.Stop()
			})
		})
	})
}
