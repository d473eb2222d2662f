package slots

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/mangacatch/internal/domain/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func det(id int, x float64) model.Detection { return model.Detection{ExternalID: id, X: x, Y: 0.5} }

func TestApplyDetections(t *testing.T) {
	Convey("Given a slot manager on a 1000x500 screen", t, func() {
		m := New(WithScreen(1000, 500))

		Convey("When the same detection is applied twice", func() {
			first := m.ApplyDetections([]model.Detection{det(7, 0.25)}, t0)
			second := m.ApplyDetections([]model.Detection{det(7, 0.30)}, t0.Add(100*time.Millisecond))

			Convey("Then the identity keeps its slot and only the position moves", func() {
				So(first.Assigned, ShouldEqual, 1)
				So(second.Refreshed, ShouldEqual, 1)
				So(m.ActiveCount(), ShouldEqual, 1)
				s := m.Active()[0]
				So(s.Index, ShouldEqual, 1)
				So(s.X, ShouldAlmostEqual, 300, 1e-9)
				So(s.Y, ShouldAlmostEqual, 250, 1e-9)
				So(s.LastSeen, ShouldEqual, t0.Add(100*time.Millisecond))
			})
		})

		Convey("When four identities arrive", func() {
			res := m.ApplyDetections([]model.Detection{det(1, .1), det(2, .2), det(3, .3), det(4, .4)}, t0)

			Convey("Then the fourth is rejected and nobody is evicted", func() {
				So(res.Assigned, ShouldEqual, 3)
				So(res.Rejected, ShouldEqual, 1)
				ids := []int{}
				for _, s := range m.Active() {
					ids = append(ids, s.ExternalID)
				}
				So(ids, ShouldResemble, []int{1, 2, 3})
				So(m.Violations(), ShouldEqual, 0)
			})
		})

		Convey("When a detection carries no identity", func() {
			m.ApplyDetections([]model.Detection{det(0, .5), det(-3, .5)}, t0)
			Convey("Then it is ignored", func() {
				So(m.ActiveCount(), ShouldEqual, 0)
			})
		})

		Convey("When positions fall outside [0,1]", func() {
			m.ApplyDetections([]model.Detection{{ExternalID: 1, X: 1.4, Y: -0.2}}, t0)
			Convey("Then they are clamped to the screen", func() {
				s := m.Active()[0]
				So(s.X, ShouldEqual, 1000)
				So(s.Y, ShouldEqual, 0)
			})
		})
	})
}

func TestSweep(t *testing.T) {
	Convey("Given three occupied slots", t, func() {
		m := New()
		m.ApplyDetections([]model.Detection{det(1, .1), det(2, .2), det(3, .3)}, t0)

		Convey("When slot 2 stops refreshing past the leave timeout", func() {
			m.ApplyDetections([]model.Detection{det(1, .1), det(3, .3)}, t0.Add(1000*time.Millisecond))
			released := m.Sweep(t0.Add(1501 * time.Millisecond))

			Convey("Then only slot 2 is released", func() {
				So(released, ShouldResemble, []int{2})
				So(m.ActiveCount(), ShouldEqual, 2)
			})

			Convey("And a newcomer takes the lowest free index", func() {
				m.ApplyDetections([]model.Detection{det(9, .9)}, t0.Add(1600*time.Millisecond))
				var got Slot
				for _, s := range m.Active() {
					if s.ExternalID == 9 {
						got = s
					}
				}
				So(got.Index, ShouldEqual, 2)
			})

			Convey("And the old identity coming back is treated as new", func() {
				res := m.ApplyDetections([]model.Detection{det(2, .2)}, t0.Add(1600*time.Millisecond))
				So(res.Assigned, ShouldEqual, 1)
			})
		})

		Convey("When exactly the leave timeout has elapsed", func() {
			released := m.Sweep(t0.Add(DefaultLeaveTimeout))
			Convey("Then nothing is released yet", func() {
				So(released, ShouldBeEmpty)
			})
		})
	})
}

func TestApplyPointer(t *testing.T) {
	Convey("Given a slot manager with a 3s grace time", t, func() {
		m := New(WithScreen(1000, 500), WithGraceTime(3*time.Second))
		sample := model.PointerSample{X: 0.5, Y: 0.1}

		Convey("When no primary input was ever seen", func() {
			ok := m.ApplyPointer(sample, t0)
			Convey("Then the pointer takes a fallback slot near the bottom edge", func() {
				So(ok, ShouldBeTrue)
				s := m.Active()[0]
				So(s.Fallback, ShouldBeTrue)
				So(s.X, ShouldEqual, 500)
				So(s.Y, ShouldEqual, 500-DefaultPointerBaseline)
			})

			Convey("And a repeated pointer refreshes the same slot", func() {
				So(m.ApplyPointer(model.PointerSample{X: 0.2}, t0.Add(time.Second)), ShouldBeTrue)
				So(m.ActiveCount(), ShouldEqual, 1)
				So(m.Active()[0].X, ShouldEqual, 200)
			})
		})

		Convey("When the primary source refreshed within the grace time", func() {
			m.ApplyDetections([]model.Detection{det(1, .1)}, t0)
			ok := m.ApplyPointer(sample, t0.Add(2999*time.Millisecond))
			Convey("Then the pointer is ignored", func() {
				So(ok, ShouldBeFalse)
				So(m.ActiveCount(), ShouldEqual, 1)
			})
		})

		Convey("When the primary source has been silent for the grace time", func() {
			m.ApplyDetections([]model.Detection{det(1, .1), det(2, .2), det(3, .3)}, t0)
			full := m.ApplyPointer(sample, t0.Add(3*time.Second))
			m.Sweep(t0.Add(3 * time.Second))
			after := m.ApplyPointer(sample, t0.Add(3*time.Second))

			Convey("Then it never displaces a primary slot but fills a freed one", func() {
				So(full, ShouldBeFalse)
				So(after, ShouldBeTrue)
				So(m.Active()[0].Fallback, ShouldBeTrue)
			})
		})

		Convey("When a baseline of zero is configured", func() {
			m := New(WithScreen(1000, 500), WithPointerBaseline(0))
			m.ApplyPointer(model.PointerSample{X: 0.5, Y: 0.2}, t0)
			Convey("Then the pointer's own Y is used", func() {
				So(m.Active()[0].Y, ShouldEqual, 100)
			})
		})
	})
}

func TestScoresAndReset(t *testing.T) {
	Convey("Given two active slots", t, func() {
		m := New(WithMaxSlots(2))
		m.ApplyDetections([]model.Detection{det(1, .1), det(2, .2), det(3, .3)}, t0)

		Convey("Then the slot limit applies", func() {
			So(m.ActiveCount(), ShouldEqual, 2)
			So(m.Slots(), ShouldHaveLength, 2)
		})

		Convey("When scores are credited", func() {
			m.CreditScore(2, 100)
			m.CreditScore(2, 50)
			m.CreditScore(3, 10)
			m.CreditScore(0, 10)

			Convey("Then only valid active slots accumulate", func() {
				So(m.Slots()[1].Score, ShouldEqual, 150)
				So(m.Slots()[0].Score, ShouldEqual, 0)
			})

			Convey("And ResetScores keeps assignments", func() {
				m.ResetScores()
				So(m.Slots()[1].Score, ShouldEqual, 0)
				So(m.ActiveCount(), ShouldEqual, 2)
			})
		})

		Convey("When reset", func() {
			m.Reset()
			Convey("Then every slot is free again", func() {
				So(m.ActiveCount(), ShouldEqual, 0)
				So(m.ApplyPointer(model.PointerSample{X: .5}, t0), ShouldBeTrue)
			})
		})
	})
}

func TestStrictInvariants(t *testing.T) {
	Convey("Given a strict manager with a corrupted identity map", t, func() {
		m := New(WithStrict(true))
		m.ApplyDetections([]model.Detection{det(1, .1)}, t0)
		m.byID[99] = 0

		Convey("Then the next mutation panics with ErrInvariant", func() {
			var recovered any
			func() {
				defer func() { recovered = recover() }()
				m.ApplyDetections([]model.Detection{det(1, .2)}, t0)
			}()
			So(recovered, ShouldNotBeNil)
			err, ok := recovered.(error)
			So(ok, ShouldBeTrue)
			So(errors.Is(err, ErrInvariant), ShouldBeTrue)
		})

		Convey("And a lenient manager counts instead", func() {
			l := New()
			l.ApplyDetections([]model.Detection{det(1, .1)}, t0)
			l.byID[99] = 0
			l.ApplyDetections([]model.Detection{det(1, .2)}, t0)
			So(l.Violations(), ShouldEqual, 1)
		})
	})
}
