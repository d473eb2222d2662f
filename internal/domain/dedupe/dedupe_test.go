package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/mangacatch/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("It starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("A new session id is recorded", func() {
			So(d.SeenAndRecord(ctx, "session-1"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 1)

			Convey("And a second submission is reported as seen", func() {
				So(d.SeenAndRecord(ctx, "session-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And an unrecorded id is accepted again", func() {
				d.Unrecord(ctx, "session-1")
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "session-1"), ShouldBeFalse)
			})
		})

		Convey("Unrecording an unknown id is a no-op", func() {
			d.Unrecord(ctx, "missing")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a deduper bounded to three ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := range 4 {
			d.SeenAndRecord(ctx, fmt.Sprintf("s%d", i))
		}

		Convey("The oldest id is evicted first", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "s3"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "s1"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "s0"), ShouldBeFalse)
		})

		Convey("An unrecorded id is forgotten before eviction reaches it", func() {
			d.Unrecord(ctx, "s2")
			So(d.Size(), ShouldEqual, 2)
			So(d.SeenAndRecord(ctx, "s2"), ShouldBeFalse)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := range 5000 {
			d.SeenAndRecord(ctx, fmt.Sprintf("s%d", i))
		}
		So(d.Size(), ShouldEqual, 5000)
		So(d.SeenAndRecord(ctx, "s0"), ShouldBeTrue)
	})

	Convey("Given concurrent submissions of the same id", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var fresh atomic.Int32
		var wg sync.WaitGroup
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "same") {
					fresh.Add(1)
				}
			}()
		}
		wg.Wait()
		So(fresh.Load(), ShouldEqual, 1)
	})
}
