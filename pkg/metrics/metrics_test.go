package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should register the engine metrics", func() {
				So(manager, ShouldNotBeNil)
				manager.ticks.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("arcade"),
				WithHistogramBuckets([]float64{1, 2, 4}),
				WithCustomLabels(map[string]string{"site": "hall-a"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the names and constant labels should follow the options", func() {
				manager.spawns.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_arcade_spawns_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "hall-a")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording catches", func() {
			before := testutil.ToFloat64(globalManager.catches.WithLabelValues("chara_001"))
			RecordCatch("chara_001")
			RecordCatch("chara_001")

			Convey("Then the per-item counter should grow", func() {
				after := testutil.ToFloat64(globalManager.catches.WithLabelValues("chara_001"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording a tick overrun", func() {
			before := testutil.ToFloat64(globalManager.tickOverruns)
			RecordTick(20, true)
			RecordTick(1, false)

			Convey("Then only the overrun is counted as such", func() {
				So(testutil.ToFloat64(globalManager.tickOverruns)-before, ShouldEqual, 1)
			})
		})

		Convey("When a phase transition is recorded", func() {
			RecordPhaseTransition("TITLE", "TUTORIAL", 2)

			Convey("Then the phase gauge should hold the ordinal", func() {
				So(testutil.ToFloat64(globalManager.phase), ShouldEqual, 2)
			})
		})

		Convey("When updating gauges and error counters", func() {
			So(func() {
				UpdateActiveSlots(3)
				UpdateConfirmedParticipants(2)
				UpdateFallingObjects(7)
				UpdateSessionScore(450)
				RecordSensorFrame("telemetry")
				RecordSensorDropped("telemetry", "malformed")
				RecordSensorRestart("rangefinder")
				RecordSlotRejection()
				RecordSlotTimeout()
				RecordSpawn()
				RecordMiss()
				RecordRankingWrite(3)
				RecordRankingError("read")
				UpdateRecorderQueueSize(1)
				RecordRecorderDropped("queue_full")
				RecordHTTPRequest("state", "GET", "200")
				RecordHTTPRequestDuration("state", "GET", "200", 1)
				RecordHTTPError("start", "conflict")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)

			Convey("Then the gauges should report the last value", func() {
				So(testutil.ToFloat64(globalManager.activeSlots), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.sessionScore), ShouldEqual, 450)
			})
		})

		Convey("Then the registry getter should return the custom registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
