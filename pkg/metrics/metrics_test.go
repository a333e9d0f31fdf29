package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithBPMBuckets([]float64{60, 90}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.sessionsStarted.WithLabelValues("synthetic").Inc()

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_sessions_started_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are passed", func() {
			manager := NewManager(WithNamespace(""), WithBPMBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "vitalcam")
				So(len(manager.bpmBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestSessionRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When a session starts and completes", func() {
			before := testutil.ToFloat64(globalManager.sessionsCompleted.WithLabelValues("result"))
			RecordSessionStarted("synthetic")
			So(testutil.ToFloat64(globalManager.activeSessions), ShouldEqual, 1)
			RecordSessionCompleted("result")

			Convey("Then the gauge returns to zero and the counter grows", func() {
				So(testutil.ToFloat64(globalManager.activeSessions), ShouldEqual, 0)
				So(testutil.ToFloat64(globalManager.sessionsCompleted.WithLabelValues("result")), ShouldEqual, before+1)
			})
		})

		Convey("When a non-contact frame is sampled", func() {
			sampled := testutil.ToFloat64(globalManager.framesSampled)
			rejected := testutil.ToFloat64(globalManager.framesNoTouch)
			RecordFrameSampled(false)
			RecordFrameSampled(true)

			Convey("Then both counters move accordingly", func() {
				So(testutil.ToFloat64(globalManager.framesSampled), ShouldEqual, sampled+2)
				So(testutil.ToFloat64(globalManager.framesNoTouch), ShouldEqual, rejected+1)
			})
		})
	})
}

func TestRecordersDoNotPanic(t *testing.T) {
	Convey("Every package-level recorder is safe to call", t, func() {
		So(func() {
			RecordSessionFailure("weak signal")
			RecordCaptureUnavailable("camera")
			RecordFrameDropped()
			RecordAnalysisLatency(1.5)
			RecordHeartRate(72)
			RecordSignalQuality("good")
			UpdateReportQueueSize(3)
			UpdateReportQueueCapacity(64)
			RecordReportEnqueued()
			RecordReportDropped()
			RecordReportDelivered("http", 12)
			RecordReportError("nats")
			UpdateReportWorkers(2)
			RecordHTTPRequest("/session", "POST", "202")
			RecordHTTPRequestDuration("/session", "POST", "202", 3)
			UpdateWebsocketClients(1)
			RecordErrorByComponent("api", "decode")
			UpdateSystemMemoryUsage(1 << 20)
			UpdateSystemGoroutineCount(10)
			RecordSystemGCPauseTime(0.2)
		}, ShouldNotPanic)
	})
}

func TestRegistryExposition(t *testing.T) {
	Convey("Given recorded metrics", t, func() {
		RecordHeartRate(80)

		Convey("Then the custom registry exposes them", func() {
			count, err := testutil.GatherAndCount(GetRegistry(), "vitalcam_ppg_heart_rate_bpm")
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 1)

			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "vitalcam_ppg_"), ShouldBeTrue)
			}
		})
	})
}
