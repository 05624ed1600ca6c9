package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should use the podium namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.supersessions.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "podium_records_supersessions_total")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("sub"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.cyclesDetected.Inc()

			Convey("Then names and constant labels follow the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() != "test_sub_history_cycles_detected_total" {
						continue
					}
					found = true
					So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					So(f.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, float64(1))
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a configured global manager", t, func() {
		m := Configure(WithNamespace("rec"))

		Convey("When recording submissions", func() {
			RecordSubmission(OutcomeAccepted)
			RecordSubmission(OutcomeAccepted)
			RecordSubmission(OutcomeRejected)
			RecordSubmitLatency(1.5)
			RecordSupersession()

			Convey("Then counters are labelled by outcome", func() {
				So(testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeAccepted)), ShouldEqual, float64(2))
				So(testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeRejected)), ShouldEqual, float64(1))
				So(testutil.ToFloat64(m.supersessions), ShouldEqual, float64(1))
			})
		})

		Convey("When tracking current records", func() {
			UpdateCurrentRecords(3)
			IncCurrentRecords()
			So(testutil.ToFloat64(m.currentRecords), ShouldEqual, float64(4))
		})

		Convey("When recording chain anomalies", func() {
			RecordTraversalLength(4)
			RecordCycleDetected()
			RecordBrokenChain()
			RecordExtraSuccessors()
			RecordEstimate(5)
			So(testutil.ToFloat64(m.cyclesDetected), ShouldEqual, float64(1))
			So(testutil.ToFloat64(m.brokenChains), ShouldEqual, float64(1))
			So(testutil.ToFloat64(m.extraSuccessors), ShouldEqual, float64(1))
			So(testutil.ToFloat64(m.estimatesDerived), ShouldEqual, float64(5))
		})

		Convey("When recording store metrics", func() {
			RecordStoreLatency("badger", "within_key", 2)
			RecordStoreConflict("badger")
			RecordStoreConflict("badger")
			RecordStoreError("sqlite", "get")
			So(testutil.ToFloat64(m.storeConflicts.WithLabelValues("badger")), ShouldEqual, float64(2))
			So(testutil.ToFloat64(m.storeErrors.WithLabelValues("sqlite", "get")), ShouldEqual, float64(1))
		})

		Convey("When recording queue and worker metrics", func() {
			So(func() {
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(3)
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(2)
				RecordWorkerProcessingLatency(1)
				RecordWorkerError()
				RecordErrorByComponent("worker", "store")
			}, ShouldNotPanic)
			So(testutil.ToFloat64(m.queueSize), ShouldEqual, float64(10))
			So(testutil.ToFloat64(m.errorRateByComponent.WithLabelValues("worker", "store")), ShouldEqual, float64(1))
		})

		Convey("Then the registry exposed is the configured one", func() {
			So(GetRegistry() == m.registry, ShouldBeTrue)
		})
	})
}

func TestMetricsDisabled(t *testing.T) {
	Convey("Given a disabled manager", t, func() {
		m := Configure(WithNamespace("off"), WithMetricsEnabled(false))
		RecordSubmission(OutcomeAccepted)
		RecordSupersession()

		Convey("Then nothing is recorded", func() {
			So(testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeAccepted)), ShouldEqual, float64(0))
			So(testutil.ToFloat64(m.supersessions), ShouldEqual, float64(0))
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		m := Configure(WithNamespace("conc"))
		const workers, each = 8, 100

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < each; j++ {
					RecordSubmission(OutcomeAccepted)
					RecordStoreLatency("memory", "get", 0.1)
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			So(testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeAccepted)), ShouldEqual, float64(workers*each))
		})
	})
}
