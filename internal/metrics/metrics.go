// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the pipeline's counters and histograms.
type Metrics struct {
	EvaluationsStarted   prometheus.Counter
	EvaluationsCompleted prometheus.Counter
	EvaluationsFailed    prometheus.Counter

	ThrottleEvents *prometheus.CounterVec

	ShipmentsSucceeded *prometheus.CounterVec
	ShipmentsFailed    *prometheus.CounterVec

	SignLatency prometheus.Histogram
}

// New creates and registers the instruments on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evalcore_evaluations_started_total",
			Help: "Evaluations accepted by intake.",
		}),
		EvaluationsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evalcore_evaluations_completed_total",
			Help: "Evaluations that reached the completed state.",
		}),
		EvaluationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evalcore_evaluations_failed_total",
			Help: "Evaluations that reached the failed state.",
		}),
		ThrottleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalcore_scheduler_throttle_events_total",
			Help: "Pacing delays taken by the call scheduler.",
		}, []string{"provider"}),
		ShipmentsSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalcore_evidence_shipments_succeeded_total",
			Help: "Evidence items shipped successfully.",
		}, []string{"storage_type"}),
		ShipmentsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalcore_evidence_shipments_failed_total",
			Help: "Evidence items that failed to ship.",
		}, []string{"storage_type"}),
		SignLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evalcore_repro_pack_sign_seconds",
			Help:    "Time spent building and signing repro packs.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.EvaluationsStarted, m.EvaluationsCompleted, m.EvaluationsFailed,
		m.ThrottleEvents, m.ShipmentsSucceeded, m.ShipmentsFailed, m.SignLatency,
	)
	return m
}
