package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carries the ledger core's instrumentation. One instance is built
// at startup and threaded through the engine and reconciler.
type Metrics struct {
	TransfersTotal   *prometheus.CounterVec
	CommitDuration   prometheus.Histogram
	PendingExternal  prometheus.Gauge
	ReconcilerRuns   *prometheus.CounterVec
	StaleReleased    prometheus.Counter
	NotificationsOut *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		TransfersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ovomonie",
				Subsystem: "ledger",
				Name:      "transfers_total",
				Help:      "Transfer intents processed, partitioned by category and outcome.",
			},
			[]string{"category", "outcome"},
		),
		CommitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "ovomonie",
				Subsystem: "ledger",
				Name:      "commit_duration_seconds",
				Help:      "Wall time of the atomic commit unit.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		PendingExternal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ovomonie",
				Subsystem: "ledger",
				Name:      "pending_external_transfers",
				Help:      "Rail transfers awaiting a terminal outcome.",
			},
		),
		ReconcilerRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ovomonie",
				Subsystem: "ledger",
				Name:      "reconciler_runs_total",
				Help:      "Reconciler sweeps partitioned by result.",
			},
			[]string{"result"},
		),
		StaleReleased: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ovomonie",
				Subsystem: "ledger",
				Name:      "stale_reservations_released_total",
				Help:      "Pending idempotency reservations released by the janitor.",
			},
		),
		NotificationsOut: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ovomonie",
				Subsystem: "notify",
				Name:      "notifications_total",
				Help:      "Notifications dispatched, partitioned by result.",
			},
			[]string{"result"},
		),
	}
}
