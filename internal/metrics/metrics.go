// Package metrics holds the Prometheus collectors shared by the background
// cycles and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "taskradar"

var (
	// NotificationsProcessed counts notifications by applied action.
	NotificationsProcessed *prometheus.CounterVec

	// DecisionErrors counts failed notifications by error kind.
	DecisionErrors *prometheus.CounterVec

	// DecisionDuration observes decision collaborator latency.
	DecisionDuration prometheus.Histogram

	// PlacesSearches counts Phase B searches by outcome.
	PlacesSearches *prometheus.CounterVec

	// AlertsEnqueued counts proximity alerts placed on the queue.
	AlertsEnqueued prometheus.Counter

	// AlertsSuppressed counts in-range tasks held back by the cooldown.
	AlertsSuppressed prometheus.Counter

	// AlertsExpired counts alerts purged before a client drained them.
	AlertsExpired prometheus.Counter

	// CycleDuration observes scheduled cycle runtimes.
	CycleDuration *prometheus.HistogramVec

	// CycleErrors counts scheduled cycles that ended in error.
	CycleErrors *prometheus.CounterVec
)

func init() {
	NotificationsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "notifications_processed_total",
			Help:      "Notifications marked processed, by applied action",
		},
		[]string{"action"},
	)
	prometheus.MustRegister(NotificationsProcessed)

	DecisionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "decision_errors_total",
			Help:      "Notifications left unprocessed, by error kind",
		},
		[]string{"kind"},
	)
	prometheus.MustRegister(DecisionErrors)

	DecisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "decision_duration_seconds",
			Help:      "Latency of decision collaborator calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
	prometheus.MustRegister(DecisionDuration)

	PlacesSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "location",
			Name:      "searches_total",
			Help:      "Places searches, by outcome (results/no_results/error)",
		},
		[]string{"outcome"},
	)
	prometheus.MustRegister(PlacesSearches)

	AlertsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proximity",
		Name:      "alerts_enqueued_total",
		Help:      "Proximity alerts placed on the delivery queue",
	})
	prometheus.MustRegister(AlertsEnqueued)

	AlertsSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proximity",
		Name:      "alerts_suppressed_total",
		Help:      "In-range tasks not alerted because of the cooldown ledger",
	})
	prometheus.MustRegister(AlertsSuppressed)

	AlertsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proximity",
		Name:      "alerts_expired_total",
		Help:      "Alerts purged from the queue before delivery",
	})
	prometheus.MustRegister(AlertsExpired)

	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of scheduled cycles",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"cycle"},
	)
	prometheus.MustRegister(CycleDuration)

	CycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycle_errors_total",
			Help:      "Scheduled cycles that returned an error",
		},
		[]string{"cycle"},
	)
	prometheus.MustRegister(CycleErrors)
}

// ObserveCycle records a cycle's duration and outcome.
func ObserveCycle(name string, start time.Time, err error) {
	CycleDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		CycleErrors.WithLabelValues(name).Inc()
	}
}
