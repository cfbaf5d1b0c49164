package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	// BroadcastTotal counts finished broadcasts by outcome.
	BroadcastTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saathi",
		Name:      "broadcast_total",
		Help:      "Total number of community broadcasts, labeled by result.",
	}, []string{"result"})

	BroadcastDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "saathi",
		Name:      "broadcast_duration_seconds",
		Help:      "Time from broadcast start to the last notified ledger row.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// PushTotal counts individual push attempts by outcome.
	PushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "saathi",
		Name:      "push_total",
		Help:      "Total number of push notification attempts, labeled by result.",
	}, []string{"result"})

	RespondersNotified = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "saathi",
		Name:      "responders_notified",
		Help:      "Number of responders in scope per broadcast.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})
)

// RegisterMetrics registers service metrics with the default registry.
// Safe to call multiple times.
func RegisterMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(
			BroadcastTotal,
			BroadcastDurationSeconds,
			PushTotal,
			RespondersNotified,
		)
	})
}
