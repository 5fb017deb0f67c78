package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stakechain",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Count of document store operations.",
	}, []string{"operation", "status"})
	storeOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stakechain",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of document store operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})
)

// ObserveStore records the outcome and latency of one store operation.
func ObserveStore(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}

	storeOpsTotal.WithLabelValues(operation, status).Inc()
	storeOpDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}
