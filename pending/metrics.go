package pending

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for executed operations.
const (
	outcomeSuccess       = "success"
	outcomeFailure       = "failure"
	outcomeUnimplemented = "unimplemented"
	outcomeSkipped       = "skipped"
)

var (
	operationsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pendingfs_operations_executed_total",
			Help: "Staged operations processed by Execute, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	operationsStaged = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pendingfs_operations_staged",
			Help: "Operations currently staged in the most recently changed store",
		},
	)

	executeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pendingfs_execute_duration_seconds",
			Help:    "Wall time of Execute batches",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func recordExecuted(k Kind, outcome string) {
	operationsExecuted.WithLabelValues(k.String(), outcome).Inc()
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
