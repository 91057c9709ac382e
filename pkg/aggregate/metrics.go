package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// aggregationsTotal counts aggregations by outcome (complete, degraded, failed).
	aggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagekit_aggregations_total",
			Help: "Total aggregations by outcome",
		},
		[]string{"outcome"},
	)

	sourceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagekit_aggregate_source_failures_total",
			Help: "Total source failures by source and failure policy",
		},
		[]string{"source", "policy"},
	)

	aggregateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagekit_aggregate_duration_seconds",
			Help:    "Aggregation duration in seconds, until both sources settled",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
)
