package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pageFetchesTotal counts page fetches by edge and outcome (ok, empty, error, discarded).
	pageFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagekit_page_fetches_total",
			Help: "Total page fetches by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	pageFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagekit_page_fetch_duration_seconds",
			Help:    "Page fetch duration in seconds by direction",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"direction"},
	)

	// pageFetchesCoalesced counts callers that joined an in-flight fetch.
	pageFetchesCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagekit_page_fetches_coalesced_total",
			Help: "Total load calls served by an already in-flight fetch",
		},
		[]string{"direction"},
	)
)
