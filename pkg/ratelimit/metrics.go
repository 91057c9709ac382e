package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// waitsTotal counts requests that had to wait, by reason (budget, backend).
	waitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagekit_ratelimit_waits_total",
		Help: "Total requests delayed by the rate limiter",
	}, []string{"reason"})

	// rejectionsTotal counts rejected requests, by reason (budget, backend, client).
	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagekit_ratelimit_rejections_total",
		Help: "Total requests rejected by the rate limiter",
	}, []string{"reason"})

	backendRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagekit_ratelimit_backend_remaining",
		Help: "Request budget remaining as last reported by the backend",
	})
)
