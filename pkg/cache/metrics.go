package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts hits by layer (redis, memo).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagekit_cache_hits_total",
			Help: "Total cache hits by layer",
		},
		[]string{"layer"},
	)

	// CacheMisses counts misses by layer (redis, memo).
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagekit_cache_misses_total",
			Help: "Total cache misses by layer",
		},
		[]string{"layer"},
	)

	// CacheErrors counts failed Redis operations.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagekit_cache_errors_total",
			Help: "Total cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "decode"
	)

	// ConditionalRequests counts requests sent with If-None-Match or If-Modified-Since.
	ConditionalRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagekit_cache_conditional_requests_total",
			Help: "Total conditional requests sent to the backend",
		},
	)

	// NotModifiedResponses counts 304 responses served from cache.
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagekit_cache_not_modified_total",
			Help: "Total 304 Not Modified responses served from cache",
		},
	)
)
