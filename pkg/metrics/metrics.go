// Package metrics exposes the Prometheus registry pagekit registers into and
// instruments the HTTP server.
//
// Library metrics are defined with promauto in the package that records them:
//
//	pagination
//	  pagekit_page_fetches_total{direction,outcome}         counter
//	  pagekit_page_fetch_duration_seconds{direction}        histogram
//	  pagekit_page_fetches_coalesced_total{direction}       counter
//
//	aggregate
//	  pagekit_aggregations_total{outcome}                   counter (complete, degraded, failed)
//	  pagekit_aggregate_source_failures_total{source,policy} counter
//	  pagekit_aggregate_duration_seconds                    histogram
//
//	client
//	  pagekit_backend_requests_total{endpoint,status}       counter
//	  pagekit_backend_request_duration_seconds{endpoint}    histogram
//	  pagekit_backend_errors_total{class}                   counter
//
//	cache
//	  pagekit_cache_hits_total{layer}                       counter (redis, memo)
//	  pagekit_cache_misses_total{layer}                     counter
//	  pagekit_cache_errors_total{operation}                 counter
//	  pagekit_cache_conditional_requests_total              counter
//	  pagekit_cache_not_modified_total                      counter
//
//	ratelimit
//	  pagekit_ratelimit_waits_total{reason}                 counter
//	  pagekit_ratelimit_rejections_total{reason}            counter (backend, budget, client)
//	  pagekit_ratelimit_backend_remaining                   gauge
//
// Server metrics are defined here:
//
//	pagekit_http_requests_total{route,code,method}          counter
//	pagekit_http_request_duration_seconds{route}            histogram
//
// Example queries:
//
//	# share of aggregations served without a recommendation
//	sum(rate(pagekit_aggregations_total{outcome="degraded"}[5m]))
//	  / sum(rate(pagekit_aggregations_total[5m]))
//
//	# P95 page fetch latency per edge
//	histogram_quantile(0.95, sum by (le, direction) (rate(pagekit_page_fetch_duration_seconds_bucket[5m])))
//
//	# redis cache hit rate
//	sum(rate(pagekit_cache_hits_total{layer="redis"}[5m]))
//	  / (sum(rate(pagekit_cache_hits_total{layer="redis"}[5m])) + sum(rate(pagekit_cache_misses_total{layer="redis"}[5m])))
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is where promauto registers every pagekit metric.
var Registry = prometheus.DefaultRegisterer

// Gatherer is read by Handler.
var Gatherer = prometheus.DefaultGatherer

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagekit_http_requests_total",
			Help: "HTTP requests served, by route, status code and method",
		},
		[]string{"route", "code", "method"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagekit_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Instrument records request count and latency of h under route.
func Instrument(route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(
		httpRequestDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(httpRequestsTotal.MustCurryWith(labels), h),
	)
}
