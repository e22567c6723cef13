// Package metrics exposes the Prometheus metrics of the shop admin client.
// Metrics are declared with promauto in the package that owns them (client,
// cache, ratelimit, collection, optimistic) and land in the default
// registry; this package serves that registry and keeps the catalogue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every shop metric is registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is read by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves Gatherer in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names lists every metric the module registers.
var Names = []string{
	// pkg/client
	"shop_requests_total",
	"shop_request_duration_seconds",
	"shop_errors_total",
	"shop_retries_total",
	"shop_retry_backoff_seconds",
	"shop_retry_exhausted_total",

	// pkg/cache
	"shop_cache_hits_total",
	"shop_cache_misses_total",
	"shop_cache_size_bytes",
	"shop_cache_conditional_requests_total",
	"shop_cache_304_responses_total",
	"shop_cache_errors_total",

	// pkg/ratelimit
	"shop_rate_limit_remaining",
	"shop_rate_limit_blocks_total",
	"shop_rate_limit_throttles_total",

	// pkg/collection
	"shop_collection_fetches_total",
	"shop_collection_stale_responses_total",

	// pkg/optimistic
	"shop_mutations_total",
}

// Useful queries:
//
//	# Revalidation hit rate
//	rate(shop_cache_304_responses_total[5m]) / rate(shop_cache_conditional_requests_total[5m])
//
//	# Share of page fetches superseded by a newer filter
//	sum(rate(shop_collection_stale_responses_total[5m])) / sum(rate(shop_collection_fetches_total[5m]))
//
//	# Rolled back mutations
//	sum by (kind) (rate(shop_mutations_total{outcome="rolled_back"}[5m]))
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(shop_request_duration_seconds_bucket[5m]))
