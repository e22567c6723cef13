package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_cache_hits_total",
			Help: "Total number of shop API cache hits",
		},
		[]string{"layer"},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shop_cache_misses_total",
			Help: "Total number of shop API cache misses",
		},
	)

	// CacheSize tracks the bytes written per layer.
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shop_cache_size_bytes",
			Help: "Bytes written to the shop API cache",
		},
		[]string{"layer"},
	)

	// ConditionalRequestsSent tracks requests sent with If-None-Match or If-Modified-Since.
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shop_cache_conditional_requests_total",
			Help: "Total number of conditional requests sent to the shop API",
		},
	)

	// NotModifiedResponses tracks 304 answers served from cache.
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shop_cache_304_responses_total",
			Help: "Total number of 304 Not Modified responses served from cache",
		},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"},
	)
)
