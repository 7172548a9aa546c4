package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks response cache hits.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// cacheMisses tracks response cache misses.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// cacheSize tracks bytes written into the cache.
	cacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvest_cache_size_bytes",
			Help: "Bytes written into the response cache",
		},
	)

	// cacheErrors tracks cache operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
