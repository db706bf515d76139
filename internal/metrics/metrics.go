package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	TierLocal  = "local"
	TierShared = "shared"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsproxy_cache_hits_total",
		Help: "Cache hits by tier.",
	}, []string{"tier"})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsproxy_cache_misses_total",
		Help: "Lookups that missed both cache tiers.",
	})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsproxy_cache_local_evictions_total",
		Help: "Entries evicted from the local LRU tier for capacity.",
	})

	SharedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsproxy_cache_shared_errors_total",
		Help: "Shared tier operations that failed.",
	}, []string{"op"})

	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsproxy_fetches_total",
		Help: "External searches by mode (normal, forced) and outcome.",
	}, []string{"mode", "outcome"})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsproxy_fetch_duration_seconds",
		Help:    "Latency of external searches.",
		Buckets: prometheus.DefBuckets,
	})

	RefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsproxy_refresh_failures_total",
		Help: "Background refreshes of popular queries that failed.",
	})

	PopularQueries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "newsproxy_popular_queries",
		Help: "Queries currently kept warm by the prefetcher.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsproxy_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter.",
	})
)
