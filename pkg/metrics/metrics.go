// Package metrics exposes prometheus collectors for the resolver and
// scan engine. Collectors are registered on the default registry and
// served via Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHits counts geolocation lookups served from the cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ipsentry_geo_cache_hits_total",
		Help: "Geolocation lookups served from the TTL cache.",
	})

	// CacheMisses counts lookups that required a resolution attempt.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ipsentry_geo_cache_misses_total",
		Help: "Geolocation lookups not present in the TTL cache.",
	})

	// ProviderRequests counts provider attempts by provider and outcome
	// (success, fail, error).
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipsentry_geo_provider_requests_total",
		Help: "Geolocation provider attempts by outcome.",
	}, []string{"provider", "outcome"})

	// BreakerBlocks counts lookups skipped because a provider's circuit
	// breaker was open.
	BreakerBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ipsentry_geo_breaker_blocks_total",
		Help: "Provider lookups skipped due to an open circuit breaker.",
	})

	// LookupErrors counts lookups that exhausted every provider.
	LookupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ipsentry_geo_lookup_errors_total",
		Help: "Geolocation lookups that exhausted all providers.",
	})

	// ScansTotal counts completed security scans.
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ipsentry_scans_total",
		Help: "Completed security scans.",
	})

	// ConnectionsClassified counts classified connections by risk level.
	ConnectionsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipsentry_connections_classified_total",
		Help: "Classified connections by risk level.",
	}, []string{"risk"})

	// SecurityScore records the score of the most recent scan.
	SecurityScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ipsentry_security_score",
		Help: "Security score of the most recent scan (0-100).",
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
