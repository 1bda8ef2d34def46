// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "couchplay_mediaserver_requests_total",
		Help: "Media server requests by operation and result (ok, not_found, forbidden, unavailable, upstream, bad_response, timeout)",
	}, []string{"operation", "result"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "couchplay_mediaserver_request_duration_seconds",
		Help:    "Media server request latency by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	catalogCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "couchplay_catalog_cache_total",
		Help: "Catalog cache lookups by kind and result (hit, miss)",
	}, []string{"kind", "result"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "couchplay_breaker_state",
		Help: "Circuit breaker state by breaker name (0 closed, 1 half-open, 2 open)",
	}, []string{"breaker"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "couchplay_breaker_trips_total",
		Help: "Circuit breaker transitions to open by breaker name and reason",
	}, []string{"breaker", "reason"})
)

var breakerStateValues = map[string]float64{"closed": 0, "half-open": 1, "open": 2}

// RecordUpstreamRequest counts a media server request and observes its latency.
func RecordUpstreamRequest(operation, result string, start time.Time) {
	upstreamRequests.WithLabelValues(operation, result).Inc()
	upstreamDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordCatalogCache counts a catalog cache lookup.
func RecordCatalogCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	catalogCache.WithLabelValues(kind, result).Inc()
}

// SetCircuitBreakerState publishes the current state of a breaker. Unknown states are ignored.
func SetCircuitBreakerState(breaker, state string) {
	if v, ok := breakerStateValues[state]; ok {
		breakerState.WithLabelValues(breaker).Set(v)
	}
}

// RecordCircuitBreakerTrip counts a breaker opening.
func RecordCircuitBreakerTrip(breaker, reason string) {
	breakerTrips.WithLabelValues(breaker, reason).Inc()
}
