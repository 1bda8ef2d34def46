// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Negotiation outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeSuperseded = "superseded"
)

var (
	negotiationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "couchplay_negotiation_total",
		Help: "Playback negotiations by kind (initial, rebuild) and outcome",
	}, []string{"kind", "outcome"})

	negotiationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "couchplay_negotiation_duration_seconds",
		Help:    "Wall time of playback negotiations",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "couchplay_session_transitions_total",
		Help: "Session lifecycle transitions",
	}, []string{"from", "to"})

	illegalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "couchplay_session_illegal_transitions_total",
		Help: "Rejected lifecycle transitions by phase and event",
	}, []string{"phase", "event"})

	detailFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "couchplay_detail_fetch_fallback_total",
		Help: "Item detail fetches that fell back to already known metadata",
	}, []string{"reason"})
)

// RecordNegotiation counts a negotiation outcome and observes its duration.
func RecordNegotiation(kind, outcome string, start time.Time) {
	negotiationTotal.WithLabelValues(kind, outcome).Inc()
	if outcome != OutcomeSuperseded {
		negotiationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}

// RecordSessionTransition counts a lifecycle transition.
func RecordSessionTransition(from, to string) {
	sessionTransitions.WithLabelValues(from, to).Inc()
}

// RecordIllegalTransition counts a rejected transition.
func RecordIllegalTransition(phase, event string) {
	illegalTransitions.WithLabelValues(phase, event).Inc()
}

// RecordDetailFallback counts a navigation that proceeded with stale metadata.
func RecordDetailFallback(reason string) {
	detailFallbackTotal.WithLabelValues(reason).Inc()
}
