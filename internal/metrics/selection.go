// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var selectionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "couchplay_selection_total",
	Help: "Stream selection outcomes by stream kind and primary reason",
}, []string{"kind", "reason"})

// RecordSelection counts one selector outcome. kind is video, audio or subtitle.
func RecordSelection(kind, reason string) {
	selectionTotal.WithLabelValues(normalizeKind(kind), normalizeReason(reason)).Inc()
}

func normalizeKind(kind string) string {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case "video", "audio", "subtitle":
		return k
	default:
		return "unknown"
	}
}

func normalizeReason(reason string) string {
	r := strings.ToLower(strings.TrimSpace(reason))
	if r == "" {
		return "unknown"
	}
	return r
}
