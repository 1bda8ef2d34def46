// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	progressReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "couchplay_progress_reports_total",
		Help: "Remote playback reports by type (start, progress, stop, played) and outcome",
	}, []string{"type", "outcome"})

	persistenceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "couchplay_persistence_failures_total",
		Help: "Failed local persistence writes by store",
	}, []string{"store"})

	segmentChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "couchplay_segment_changes_total",
		Help: "Active media segment changes by segment type",
	}, []string{"type"})
)

// Report outcomes.
const (
	ReportSent      = "sent"
	ReportFailed    = "failed"
	ReportOffline   = "offline"
	ReportThrottled = "throttled"
)

// RecordProgressReport counts one remote report attempt.
func RecordProgressReport(kind, outcome string) {
	progressReportsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordPersistenceFailure counts a failed local write for store (resume, preferences).
func RecordPersistenceFailure(store string) {
	persistenceFailuresTotal.WithLabelValues(store).Inc()
}

// RecordSegmentChange counts entering a segment; "none" when leaving all segments.
func RecordSegmentChange(segmentType string) {
	segmentChangesTotal.WithLabelValues(segmentType).Inc()
}
