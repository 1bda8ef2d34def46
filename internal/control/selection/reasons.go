// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package selection

// ReasonCode records why a stream was chosen.
type ReasonCode string

const (
	ReasonNoCandidates        ReasonCode = "no_candidates"
	ReasonExplicitHDR         ReasonCode = "explicit_hdr_preference"
	ReasonNoDolbyVision       ReasonCode = "no_dolby_vision"
	ReasonDolbyVisionAllowed  ReasonCode = "dolby_vision_allowed"
	ReasonFallbackHDR         ReasonCode = "fallback_hdr_non_dv"
	ReasonFallbackAnyHDR      ReasonCode = "fallback_hdr_any"
	ReasonFallbackBest        ReasonCode = "fallback_best"
	ReasonFallbackSupplied    ReasonCode = "fallback_supplied"
	ReasonPersistedIndex      ReasonCode = "persisted_index"
	ReasonPersistedOff        ReasonCode = "persisted_off"
	ReasonPreferredLanguage   ReasonCode = "preferred_language"
	ReasonServerDefault       ReasonCode = "server_default"
	ReasonFirstStream         ReasonCode = "first_stream"
	ReasonSubtitlesOff        ReasonCode = "subtitles_off"
	ReasonQualityFiltered     ReasonCode = "quality_filtered"
	ReasonQualityUnavailable  ReasonCode = "quality_unavailable"
	ReasonDolbyVisionExcluded ReasonCode = "dolby_vision_excluded"
)

// Trace lists the rules evaluated, in order, and the primary reason for the outcome.
type Trace struct {
	Rules  []string   `json:"rules"`
	Reason ReasonCode `json:"reason"`
}

func (t *Trace) hit(rule string) {
	t.Rules = append(t.Rules, rule)
}

func (t *Trace) done(reason ReasonCode) {
	t.Reason = reason
}
