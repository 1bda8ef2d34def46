// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package selection chooses video, audio and subtitle streams. Every function is pure.
package selection

import (
	"github.com/ManuGH/couchplay/internal/capabilities"
	"github.com/ManuGH/couchplay/internal/domain/media"
)

// dvProfileExcluded is never direct-played: dual-layer decode is unsupported on target hardware.
const dvProfileExcluded = 7

// SelectVideo picks the video stream to request. It returns nil only when there are no
// candidates and no fallback.
func SelectVideo(
	candidates []media.VideoStream,
	quality media.VideoQuality,
	hdr media.HDRPreference,
	caps capabilities.Profile,
	fallback *media.VideoStream,
) (*media.VideoStream, Trace) {
	var tr Trace

	narrowed := candidates
	tr.hit("rule_quality")
	if quality.IsSet() {
		filtered := filterVideo(candidates, quality.Matches)
		if len(filtered) > 0 {
			narrowed = filtered
			tr.hit(string(ReasonQualityFiltered))
		} else {
			tr.hit(string(ReasonQualityUnavailable))
		}
	}

	if len(narrowed) == 0 {
		return supplied(fallback, &tr)
	}

	if !hdr.IsAuto() {
		tr.hit("rule_explicit_hdr")
		tr.done(ReasonExplicitHDR)
		return pick(narrowed, byHeightThenDefault), tr
	}

	tr.hit("rule_dolby_vision_split")
	dv := filterVideo(narrowed, media.VideoStream.IsDolbyVision)
	if len(dv) == 0 {
		tr.done(ReasonNoDolbyVision)
		return pick(narrowed, byDefaultThenHeight), tr
	}

	tr.hit("rule_dolby_vision_allowed")
	allowed := filterVideo(dv, func(v media.VideoStream) bool { return dolbyVisionAllowed(v, caps) })
	if len(allowed) > 0 {
		tr.done(ReasonDolbyVisionAllowed)
		return pick(allowed, byDefaultThenHeight), tr
	}
	tr.hit(string(ReasonDolbyVisionExcluded))

	tr.hit("rule_fallback_hdr")
	nonDVHDR := filterVideo(narrowed, func(v media.VideoStream) bool { return v.IsHDR() && !v.IsDolbyVision() })
	if len(nonDVHDR) > 0 {
		tr.done(ReasonFallbackHDR)
		return pick(nonDVHDR, byDefaultThenHeight), tr
	}

	tr.hit("rule_fallback_hdr_any")
	anyHDR := filterVideo(narrowed, media.VideoStream.IsHDR)
	if len(anyHDR) > 0 {
		tr.done(ReasonFallbackAnyHDR)
		return pick(anyHDR, byDefaultThenHeight), tr
	}

	tr.hit("rule_fallback_best")
	if best := pick(narrowed, byDefaultThenHeight); best != nil {
		tr.done(ReasonFallbackBest)
		return best, tr
	}
	return supplied(fallback, &tr)
}

// dolbyVisionAllowed: profile 7 is always excluded; otherwise the device must report at
// least one DV profile, and an undeclared profile is treated optimistically.
func dolbyVisionAllowed(v media.VideoStream, caps capabilities.Profile) bool {
	if v.DVProfile != nil && *v.DVProfile == dvProfileExcluded {
		return false
	}
	if !caps.HasDolbyVision() {
		return false
	}
	if v.DVProfile == nil {
		return true
	}
	return caps.SupportsDVProfile(*v.DVProfile)
}

func supplied(fallback *media.VideoStream, tr *Trace) (*media.VideoStream, Trace) {
	if fallback == nil {
		tr.done(ReasonNoCandidates)
		return nil, *tr
	}
	tr.done(ReasonFallbackSupplied)
	out := *fallback
	return &out, *tr
}

func filterVideo(in []media.VideoStream, keep func(media.VideoStream) bool) []media.VideoStream {
	var out []media.VideoStream
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// better reports whether a should be preferred over b. Ties keep list order.
type better func(a, b media.VideoStream) bool

func byDefaultThenHeight(a, b media.VideoStream) bool {
	if a.IsDefault != b.IsDefault {
		return a.IsDefault
	}
	return a.Height > b.Height
}

func byHeightThenDefault(a, b media.VideoStream) bool {
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	return a.IsDefault && !b.IsDefault
}

func pick(in []media.VideoStream, cmp better) *media.VideoStream {
	if len(in) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(in); i++ {
		if cmp(in[i], in[best]) {
			best = i
		}
	}
	out := in[best]
	if out.DVProfile != nil {
		p := *out.DVProfile
		out.DVProfile = &p
	}
	return &out
}
