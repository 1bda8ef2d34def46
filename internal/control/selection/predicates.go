// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package selection

import (
	"strings"

	"github.com/ManuGH/couchplay/internal/capabilities"
	"github.com/ManuGH/couchplay/internal/domain/media"
)

// Predicates are the direct-play facts for a chosen stream pair.
type Predicates struct {
	CanVideo           bool `json:"canVideo"`
	CanHDR             bool `json:"canHdr"`
	CanAudio           bool `json:"canAudio"`
	DirectPlayPossible bool `json:"directPlayPossible"`
}

// ComputePredicates evaluates whether the device can decode the chosen streams as-is.
// A missing video stream is treated as decodable (audio-only sources); a missing audio
// stream likewise.
func ComputePredicates(video *media.VideoStream, audio *media.AudioStream, caps capabilities.Profile) Predicates {
	p := Predicates{CanVideo: true, CanHDR: true, CanAudio: true}

	if video != nil {
		p.CanVideo = canDecodeVideo(*video, caps)
		p.CanHDR = canDisplayRange(*video, caps)
	}
	if audio != nil {
		p.CanAudio = caps.SupportsAudioCodec(audio.Codec)
	}

	p.DirectPlayPossible = p.CanVideo && p.CanHDR && p.CanAudio
	return p
}

func canDecodeVideo(v media.VideoStream, caps capabilities.Profile) bool {
	if !caps.SupportsVideoCodec(v.Codec) {
		return false
	}
	if v.BitDepth > 8 && !caps.Supports10Bit(v.Codec) {
		return false
	}
	prof := strings.ToLower(v.Profile)
	if (strings.Contains(prof, "main 10") || strings.Contains(prof, "main10") || strings.Contains(prof, "high 10")) &&
		!caps.SupportsHighProfile(v.Codec) {
		return false
	}
	return true
}

func canDisplayRange(v media.VideoStream, caps capabilities.Profile) bool {
	if v.IsDolbyVision() {
		if dolbyVisionAllowed(v, caps) {
			return true
		}
		// Dual-signalled DV streams can still play through their base layer.
		return baseLayerSupported(v.VideoRangeType, caps)
	}
	if !v.IsHDR() {
		return true
	}
	switch strings.ToUpper(v.VideoRangeType) {
	case strings.ToUpper(media.RangeTypeHDR10Plus):
		return caps.SupportsHDR(capabilities.HDR10Plus) || caps.SupportsHDR(capabilities.HDR10)
	case strings.ToUpper(media.RangeTypeHLG):
		return caps.SupportsHDR(capabilities.HLG)
	default:
		return caps.SupportsHDR(capabilities.HDR10)
	}
}

func baseLayerSupported(rangeType string, caps capabilities.Profile) bool {
	switch strings.ToUpper(rangeType) {
	case strings.ToUpper(media.RangeTypeDOVIWithHDR10), strings.ToUpper(media.RangeTypeDOVIWithHDR10Plus):
		return caps.SupportsHDR(capabilities.HDR10)
	case strings.ToUpper(media.RangeTypeDOVIWithHLG):
		return caps.SupportsHDR(capabilities.HLG)
	case strings.ToUpper(media.RangeTypeDOVIWithSDR):
		return true
	}
	return false
}
