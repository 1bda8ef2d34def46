// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package capabilities holds the immutable snapshot of local decode capability.
package capabilities

import (
	"sort"
	"strings"
)

// HDRType is a high-dynamic-range signal format the display pipeline may support.
type HDRType string

const (
	HDR10       HDRType = "hdr10"
	HDR10Plus   HDRType = "hdr10plus"
	HLG         HDRType = "hlg"
	DolbyVision HDRType = "dolbyvision"
)

// CodecSupport declares one decodable video codec family.
type CodecSupport struct {
	Codec       string `json:"codec" yaml:"codec"`
	TenBit      bool   `json:"tenBit" yaml:"ten_bit"`
	HighProfile bool   `json:"highProfile" yaml:"high_profile"`
}

// Spec is the serialisable description of a capability profile.
type Spec struct {
	VideoCodecs         []CodecSupport `json:"videoCodecs" yaml:"video_codecs"`
	HDR                 []HDRType      `json:"hdr" yaml:"hdr"`
	DolbyVisionProfiles []int          `json:"dolbyVisionProfiles" yaml:"dolby_vision_profiles"`
	AudioCodecs         []string       `json:"audioCodecs" yaml:"audio_codecs"`
}

type codecFlags struct {
	tenBit      bool
	highProfile bool
}

// Profile is an immutable capability snapshot. The zero value supports nothing.
type Profile struct {
	video map[string]codecFlags
	hdr   map[HDRType]struct{}
	dv    []int
	audio map[string]struct{}
}

// New canonicalizes spec into a Profile. Normative rules:
// - codec names are trimmed, lowered and folded to a family ("h265" -> "hevc")
// - duplicate codecs merge their flags
// - DV profiles are deduped and sorted, negatives dropped
func New(spec Spec) Profile {
	p := Profile{
		video: make(map[string]codecFlags, len(spec.VideoCodecs)),
		hdr:   make(map[HDRType]struct{}, len(spec.HDR)),
		audio: make(map[string]struct{}, len(spec.AudioCodecs)),
	}
	for _, c := range spec.VideoCodecs {
		family := VideoFamily(c.Codec)
		if family == "" {
			continue
		}
		f := p.video[family]
		f.tenBit = f.tenBit || c.TenBit
		f.highProfile = f.highProfile || c.HighProfile
		p.video[family] = f
	}
	for _, h := range spec.HDR {
		t := HDRType(strings.ToLower(strings.TrimSpace(string(h))))
		if t != "" {
			p.hdr[t] = struct{}{}
		}
	}
	seen := make(map[int]struct{}, len(spec.DolbyVisionProfiles))
	for _, n := range spec.DolbyVisionProfiles {
		if n < 0 {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		p.dv = append(p.dv, n)
	}
	sort.Ints(p.dv)
	for _, a := range spec.AudioCodecs {
		if family := AudioFamily(a); family != "" {
			p.audio[family] = struct{}{}
		}
	}
	return p
}

// Spec exports the canonical form of the profile.
func (p Profile) Spec() Spec {
	out := Spec{
		VideoCodecs:         []CodecSupport{},
		HDR:                 []HDRType{},
		DolbyVisionProfiles: append([]int{}, p.dv...),
		AudioCodecs:         []string{},
	}
	for codec, f := range p.video {
		out.VideoCodecs = append(out.VideoCodecs, CodecSupport{Codec: codec, TenBit: f.tenBit, HighProfile: f.highProfile})
	}
	sort.Slice(out.VideoCodecs, func(i, j int) bool { return out.VideoCodecs[i].Codec < out.VideoCodecs[j].Codec })
	for h := range p.hdr {
		out.HDR = append(out.HDR, h)
	}
	sort.Slice(out.HDR, func(i, j int) bool { return out.HDR[i] < out.HDR[j] })
	for a := range p.audio {
		out.AudioCodecs = append(out.AudioCodecs, a)
	}
	sort.Strings(out.AudioCodecs)
	return out
}

// SupportsVideoCodec reports whether the codec family is decodable.
func (p Profile) SupportsVideoCodec(codec string) bool {
	_, ok := p.video[VideoFamily(codec)]
	return ok
}

// Supports10Bit reports whether the codec family decodes 10-bit content.
func (p Profile) Supports10Bit(codec string) bool {
	return p.video[VideoFamily(codec)].tenBit
}

// SupportsHighProfile reports whether the codec family decodes its high/main10 profiles.
func (p Profile) SupportsHighProfile(codec string) bool {
	return p.video[VideoFamily(codec)].highProfile
}

// SupportsHDR reports whether the display pipeline accepts the HDR format.
func (p Profile) SupportsHDR(t HDRType) bool {
	_, ok := p.hdr[t]
	return ok
}

// DolbyVisionProfiles returns a copy of the supported DV profile numbers.
func (p Profile) DolbyVisionProfiles() []int {
	return append([]int(nil), p.dv...)
}

// HasDolbyVision reports whether at least one DV profile is supported.
func (p Profile) HasDolbyVision() bool {
	return len(p.dv) > 0
}

// SupportsDVProfile reports whether the DV profile number is supported.
func (p Profile) SupportsDVProfile(n int) bool {
	i := sort.SearchInts(p.dv, n)
	return i < len(p.dv) && p.dv[i] == n
}

// SupportsAudioCodec reports whether the audio codec is decodable.
func (p Profile) SupportsAudioCodec(codec string) bool {
	_, ok := p.audio[AudioFamily(codec)]
	return ok
}

// VideoFamily folds container-level codec tags to a codec family.
func VideoFamily(codec string) string {
	c := strings.ToLower(strings.TrimSpace(codec))
	switch c {
	case "h265", "hevc", "hvc1", "hev1", "dvh1", "dvhe":
		return "hevc"
	case "h264", "avc", "avc1", "x264":
		return "h264"
	case "av1", "av01":
		return "av1"
	case "vp9", "vp09":
		return "vp9"
	case "mpeg2", "mpeg2video":
		return "mpeg2video"
	}
	return c
}

// AudioFamily folds audio codec aliases to a codec family.
func AudioFamily(codec string) string {
	c := strings.ToLower(strings.TrimSpace(codec))
	switch c {
	case "ec-3", "e-ac-3", "eac3", "ddp":
		return "eac3"
	case "ac-3", "ac3":
		return "ac3"
	case "dca", "dts":
		return "dts"
	case "mlp", "truehd":
		return "truehd"
	}
	return c
}
