// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import "strings"

// StreamFlags are the server-declared track flags shared by every stream kind.
type StreamFlags struct {
	IsDefault  bool `json:"isDefault"`
	IsForced   bool `json:"isForced"`
	IsExternal bool `json:"isExternal"`
}

// Video range types as declared by the server.
const (
	RangeTypeSDR               = "SDR"
	RangeTypeHDR10             = "HDR10"
	RangeTypeHDR10Plus         = "HDR10Plus"
	RangeTypeHLG               = "HLG"
	RangeTypeDOVI              = "DOVI"
	RangeTypeDOVIWithHDR10     = "DOVIWithHDR10"
	RangeTypeDOVIWithHLG       = "DOVIWithHLG"
	RangeTypeDOVIWithSDR       = "DOVIWithSDR"
	RangeTypeDOVIWithHDR10Plus = "DOVIWithHDR10Plus"
)

var hdrRangeTypes = map[string]struct{}{
	strings.ToUpper(RangeTypeHDR10):             {},
	strings.ToUpper(RangeTypeHDR10Plus):         {},
	strings.ToUpper(RangeTypeHLG):               {},
	strings.ToUpper(RangeTypeDOVI):              {},
	strings.ToUpper(RangeTypeDOVIWithHDR10):     {},
	strings.ToUpper(RangeTypeDOVIWithHLG):       {},
	strings.ToUpper(RangeTypeDOVIWithHDR10Plus): {},
}

// VideoStream is a video track of a media source. Index is unique only within its source.
type VideoStream struct {
	Index          int    `json:"index"`
	Codec          string `json:"codec"`
	Profile        string `json:"profile,omitempty"`
	BitDepth       int    `json:"bitDepth,omitempty"`
	Language       string `json:"language,omitempty"`
	Title          string `json:"title,omitempty"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	VideoRange     string `json:"videoRange,omitempty"`
	VideoRangeType string `json:"videoRangeType,omitempty"`
	// DVProfile is the Dolby Vision profile number; nil when not declared.
	DVProfile *int `json:"dvProfile,omitempty"`
	StreamFlags
}

// IsDolbyVision reports whether the stream is flagged as Dolby Vision.
func (v VideoStream) IsDolbyVision() bool {
	if v.DVProfile != nil {
		return true
	}
	return strings.HasPrefix(strings.ToUpper(v.VideoRangeType), strings.ToUpper(RangeTypeDOVI))
}

// IsHDR reports whether the stream carries any HDR signal.
func (v VideoStream) IsHDR() bool {
	if strings.EqualFold(v.VideoRange, "HDR") {
		return true
	}
	_, ok := hdrRangeTypes[strings.ToUpper(v.VideoRangeType)]
	return ok
}

// AudioStream is an audio track of a media source.
type AudioStream struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec"`
	Profile  string `json:"profile,omitempty"`
	Language string `json:"language,omitempty"`
	Title    string `json:"title,omitempty"`
	Channels int    `json:"channels,omitempty"`
	StreamFlags
}

// SubtitleStream is a subtitle track of a media source.
type SubtitleStream struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec"`
	Language string `json:"language,omitempty"`
	Title    string `json:"title,omitempty"`
	StreamFlags
}

// SubtitleOff is the subtitle index that means "no subtitles".
const SubtitleOff = -1

func cloneVideo(v *VideoStream) *VideoStream {
	if v == nil {
		return nil
	}
	out := *v
	if v.DVProfile != nil {
		p := *v.DVProfile
		out.DVProfile = &p
	}
	return &out
}

func cloneAudio(a *AudioStream) *AudioStream {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}

func cloneSubtitle(s *SubtitleStream) *SubtitleStream {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
