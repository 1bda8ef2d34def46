// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"strings"
	"time"
)

// HDRKind enumerates the HDR preference branches.
type HDRKind int

const (
	HDRAuto HDRKind = iota
	HDRForceSDR
	HDRForceHDR10
	HDRForceDolbyVision
	// HDRUnknown carries an unrecognised persisted value in Raw.
	HDRUnknown
)

// HDRPreference is the user's dynamic-range preference.
type HDRPreference struct {
	Kind HDRKind
	Raw  string
}

var hdrNames = map[HDRKind]string{
	HDRAuto:             "auto",
	HDRForceSDR:         "sdr",
	HDRForceHDR10:       "hdr10",
	HDRForceDolbyVision: "dolby_vision",
}

// ParseHDRPreference never fails: unrecognised values land in the HDRUnknown branch.
func ParseHDRPreference(s string) HDRPreference {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "", "auto":
		return HDRPreference{Kind: HDRAuto}
	case "sdr":
		return HDRPreference{Kind: HDRForceSDR}
	case "hdr", "hdr10":
		return HDRPreference{Kind: HDRForceHDR10}
	case "dolby_vision", "dolbyvision", "dovi", "dv":
		return HDRPreference{Kind: HDRForceDolbyVision}
	}
	return HDRPreference{Kind: HDRUnknown, Raw: s}
}

// IsAuto reports whether the selector should apply capability-aware AUTO rules.
// Unknown legacy values behave like AUTO.
func (p HDRPreference) IsAuto() bool {
	return p.Kind == HDRAuto || p.Kind == HDRUnknown
}

func (p HDRPreference) String() string {
	if p.Kind == HDRUnknown {
		return p.Raw
	}
	return hdrNames[p.Kind]
}

func (p HDRPreference) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *HDRPreference) UnmarshalText(b []byte) error {
	*p = ParseHDRPreference(string(b))
	return nil
}

// QualityKind enumerates the video quality branches.
type QualityKind int

const (
	QualityAuto QualityKind = iota
	Quality2160p
	Quality1080p
	Quality720p
	Quality480p
	// QualityUnknown carries an unrecognised persisted value in Raw.
	QualityUnknown
)

// VideoQuality is the user's preferred representation height class.
type VideoQuality struct {
	Kind QualityKind
	Raw  string
}

var qualityNames = map[QualityKind]string{
	QualityAuto:  "auto",
	Quality2160p: "2160p",
	Quality1080p: "1080p",
	Quality720p:  "720p",
	Quality480p:  "480p",
}

// ParseVideoQuality never fails: unrecognised values land in the QualityUnknown branch.
func ParseVideoQuality(s string) VideoQuality {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "", "auto", "max":
		return VideoQuality{Kind: QualityAuto}
	case "2160p", "4k", "uhd":
		return VideoQuality{Kind: Quality2160p}
	case "1080p", "fhd":
		return VideoQuality{Kind: Quality1080p}
	case "720p", "hd":
		return VideoQuality{Kind: Quality720p}
	case "480p", "sd":
		return VideoQuality{Kind: Quality480p}
	}
	return VideoQuality{Kind: QualityUnknown, Raw: s}
}

// IsSet reports whether the quality narrows the candidate set.
func (q VideoQuality) IsSet() bool {
	return q.Kind != QualityAuto && q.Kind != QualityUnknown
}

// Matches reports whether a video stream belongs to the quality's height class.
func (q VideoQuality) Matches(v VideoStream) bool {
	if !q.IsSet() {
		return true
	}
	return qualityOf(v) == q.Kind
}

func qualityOf(v VideoStream) QualityKind {
	switch {
	case v.Width >= 3200 || v.Height >= 1600:
		return Quality2160p
	case v.Width >= 1700 || v.Height >= 900:
		return Quality1080p
	case v.Width >= 1200 || v.Height >= 640:
		return Quality720p
	default:
		return Quality480p
	}
}

// QualityOf returns the height class of a stream.
func QualityOf(v VideoStream) VideoQuality {
	return VideoQuality{Kind: qualityOf(v)}
}

func (q VideoQuality) String() string {
	if q.Kind == QualityUnknown {
		return q.Raw
	}
	return qualityNames[q.Kind]
}

func (q VideoQuality) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

func (q *VideoQuality) UnmarshalText(b []byte) error {
	*q = ParseVideoQuality(string(b))
	return nil
}

// TranscodeKind enumerates the transcode option branches.
type TranscodeKind int

const (
	// TranscodeOriginal requests the original encoding whenever the device can decode it.
	TranscodeOriginal TranscodeKind = iota
	TranscodeH264
	TranscodeHEVC
	// TranscodeUnknown carries an unrecognised persisted value in Raw.
	TranscodeUnknown
)

// TranscodeOption is the user's transcode choice.
type TranscodeOption struct {
	Kind TranscodeKind
	Raw  string
}

var transcodeNames = map[TranscodeKind]string{
	TranscodeOriginal: "original",
	TranscodeH264:     "h264",
	TranscodeHEVC:     "hevc",
}

// ParseTranscodeOption never fails: unrecognised values land in the TranscodeUnknown branch.
func ParseTranscodeOption(s string) TranscodeOption {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "", "original", "direct", "auto":
		return TranscodeOption{Kind: TranscodeOriginal}
	case "h264", "avc":
		return TranscodeOption{Kind: TranscodeH264}
	case "hevc", "h265":
		return TranscodeOption{Kind: TranscodeHEVC}
	}
	return TranscodeOption{Kind: TranscodeUnknown, Raw: s}
}

// IsOriginal reports whether direct play may be requested. Unknown legacy values behave like Original.
func (o TranscodeOption) IsOriginal() bool {
	return o.Kind == TranscodeOriginal || o.Kind == TranscodeUnknown
}

// TargetCodec returns the forced output codec, or "" for original.
func (o TranscodeOption) TargetCodec() string {
	switch o.Kind {
	case TranscodeH264:
		return "h264"
	case TranscodeHEVC:
		return "hevc"
	}
	return ""
}

func (o TranscodeOption) String() string {
	if o.Kind == TranscodeUnknown {
		return o.Raw
	}
	return transcodeNames[o.Kind]
}

func (o TranscodeOption) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *TranscodeOption) UnmarshalText(b []byte) error {
	*o = ParseTranscodeOption(string(b))
	return nil
}

// Subtitle offset bounds in milliseconds.
const (
	MinSubtitleOffsetMs = -30_000
	MaxSubtitleOffsetMs = 30_000
)

// ClampSubtitleOffset bounds an offset to [MinSubtitleOffsetMs, MaxSubtitleOffsetMs].
func ClampSubtitleOffset(ms int) int {
	if ms < MinSubtitleOffsetMs {
		return MinSubtitleOffsetMs
	}
	if ms > MaxSubtitleOffsetMs {
		return MaxSubtitleOffsetMs
	}
	return ms
}

// PlaybackPreferences is the durable record of the last explicit user choice for a title.
type PlaybackPreferences struct {
	MediaSourceID string `json:"mediaSourceId,omitempty"`
	AudioIndex    *int   `json:"audioIndex,omitempty"`
	// SubtitleIndex is SubtitleOff when the user turned subtitles off.
	SubtitleIndex    *int            `json:"subtitleIndex,omitempty"`
	AudioLanguage    string          `json:"audioLanguage,omitempty"`
	SubtitleLanguage string          `json:"subtitleLanguage,omitempty"`
	VideoQuality     VideoQuality    `json:"videoQuality"`
	HDRPreference    HDRPreference   `json:"hdrPreference"`
	Transcode        TranscodeOption `json:"transcodeOption"`
	SubtitleOffsetMs int             `json:"subtitleOffsetMs"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy.
func (p PlaybackPreferences) Clone() PlaybackPreferences {
	out := p
	out.AudioIndex = CloneIntPtr(p.AudioIndex)
	out.SubtitleIndex = CloneIntPtr(p.SubtitleIndex)
	return out
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// CloneIntPtr returns a copy of p (nil stays nil).
func CloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
