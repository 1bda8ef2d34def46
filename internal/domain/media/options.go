// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions is returned by Validate when a selection breaks an invariant.
var ErrInvalidOptions = errors.New("media: invalid playback options")

// PlaybackOptions is the live selection snapshot for a session.
type PlaybackOptions struct {
	MediaSource MediaSource     `json:"mediaSource"`
	Video       *VideoStream    `json:"video,omitempty"`
	Audio       *AudioStream    `json:"audio,omitempty"`
	Subtitle    *SubtitleStream `json:"subtitle,omitempty"`

	ResumePositionTicks int64 `json:"resumePositionTicks"`
	StartFromBeginning  bool  `json:"startFromBeginning"`

	Quality          VideoQuality    `json:"quality"`
	HDRPreference    HDRPreference   `json:"hdrPreference"`
	Transcode        TranscodeOption `json:"transcode"`
	SubtitleOffsetMs int             `json:"subtitleOffsetMs"`
}

// Clone returns a deep copy so that no caller aliases the session's selection.
func (o PlaybackOptions) Clone() PlaybackOptions {
	out := o
	out.MediaSource = o.MediaSource.Clone()
	out.Video = cloneVideo(o.Video)
	out.Audio = cloneAudio(o.Audio)
	out.Subtitle = cloneSubtitle(o.Subtitle)
	return out
}

// AudioIndex returns the selected audio index, or nil.
func (o PlaybackOptions) AudioIndex() *int {
	if o.Audio == nil {
		return nil
	}
	return IntPtr(o.Audio.Index)
}

// SubtitleIndex returns the selected subtitle index, SubtitleOff when subtitles are off.
func (o PlaybackOptions) SubtitleIndex() int {
	if o.Subtitle == nil {
		return SubtitleOff
	}
	return o.Subtitle.Index
}

// Validate checks the selection invariants against the selected media source.
func (o PlaybackOptions) Validate(runtimeTicks int64) error {
	if o.MediaSource.ID == "" {
		return fmt.Errorf("%w: no media source selected", ErrInvalidOptions)
	}
	if o.Audio != nil {
		if _, ok := o.MediaSource.AudioByIndex(o.Audio.Index); !ok {
			return fmt.Errorf("%w: audio stream %d not in source %s", ErrInvalidOptions, o.Audio.Index, o.MediaSource.ID)
		}
	}
	if o.Subtitle != nil {
		if _, ok := o.MediaSource.SubtitleByIndex(o.Subtitle.Index); !ok {
			return fmt.Errorf("%w: subtitle stream %d not in source %s", ErrInvalidOptions, o.Subtitle.Index, o.MediaSource.ID)
		}
	}
	if o.ResumePositionTicks < 0 || (runtimeTicks > 0 && o.ResumePositionTicks > runtimeTicks) {
		return fmt.Errorf("%w: resume position %d outside [0, %d]", ErrInvalidOptions, o.ResumePositionTicks, runtimeTicks)
	}
	if o.SubtitleOffsetMs != ClampSubtitleOffset(o.SubtitleOffsetMs) {
		return fmt.Errorf("%w: subtitle offset %dms out of range", ErrInvalidOptions, o.SubtitleOffsetMs)
	}
	return nil
}
