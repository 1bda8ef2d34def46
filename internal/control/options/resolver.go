// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package options builds and re-resolves PlaybackOptions for a title.
package options

import (
	"errors"
	"fmt"

	"github.com/ManuGH/couchplay/internal/capabilities"
	"github.com/ManuGH/couchplay/internal/control/selection"
	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/metrics"
)

var (
	// ErrNoMediaSource is returned when an item has no playable media source.
	ErrNoMediaSource = errors.New("options: item has no media source")
	// ErrUnknownStream is returned for an explicit pick of a stream the source lacks.
	ErrUnknownStream = errors.New("options: stream not in media source")
)

// Defaults apply when no preference has been persisted for a title.
type Defaults struct {
	HDRPreference media.HDRPreference
	Quality       media.VideoQuality
}

// Intent is a carry-over selection (episode continuity, version switch) that takes
// precedence over persisted preferences for the target title.
type Intent struct {
	MediaSourceID    string
	AudioIndex       *int
	SubtitleIndex    *int
	AudioLanguage    string
	SubtitleLanguage string
}

// Input is everything Resolve needs for a title.
type Input struct {
	Item               media.Item
	Preferences        *media.PlaybackPreferences
	Intent             *Intent
	ResumeTicks        int64
	StartFromBeginning bool
}

// Traces are the selector traces behind a resolution.
type Traces struct {
	Video    selection.Trace `json:"video"`
	Audio    selection.Trace `json:"audio"`
	Subtitle selection.Trace `json:"subtitle"`
}

// Result is a resolved selection with its traces.
type Result struct {
	Options media.PlaybackOptions
	Traces  Traces
}

// Resolver is stateless; every method is a pure function of its inputs and the
// capability profile.
type Resolver struct {
	Caps     capabilities.Profile
	Defaults Defaults
}

// Resolve builds the initial selection for a title.
func (r Resolver) Resolve(in Input) (Result, error) {
	prefs := media.PlaybackPreferences{
		VideoQuality:  r.Defaults.Quality,
		HDRPreference: r.Defaults.HDRPreference,
	}
	if in.Preferences != nil {
		prefs = in.Preferences.Clone()
	}

	source, ok := r.pickSource(in.Item, in.Intent, prefs.MediaSourceID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoMediaSource, in.Item.ID)
	}

	// Persisted indices are source-scoped; only trust them on the same source.
	audioIdx, subIdx := prefs.AudioIndex, prefs.SubtitleIndex
	if prefs.MediaSourceID != "" && prefs.MediaSourceID != source.ID {
		audioIdx = nil
		if subIdx != nil && *subIdx != media.SubtitleOff {
			subIdx = nil
		}
	}
	audioLang, subLang := prefs.AudioLanguage, prefs.SubtitleLanguage
	if in.Intent != nil {
		audioIdx, subIdx = in.Intent.AudioIndex, in.Intent.SubtitleIndex
		audioLang, subLang = in.Intent.AudioLanguage, in.Intent.SubtitleLanguage
	}

	opts := media.PlaybackOptions{
		MediaSource:        source.Clone(),
		StartFromBeginning: in.StartFromBeginning,
		Quality:            prefs.VideoQuality,
		HDRPreference:      prefs.HDRPreference,
		Transcode:          prefs.Transcode,
		SubtitleOffsetMs:   media.ClampSubtitleOffset(prefs.SubtitleOffsetMs),
	}
	if !in.StartFromBeginning {
		opts.ResumePositionTicks = media.ClampTicks(in.ResumeTicks, in.Item.Runtime(source))
	}

	var tr Traces
	opts.Video, tr.Video = selection.SelectVideo(source.Video, opts.Quality, opts.HDRPreference, r.Caps, nil)
	opts.Audio, tr.Audio = selection.SelectAudio(source.Audio, audioIdx, audioLang)
	opts.Subtitle, tr.Subtitle = selection.SelectSubtitle(source.Subtitles, subIdx, subLang)
	record(tr)

	return Result{Options: opts, Traces: tr}, nil
}

// SwitchVersion re-runs resolution against another media source of the same item.
// Track languages and the subtitle-off choice carry over; transcode resets to original.
func (r Resolver) SwitchVersion(item media.Item, current media.PlaybackOptions, sourceID string) (Result, error) {
	if _, ok := item.Source(sourceID); !ok {
		return Result{}, fmt.Errorf("%w: %s has no source %s", ErrNoMediaSource, item.ID, sourceID)
	}
	intent := &Intent{MediaSourceID: sourceID}
	if current.Audio != nil {
		intent.AudioLanguage = current.Audio.Language
	}
	if current.Subtitle == nil {
		intent.SubtitleIndex = media.IntPtr(media.SubtitleOff)
	} else {
		intent.SubtitleLanguage = current.Subtitle.Language
	}
	prefs := media.PlaybackPreferences{
		VideoQuality:     current.Quality,
		HDRPreference:    current.HDRPreference,
		Transcode:        media.TranscodeOption{Kind: media.TranscodeOriginal},
		SubtitleOffsetMs: current.SubtitleOffsetMs,
	}
	return r.Resolve(Input{
		Item:               item,
		Preferences:        &prefs,
		Intent:             intent,
		ResumeTicks:        current.ResumePositionTicks,
		StartFromBeginning: current.StartFromBeginning,
	})
}

// ChangeQuality re-filters the video stream within the current media source.
func (r Resolver) ChangeQuality(current media.PlaybackOptions, quality media.VideoQuality) media.PlaybackOptions {
	out := current.Clone()
	out.Quality = quality
	var tr selection.Trace
	out.Video, tr = selection.SelectVideo(out.MediaSource.Video, quality, out.HDRPreference, r.Caps, out.Video)
	metrics.RecordSelection("video", string(tr.Reason))
	return out
}

// ChangeHDRPreference re-selects the video stream within the current media source.
func (r Resolver) ChangeHDRPreference(current media.PlaybackOptions, hdr media.HDRPreference) media.PlaybackOptions {
	out := current.Clone()
	out.HDRPreference = hdr
	var tr selection.Trace
	out.Video, tr = selection.SelectVideo(out.MediaSource.Video, out.Quality, hdr, r.Caps, out.Video)
	metrics.RecordSelection("video", string(tr.Reason))
	return out
}

// PickAudio applies an explicit audio choice, bypassing every heuristic.
func (r Resolver) PickAudio(current media.PlaybackOptions, index int) (media.PlaybackOptions, error) {
	a, ok := current.MediaSource.AudioByIndex(index)
	if !ok {
		return current, fmt.Errorf("%w: audio %d", ErrUnknownStream, index)
	}
	out := current.Clone()
	out.Audio = &a
	return out, nil
}

// PickSubtitle applies an explicit subtitle choice; media.SubtitleOff turns subtitles off.
func (r Resolver) PickSubtitle(current media.PlaybackOptions, index int) (media.PlaybackOptions, error) {
	out := current.Clone()
	if index == media.SubtitleOff {
		out.Subtitle = nil
		return out, nil
	}
	s, ok := current.MediaSource.SubtitleByIndex(index)
	if !ok {
		return current, fmt.Errorf("%w: subtitle %d", ErrUnknownStream, index)
	}
	out.Subtitle = &s
	return out, nil
}

// Preferences derives the durable preference record from a selection.
func Preferences(opts media.PlaybackOptions) media.PlaybackPreferences {
	p := media.PlaybackPreferences{
		MediaSourceID:    opts.MediaSource.ID,
		AudioIndex:       opts.AudioIndex(),
		SubtitleIndex:    media.IntPtr(opts.SubtitleIndex()),
		VideoQuality:     opts.Quality,
		HDRPreference:    opts.HDRPreference,
		Transcode:        opts.Transcode,
		SubtitleOffsetMs: opts.SubtitleOffsetMs,
	}
	if opts.Audio != nil {
		p.AudioLanguage = opts.Audio.Language
	}
	if opts.Subtitle != nil {
		p.SubtitleLanguage = opts.Subtitle.Language
	}
	return p
}

func (r Resolver) pickSource(item media.Item, intent *Intent, persisted string) (media.MediaSource, bool) {
	if intent != nil {
		if s, ok := item.Source(intent.MediaSourceID); ok {
			return s, true
		}
	}
	if s, ok := item.Source(persisted); ok {
		return s, true
	}
	return item.PrimarySource()
}

func record(tr Traces) {
	metrics.RecordSelection("video", string(tr.Video.Reason))
	metrics.RecordSelection("audio", string(tr.Audio.Reason))
	metrics.RecordSelection("subtitle", string(tr.Subtitle.Reason))
}
