// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package options

import (
	"github.com/ManuGH/couchplay/internal/control/selection"
	"github.com/ManuGH/couchplay/internal/domain/media"
)

// Reconcile maps a selection onto the concrete stream list the server confirmed.
// Each track is matched by index, then by language (default flag first), then falls
// back to the first stream. Subtitles that were off stay off, and a subtitle whose
// language disappeared falls back to the server default or off.
func Reconcile(opts media.PlaybackOptions, served media.MediaSource) media.PlaybackOptions {
	out := opts.Clone()
	if !served.HasStreams() {
		// Nothing to reconcile against; keep the requested stream list.
		if served.ID != "" {
			out.MediaSource.ID = served.ID
		}
		return out
	}
	out.MediaSource = served.Clone()

	if opts.Video != nil {
		out.Video = reconcileVideo(*opts.Video, served.Video)
	} else if len(served.Video) > 0 {
		v := served.Video[0]
		out.Video = &v
	}
	if opts.Audio != nil {
		out.Audio = reconcileAudio(*opts.Audio, served.Audio)
	} else if len(served.Audio) > 0 {
		out.Audio, _ = selection.SelectAudio(served.Audio, nil, "")
	}
	if opts.Subtitle != nil {
		out.Subtitle = reconcileSubtitle(*opts.Subtitle, served.Subtitles)
	}
	return out
}

func reconcileVideo(want media.VideoStream, served []media.VideoStream) *media.VideoStream {
	for _, v := range served {
		if v.Index == want.Index {
			return &v
		}
	}
	if len(served) == 0 {
		return nil
	}
	v := served[0]
	return &v
}

func reconcileAudio(want media.AudioStream, served []media.AudioStream) *media.AudioStream {
	for _, a := range served {
		if a.Index == want.Index && compatibleLanguage(a.Language, want.Language) {
			return &a
		}
	}
	if a, ok := byLanguage(served, want.Language, func(a media.AudioStream) (string, bool) { return a.Language, a.IsDefault }); ok {
		return &a
	}
	if len(served) == 0 {
		return nil
	}
	a := served[0]
	return &a
}

func reconcileSubtitle(want media.SubtitleStream, served []media.SubtitleStream) *media.SubtitleStream {
	for _, s := range served {
		if s.Index == want.Index && compatibleLanguage(s.Language, want.Language) {
			return &s
		}
	}
	if s, ok := byLanguage(served, want.Language, func(s media.SubtitleStream) (string, bool) { return s.Language, s.IsDefault }); ok {
		return &s
	}
	for _, s := range served {
		if s.IsDefault {
			return &s
		}
	}
	return nil
}

// byLanguage returns the first stream in lang, preferring one flagged default.
func byLanguage[T any](streams []T, lang string, attrs func(T) (string, bool)) (T, bool) {
	var (
		first T
		found bool
	)
	for _, s := range streams {
		l, def := attrs(s)
		if !selection.SameLanguage(l, lang) {
			continue
		}
		if def {
			return s, true
		}
		if !found {
			first, found = s, true
		}
	}
	return first, found
}

func compatibleLanguage(a, b string) bool {
	return a == "" || b == "" || selection.SameLanguage(a, b)
}
