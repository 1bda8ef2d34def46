// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package continuity carries source and track choices from one episode to the next.
package continuity

import (
	"path"
	"strings"

	"github.com/ManuGH/couchplay/internal/control/options"
	"github.com/ManuGH/couchplay/internal/control/selection"
	"github.com/ManuGH/couchplay/internal/domain/media"
)

// Carry derives the selection intent for target from what is currently playing.
func Carry(current media.PlaybackOptions, target media.Item) options.Intent {
	var intent options.Intent

	src, ok := ContinueSource(current.MediaSource, target)
	if !ok {
		return intent
	}
	intent.MediaSourceID = src.ID

	if current.Audio != nil {
		intent.AudioLanguage = current.Audio.Language
		if a := ContinueAudio(*current.Audio, src.Audio); a != nil {
			intent.AudioIndex = media.IntPtr(a.Index)
		}
	}

	if current.Subtitle == nil {
		intent.SubtitleIndex = media.IntPtr(media.SubtitleOff)
		return intent
	}
	intent.SubtitleLanguage = current.Subtitle.Language
	if s := ContinueSubtitle(*current.Subtitle, src.Subtitles); s != nil {
		intent.SubtitleIndex = media.IntPtr(s.Index)
	} else {
		intent.SubtitleIndex = media.IntPtr(media.SubtitleOff)
	}
	return intent
}

// ContinueSource prefers the target source stored in the same directory as the current
// one, else the target's primary source.
func ContinueSource(current media.MediaSource, target media.Item) (media.MediaSource, bool) {
	if dir := parentDir(current.Path); dir != "" {
		for _, s := range target.MediaSources {
			if parentDir(s.Path) == dir {
				return s, true
			}
		}
	}
	return target.PrimarySource()
}

// ContinueAudio matches the previous audio language; among matches an equal title wins,
// then the default flag, then the lowest index. Nil when the language is absent.
func ContinueAudio(prev media.AudioStream, streams []media.AudioStream) *media.AudioStream {
	var matches []media.AudioStream
	for _, a := range streams {
		if selection.SameLanguage(a.Language, prev.Language) {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	a := best(matches, prev.Title,
		func(a media.AudioStream) string { return a.Title },
		func(a media.AudioStream) bool { return a.IsDefault },
		func(a media.AudioStream) int { return a.Index })
	return &a
}

// ContinueSubtitle keeps the previous language and forced mode. A forced track never
// stands in for a full one or the reverse; without a same-mode language match the new
// source's default is used when its mode agrees, otherwise nil (off).
func ContinueSubtitle(prev media.SubtitleStream, streams []media.SubtitleStream) *media.SubtitleStream {
	var matches []media.SubtitleStream
	for _, s := range streams {
		if s.IsForced == prev.IsForced && selection.SameLanguage(s.Language, prev.Language) {
			matches = append(matches, s)
		}
	}
	if len(matches) > 0 {
		s := best(matches, prev.Title,
			func(s media.SubtitleStream) string { return s.Title },
			func(s media.SubtitleStream) bool { return s.IsDefault },
			func(s media.SubtitleStream) int { return s.Index })
		return &s
	}
	for _, s := range streams {
		if s.IsDefault && s.IsForced == prev.IsForced {
			return &s
		}
	}
	return nil
}

func best[T any](in []T, title string, titleOf func(T) string, isDefault func(T) bool, indexOf func(T) int) T {
	if want := selection.NormalizeTitle(title); want != "" {
		for _, s := range in {
			if selection.NormalizeTitle(titleOf(s)) == want {
				return s
			}
		}
	}
	for _, s := range in {
		if isDefault(s) {
			return s
		}
	}
	lowest := in[0]
	for _, s := range in[1:] {
		if indexOf(s) < indexOf(lowest) {
			lowest = s
		}
	}
	return lowest
}

func parentDir(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return strings.ToLower(dir)
}
