// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"fmt"

	"github.com/ManuGH/couchplay/internal/control/selection"
	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/domain/session/lifecycle"
)

// DialogKind names a picker whose visibility is part of the session state.
type DialogKind string

const (
	DialogAudio    DialogKind = "audio"
	DialogSubtitle DialogKind = "subtitle"
	DialogQuality  DialogKind = "quality"
	DialogVersion  DialogKind = "version"
	DialogNextUp   DialogKind = "next_up"
)

// Dialogs holds the visibility flag of every picker.
type Dialogs struct {
	Audio    bool `json:"audio"`
	Subtitle bool `json:"subtitle"`
	Quality  bool `json:"quality"`
	Version  bool `json:"version"`
	NextUp   bool `json:"nextUp"`
}

func (d *Dialogs) set(kind DialogKind, visible bool) error {
	switch kind {
	case DialogAudio:
		d.Audio = visible
	case DialogSubtitle:
		d.Subtitle = visible
	case DialogQuality:
		d.Quality = visible
	case DialogVersion:
		d.Version = visible
	case DialogNextUp:
		d.NextUp = visible
	default:
		return fmt.Errorf("unknown dialog %q", kind)
	}
	return nil
}

// Version is a selectable media source of the current item.
type Version struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PlaybackState is an immutable snapshot of the live session handed to observers.
type PlaybackState struct {
	SessionID  string          `json:"sessionId"`
	Phase      lifecycle.Phase `json:"phase"`
	Generation uint64          `json:"generation"`

	ItemID   string `json:"itemId,omitempty"`
	ItemName string `json:"itemName,omitempty"`

	Options       media.PlaybackOptions `json:"options"`
	StreamURL     string                `json:"streamUrl,omitempty"`
	PlaySessionID string                `json:"playSessionId,omitempty"`
	IsTranscoding bool                  `json:"isTranscoding"`
	IsBuffering   bool                  `json:"isBuffering"`
	Predicates    selection.Predicates  `json:"predicates"`

	VideoStreams    []media.VideoStream    `json:"videoStreams,omitempty"`
	AudioStreams    []media.AudioStream    `json:"audioStreams,omitempty"`
	SubtitleStreams []media.SubtitleStream `json:"subtitleStreams,omitempty"`
	Versions        []Version              `json:"versions,omitempty"`

	Dialogs Dialogs `json:"dialogs"`

	// Error is the user-visible message of the last failed negotiation.
	Error string `json:"error,omitempty"`
	// Notice is a non-fatal user-visible message, e.g. a resume position that could not be restored.
	Notice string `json:"notice,omitempty"`

	Segments      []media.Segment `json:"segments,omitempty"`
	ActiveSegment *media.Segment  `json:"activeSegment,omitempty"`
	Episodes      []media.Item    `json:"episodes,omitempty"`
	EpisodeIndex  int             `json:"episodeIndex"`
	OnDeck        []media.Item    `json:"onDeck,omitempty"`
}

// Clone returns a deep copy.
func (s PlaybackState) Clone() PlaybackState {
	out := s
	out.Options = s.Options.Clone()
	out.VideoStreams = out.Options.MediaSource.Video
	out.AudioStreams = out.Options.MediaSource.Audio
	out.SubtitleStreams = out.Options.MediaSource.Subtitles
	out.Versions = append([]Version(nil), s.Versions...)
	out.Segments = append([]media.Segment(nil), s.Segments...)
	if s.ActiveSegment != nil {
		seg := *s.ActiveSegment
		out.ActiveSegment = &seg
	}
	out.Episodes = cloneItems(s.Episodes)
	out.OnDeck = cloneItems(s.OnDeck)
	return out
}

func cloneItems(in []media.Item) []media.Item {
	if in == nil {
		return nil
	}
	out := make([]media.Item, len(in))
	for i, it := range in {
		out[i] = it
		if it.MediaSources != nil {
			out[i].MediaSources = make([]media.MediaSource, len(it.MediaSources))
			for j, src := range it.MediaSources {
				out[i].MediaSources[j] = src.Clone()
			}
		}
	}
	return out
}

// TrackChangeEvent is emitted when a negotiation confirms the same media source with
// different audio or subtitle tracks, so the player can switch tracks in place.
type TrackChangeEvent struct {
	ItemID        string `json:"itemId"`
	MediaSourceID string `json:"mediaSourceId"`
	AudioIndex    *int   `json:"audioIndex,omitempty"`
	// SubtitleIndex is media.SubtitleOff when subtitles are off.
	SubtitleIndex int    `json:"subtitleIndex"`
	Generation    uint64 `json:"generation"`
}

func versionsOf(item media.Item) []Version {
	out := make([]Version, 0, len(item.MediaSources))
	for _, s := range item.MediaSources {
		out = append(out, Version{ID: s.ID, Label: media.VersionLabel(s)})
	}
	return out
}

func sameIndex(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
