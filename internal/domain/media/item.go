// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

// ItemType is the catalog kind of an item.
type ItemType string

const (
	ItemMovie   ItemType = "Movie"
	ItemEpisode ItemType = "Episode"
	ItemVideo   ItemType = "Video"
)

// UserData is the server's per-user playback record of an item.
type UserData struct {
	PlaybackPositionTicks int64 `json:"playbackPositionTicks"`
	Played                bool  `json:"played"`
}

// Item is a playable catalog entry.
type Item struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Type              ItemType      `json:"type"`
	SeriesID          string        `json:"seriesId,omitempty"`
	SeasonID          string        `json:"seasonId,omitempty"`
	IndexNumber       int           `json:"indexNumber,omitempty"`
	ParentIndexNumber int           `json:"parentIndexNumber,omitempty"`
	RunTimeTicks      int64         `json:"runTimeTicks,omitempty"`
	MediaSources      []MediaSource `json:"mediaSources,omitempty"`
	UserData          UserData      `json:"userData"`
}

// HasStreamMetadata reports whether at least one media source declares streams.
func (i Item) HasStreamMetadata() bool {
	for _, s := range i.MediaSources {
		if s.HasStreams() {
			return true
		}
	}
	return false
}

// Source returns the media source with the given id.
func (i Item) Source(id string) (MediaSource, bool) {
	if id == "" {
		return MediaSource{}, false
	}
	for _, s := range i.MediaSources {
		if s.ID == id {
			return s, true
		}
	}
	return MediaSource{}, false
}

// PrimarySource returns the server's first (default) media source.
func (i Item) PrimarySource() (MediaSource, bool) {
	if len(i.MediaSources) == 0 {
		return MediaSource{}, false
	}
	return i.MediaSources[0], true
}

// Runtime returns the item runtime, falling back to the given source's runtime.
func (i Item) Runtime(source MediaSource) int64 {
	if source.RunTimeTicks > 0 {
		return source.RunTimeTicks
	}
	return i.RunTimeTicks
}
