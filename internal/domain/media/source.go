// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

// MediaSource is one playable encoding of a title.
type MediaSource struct {
	ID           string           `json:"id"`
	Name         string           `json:"name,omitempty"`
	Path         string           `json:"path,omitempty"`
	Container    string           `json:"container,omitempty"`
	Bitrate      int64            `json:"bitrate,omitempty"`
	RunTimeTicks int64            `json:"runTimeTicks,omitempty"`
	Video        []VideoStream    `json:"video"`
	Audio        []AudioStream    `json:"audio"`
	Subtitles    []SubtitleStream `json:"subtitles"`
}

// HasStreams reports whether the source declares any stream metadata.
func (s MediaSource) HasStreams() bool {
	return len(s.Video) > 0 || len(s.Audio) > 0 || len(s.Subtitles) > 0
}

// AudioByIndex returns the audio stream with the given source-scoped index.
func (s MediaSource) AudioByIndex(index int) (AudioStream, bool) {
	for _, a := range s.Audio {
		if a.Index == index {
			return a, true
		}
	}
	return AudioStream{}, false
}

// SubtitleByIndex returns the subtitle stream with the given source-scoped index.
func (s MediaSource) SubtitleByIndex(index int) (SubtitleStream, bool) {
	for _, st := range s.Subtitles {
		if st.Index == index {
			return st, true
		}
	}
	return SubtitleStream{}, false
}

// VideoByIndex returns the video stream with the given source-scoped index.
func (s MediaSource) VideoByIndex(index int) (VideoStream, bool) {
	for _, v := range s.Video {
		if v.Index == index {
			return v, true
		}
	}
	return VideoStream{}, false
}

// Clone returns a deep copy.
func (s MediaSource) Clone() MediaSource {
	out := s
	if s.Video != nil {
		out.Video = make([]VideoStream, len(s.Video))
		for i := range s.Video {
			out.Video[i] = *cloneVideo(&s.Video[i])
		}
	}
	if s.Audio != nil {
		out.Audio = append([]AudioStream(nil), s.Audio...)
	}
	if s.Subtitles != nil {
		out.Subtitles = append([]SubtitleStream(nil), s.Subtitles...)
	}
	return out
}
