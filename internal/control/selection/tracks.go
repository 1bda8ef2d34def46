// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package selection

import "github.com/ManuGH/couchplay/internal/domain/media"

// SelectAudio resolves the audio track: persisted index, then preferred language,
// then the server default, then the first stream. Nil only when streams is empty.
func SelectAudio(streams []media.AudioStream, preferredIndex *int, preferredLanguage string) (*media.AudioStream, Trace) {
	var tr Trace
	if len(streams) == 0 {
		tr.done(ReasonNoCandidates)
		return nil, tr
	}

	tr.hit("rule_persisted_index")
	if preferredIndex != nil {
		for i := range streams {
			if streams[i].Index == *preferredIndex {
				tr.done(ReasonPersistedIndex)
				return audioAt(streams, i), tr
			}
		}
	}

	tr.hit("rule_preferred_language")
	if preferredLanguage != "" {
		for i := range streams {
			if SameLanguage(streams[i].Language, preferredLanguage) {
				tr.done(ReasonPreferredLanguage)
				return audioAt(streams, i), tr
			}
		}
	}

	tr.hit("rule_server_default")
	for i := range streams {
		if streams[i].IsDefault {
			tr.done(ReasonServerDefault)
			return audioAt(streams, i), tr
		}
	}

	tr.done(ReasonFirstStream)
	return audioAt(streams, 0), tr
}

// SelectSubtitle resolves the subtitle track. A preferred index of media.SubtitleOff
// keeps subtitles off; no match at all also resolves to off (nil).
func SelectSubtitle(streams []media.SubtitleStream, preferredIndex *int, preferredLanguage string) (*media.SubtitleStream, Trace) {
	var tr Trace

	tr.hit("rule_persisted_index")
	if preferredIndex != nil {
		if *preferredIndex == media.SubtitleOff {
			tr.done(ReasonPersistedOff)
			return nil, tr
		}
		for i := range streams {
			if streams[i].Index == *preferredIndex {
				tr.done(ReasonPersistedIndex)
				return subtitleAt(streams, i), tr
			}
		}
	}

	tr.hit("rule_preferred_language")
	if preferredLanguage != "" {
		for i := range streams {
			if SameLanguage(streams[i].Language, preferredLanguage) {
				tr.done(ReasonPreferredLanguage)
				return subtitleAt(streams, i), tr
			}
		}
	}

	tr.hit("rule_server_default")
	for i := range streams {
		if streams[i].IsDefault {
			tr.done(ReasonServerDefault)
			return subtitleAt(streams, i), tr
		}
	}

	tr.done(ReasonSubtitlesOff)
	return nil, tr
}

func audioAt(streams []media.AudioStream, i int) *media.AudioStream {
	out := streams[i]
	return &out
}

func subtitleAt(streams []media.SubtitleStream, i int) *media.SubtitleStream {
	out := streams[i]
	return &out
}
