// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/couchplay/internal/domain/media"
)

func TestReconcile(t *testing.T) {
	r := Resolver{Caps: caps}
	res, err := r.Resolve(Input{Item: testItem(), Preferences: &media.PlaybackPreferences{AudioLanguage: "jpn", SubtitleIndex: media.IntPtr(6)}})
	require.NoError(t, err)
	opts := res.Options
	require.Equal(t, 3, opts.Audio.Index)
	require.Equal(t, 6, opts.Subtitle.Index)

	t.Run("index_match", func(t *testing.T) {
		out := Reconcile(opts, opts.MediaSource)
		assert.Equal(t, 3, out.Audio.Index)
		assert.Equal(t, 6, out.Subtitle.Index)
	})

	t.Run("renumbered_by_server", func(t *testing.T) {
		served := media.MediaSource{
			ID:    "src-uhd",
			Video: []media.VideoStream{{Index: 0, Codec: "h264", Height: 2160}},
			Audio: []media.AudioStream{
				{Index: 1, Language: "eng"},
				{Index: 3, Language: "eng"},
				{Index: 2, Language: "jpn"},
			},
			Subtitles: []media.SubtitleStream{
				{Index: 6, Language: "eng"},
				{Index: 8, Language: "deu", StreamFlags: flags(true, false)},
			},
		}
		out := Reconcile(opts, served)
		assert.Equal(t, 2, out.Audio.Index, "index 3 changed language; jpn matched by language")
		assert.Equal(t, 8, out.Subtitle.Index, "ger and deu are the same language")
		assert.Equal(t, 0, out.Video.Index)
	})

	t.Run("language_gone", func(t *testing.T) {
		served := media.MediaSource{
			ID:        "src-uhd",
			Audio:     []media.AudioStream{{Index: 9, Language: "fra"}},
			Subtitles: []media.SubtitleStream{{Index: 10, Language: "fra"}},
		}
		out := Reconcile(opts, served)
		assert.Equal(t, 9, out.Audio.Index, "first available audio")
		assert.Nil(t, out.Subtitle, "no language match and no default turns subtitles off")
	})

	t.Run("off_stays_off", func(t *testing.T) {
		off, err := r.PickSubtitle(opts, media.SubtitleOff)
		require.NoError(t, err)
		out := Reconcile(off, opts.MediaSource)
		assert.Nil(t, out.Subtitle)
	})

	t.Run("no_streams_keeps_request", func(t *testing.T) {
		out := Reconcile(opts, media.MediaSource{ID: "transcode-src"})
		assert.Equal(t, "transcode-src", out.MediaSource.ID)
		assert.Equal(t, 3, out.Audio.Index)
	})
}
