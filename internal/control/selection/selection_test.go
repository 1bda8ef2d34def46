// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/couchplay/internal/capabilities"
	"github.com/ManuGH/couchplay/internal/domain/media"
)

func hevcDV(profiles ...int) capabilities.Profile {
	return capabilities.New(capabilities.Spec{
		VideoCodecs:         []capabilities.CodecSupport{{Codec: "hevc", TenBit: true, HighProfile: true}, {Codec: "h264"}},
		HDR:                 []capabilities.HDRType{capabilities.HDR10, capabilities.HLG},
		DolbyVisionProfiles: profiles,
		AudioCodecs:         []string{"aac", "eac3", "ac3"},
	})
}

func video(index, height int, rangeType string, dv *int, isDefault bool) media.VideoStream {
	v := media.VideoStream{
		Index:          index,
		Codec:          "hevc",
		BitDepth:       10,
		Width:          height * 16 / 9,
		Height:         height,
		VideoRangeType: rangeType,
		DVProfile:      dv,
	}
	if rangeType != "" && rangeType != media.RangeTypeSDR {
		v.VideoRange = "HDR"
	} else {
		v.VideoRange = "SDR"
	}
	v.IsDefault = isDefault
	return v
}

func TestSelectVideo(t *testing.T) {
	auto := media.HDRPreference{Kind: media.HDRAuto}

	tests := []struct {
		name       string
		candidates []media.VideoStream
		quality    media.VideoQuality
		hdr        media.HDRPreference
		caps       capabilities.Profile
		fallback   *media.VideoStream
		wantIndex  int
		wantNil    bool
		wantReason ReasonCode
	}{
		{
			name: "dv_profile7_excluded_hdr10_chosen",
			candidates: []media.VideoStream{
				video(0, 1080, media.RangeTypeDOVIWithHDR10, media.IntPtr(7), false),
				video(1, 1080, media.RangeTypeHDR10, nil, false),
			},
			hdr:        auto,
			caps:       hevcDV(8),
			wantIndex:  1,
			wantReason: ReasonFallbackHDR,
		},
		{
			name: "dv_unknown_profile_optimistic",
			candidates: []media.VideoStream{
				video(0, 2160, media.RangeTypeHDR10, nil, true),
				video(1, 2160, media.RangeTypeDOVI, nil, false),
			},
			hdr:        auto,
			caps:       hevcDV(5),
			wantIndex:  1,
			wantReason: ReasonDolbyVisionAllowed,
		},
		{
			name: "dv_profile7_excluded_even_if_device_claims_it",
			candidates: []media.VideoStream{
				video(0, 2160, media.RangeTypeDOVI, media.IntPtr(7), true),
			},
			hdr:        auto,
			caps:       hevcDV(7, 8),
			wantIndex:  0,
			wantReason: ReasonFallbackAnyHDR,
		},
		{
			name: "device_without_dv_skips_dv",
			candidates: []media.VideoStream{
				video(0, 2160, media.RangeTypeDOVI, media.IntPtr(8), true),
				video(1, 1080, media.RangeTypeSDR, nil, false),
			},
			hdr:        auto,
			caps:       hevcDV(),
			wantIndex:  0,
			wantReason: ReasonFallbackAnyHDR,
		},
		{
			name: "dv_profile7_only_hdr_beats_sdr_without_dv_device",
			candidates: []media.VideoStream{
				video(0, 1080, media.RangeTypeSDR, nil, true),
				video(1, 2160, media.RangeTypeDOVIWithHDR10, media.IntPtr(7), false),
			},
			hdr:        auto,
			caps:       hevcDV(),
			wantIndex:  1,
			wantReason: ReasonFallbackAnyHDR,
		},
		{
			name: "no_dv_default_beats_height",
			candidates: []media.VideoStream{
				video(0, 2160, media.RangeTypeSDR, nil, false),
				video(1, 1080, media.RangeTypeSDR, nil, true),
			},
			hdr:        auto,
			caps:       hevcDV(8),
			wantIndex:  1,
			wantReason: ReasonNoDolbyVision,
		},
		{
			name: "no_dv_height_then_list_order",
			candidates: []media.VideoStream{
				video(0, 1080, media.RangeTypeSDR, nil, false),
				video(1, 2160, media.RangeTypeSDR, nil, false),
				video(2, 2160, media.RangeTypeSDR, nil, false),
			},
			hdr:        auto,
			caps:       hevcDV(),
			wantIndex:  1,
			wantReason: ReasonNoDolbyVision,
		},
		{
			name: "explicit_hdr_height_then_default",
			candidates: []media.VideoStream{
				video(0, 1080, media.RangeTypeSDR, nil, true),
				video(1, 2160, media.RangeTypeDOVI, media.IntPtr(7), false),
				video(2, 2160, media.RangeTypeHDR10, nil, true),
			},
			hdr:        media.HDRPreference{Kind: media.HDRForceSDR},
			caps:       hevcDV(),
			wantIndex:  2,
			wantReason: ReasonExplicitHDR,
		},
		{
			name: "quality_narrows",
			candidates: []media.VideoStream{
				video(0, 2160, media.RangeTypeHDR10, nil, true),
				video(1, 1080, media.RangeTypeSDR, nil, false),
			},
			quality:    media.VideoQuality{Kind: media.Quality1080p},
			hdr:        auto,
			caps:       hevcDV(),
			wantIndex:  1,
			wantReason: ReasonNoDolbyVision,
		},
		{
			name: "quality_without_match_keeps_all",
			candidates: []media.VideoStream{
				video(0, 2160, media.RangeTypeHDR10, nil, true),
			},
			quality:    media.VideoQuality{Kind: media.Quality480p},
			hdr:        auto,
			caps:       hevcDV(),
			wantIndex:  0,
			wantReason: ReasonNoDolbyVision,
		},
		{
			name:       "empty_uses_fallback",
			hdr:        auto,
			caps:       hevcDV(),
			fallback:   &media.VideoStream{Index: 9},
			wantIndex:  9,
			wantReason: ReasonFallbackSupplied,
		},
		{
			name:       "empty_without_fallback",
			hdr:        auto,
			caps:       hevcDV(),
			wantNil:    true,
			wantReason: ReasonNoCandidates,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tr := SelectVideo(tt.candidates, tt.quality, tt.hdr, tt.caps, tt.fallback)
			assert.Equal(t, tt.wantReason, tr.Reason, "rules: %v", tr.Rules)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantIndex, got.Index)
		})
	}
}

func TestSelectVideo_ExplicitPreferenceIgnoresCapabilities(t *testing.T) {
	candidates := []media.VideoStream{
		video(0, 2160, media.RangeTypeDOVI, media.IntPtr(7), false),
		video(1, 2160, media.RangeTypeHDR10, nil, false),
		video(2, 1080, media.RangeTypeSDR, nil, true),
	}
	profiles := []capabilities.Profile{
		{},
		hevcDV(),
		hevcDV(5, 8),
		capabilities.New(capabilities.Spec{VideoCodecs: []capabilities.CodecSupport{{Codec: "h264"}}}),
	}
	for _, pref := range []media.HDRKind{media.HDRForceSDR, media.HDRForceHDR10, media.HDRForceDolbyVision} {
		var first *media.VideoStream
		for _, caps := range profiles {
			got, _ := SelectVideo(candidates, media.VideoQuality{}, media.HDRPreference{Kind: pref}, caps, nil)
			require.NotNil(t, got)
			if first == nil {
				first = got
				continue
			}
			assert.Equal(t, first.Index, got.Index, "preference %v", pref)
		}
	}
}

func TestSelectVideo_UnknownPreferenceActsAsAuto(t *testing.T) {
	candidates := []media.VideoStream{
		video(0, 2160, media.RangeTypeDOVI, media.IntPtr(7), true),
		video(1, 2160, media.RangeTypeHDR10, nil, false),
	}
	got, tr := SelectVideo(candidates, media.VideoQuality{}, media.ParseHDRPreference("legacy-vivid"), hevcDV(8), nil)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Index)
	assert.Equal(t, ReasonFallbackHDR, tr.Reason)
}

func TestSelectVideo_ReturnsCopy(t *testing.T) {
	candidates := []media.VideoStream{video(0, 1080, media.RangeTypeDOVI, media.IntPtr(8), true)}
	got, _ := SelectVideo(candidates, media.VideoQuality{}, media.HDRPreference{}, hevcDV(8), nil)
	require.NotNil(t, got)
	*got.DVProfile = 5
	assert.Equal(t, 8, *candidates[0].DVProfile)
}

func TestSelectAudio(t *testing.T) {
	streams := []media.AudioStream{
		{Index: 1, Language: "eng", Codec: "eac3"},
		{Index: 2, Language: "jpn", Codec: "aac", StreamFlags: media.StreamFlags{IsDefault: true}},
		{Index: 3, Language: "ger", Codec: "ac3"},
	}

	tests := []struct {
		name       string
		index      *int
		lang       string
		streams    []media.AudioStream
		wantIndex  int
		wantReason ReasonCode
	}{
		{"persisted_index", media.IntPtr(3), "eng", streams, 3, ReasonPersistedIndex},
		{"stale_index_falls_to_language", media.IntPtr(9), "ENG", streams, 1, ReasonPreferredLanguage},
		{"iso_639_1_matches_639_2", nil, "de", streams, 3, ReasonPreferredLanguage},
		{"server_default", nil, "fra", streams, 2, ReasonServerDefault},
		{"first_stream", nil, "", []media.AudioStream{{Index: 4}, {Index: 5}}, 4, ReasonFirstStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tr := SelectAudio(tt.streams, tt.index, tt.lang)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantIndex, got.Index)
			assert.Equal(t, tt.wantReason, tr.Reason)
		})
	}

	got, tr := SelectAudio(nil, nil, "eng")
	assert.Nil(t, got)
	assert.Equal(t, ReasonNoCandidates, tr.Reason)
}

func TestSelectSubtitle(t *testing.T) {
	streams := []media.SubtitleStream{
		{Index: 4, Language: "eng"},
		{Index: 5, Language: "fre", StreamFlags: media.StreamFlags{IsDefault: true}},
	}

	tests := []struct {
		name       string
		index      *int
		lang       string
		streams    []media.SubtitleStream
		wantIndex  int
		wantOff    bool
		wantReason ReasonCode
	}{
		{"explicit_off", media.IntPtr(media.SubtitleOff), "eng", streams, 0, true, ReasonPersistedOff},
		{"persisted_index", media.IntPtr(4), "", streams, 4, false, ReasonPersistedIndex},
		{"language", nil, "en", streams, 4, false, ReasonPreferredLanguage},
		{"server_default", nil, "", streams, 5, false, ReasonServerDefault},
		{"no_match_is_off", nil, "spa", streams[:1], 0, true, ReasonSubtitlesOff},
		{"no_streams_is_off", nil, "eng", nil, 0, true, ReasonSubtitlesOff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tr := SelectSubtitle(tt.streams, tt.index, tt.lang)
			assert.Equal(t, tt.wantReason, tr.Reason)
			if tt.wantOff {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantIndex, got.Index)
		})
	}
}

func TestComputePredicates(t *testing.T) {
	caps := hevcDV(8)

	t.Run("hevc_hdr10_eac3", func(t *testing.T) {
		v := video(0, 2160, media.RangeTypeHDR10, nil, true)
		a := media.AudioStream{Codec: "E-AC-3"}
		p := ComputePredicates(&v, &a, caps)
		assert.Equal(t, Predicates{CanVideo: true, CanHDR: true, CanAudio: true, DirectPlayPossible: true}, p)
	})

	t.Run("dv7_with_hdr10_base_layer", func(t *testing.T) {
		v := video(0, 2160, media.RangeTypeDOVIWithHDR10, media.IntPtr(7), true)
		p := ComputePredicates(&v, nil, caps)
		assert.True(t, p.CanHDR)
		assert.True(t, p.DirectPlayPossible)
	})

	t.Run("dv5_without_device_support", func(t *testing.T) {
		v := video(0, 2160, media.RangeTypeDOVI, media.IntPtr(5), true)
		p := ComputePredicates(&v, nil, caps)
		assert.False(t, p.CanHDR)
		assert.False(t, p.DirectPlayPossible)
	})

	t.Run("ten_bit_h264_unsupported", func(t *testing.T) {
		v := media.VideoStream{Codec: "avc1", BitDepth: 10, Height: 1080}
		a := media.AudioStream{Codec: "truehd"}
		p := ComputePredicates(&v, &a, caps)
		assert.False(t, p.CanVideo)
		assert.False(t, p.CanAudio)
		assert.True(t, p.CanHDR)
	})
}

func TestLanguageHelpers(t *testing.T) {
	assert.True(t, SameLanguage("jpn", "ja"))
	assert.True(t, SameLanguage("en-US", "eng"))
	assert.True(t, SameLanguage("FRE", "fra"))
	assert.False(t, SameLanguage("", ""))
	assert.False(t, SameLanguage("eng", "ger"))
	assert.Equal(t, "commentary track", NormalizeTitle("  Commentary   TRACK "))
}
