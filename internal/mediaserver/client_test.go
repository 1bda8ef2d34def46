// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package mediaserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/couchplay/internal/capabilities"
	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/domain/session/ports"
	"github.com/ManuGH/couchplay/internal/netutil"
	"github.com/ManuGH/couchplay/internal/resilience"
)

func newTestClient(t *testing.T, base string, monitor *netutil.PassiveMonitor) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:  base,
		APIKey:   "secret",
		UserID:   "user-1",
		DeviceID: "device-1",
		Timeout:  time.Second,
		Capabilities: func() capabilities.Profile {
			return capabilities.New(capabilities.Spec{
				VideoCodecs: []capabilities.CodecSupport{{Codec: "h264"}, {Codec: "hevc", TenBit: true}},
				HDR:         []capabilities.HDRType{capabilities.HDR10},
				AudioCodecs: []string{"aac", "ac3"},
			})
		},
	}, monitor)
	require.NoError(t, err)
	return c
}

const itemJSON = `{
  "Id": "movie-1", "Name": "Heat", "Type": "Movie", "RunTimeTicks": 600000000000,
  "UserData": {"PlaybackPositionTicks": 1200000000, "Played": false},
  "MediaSources": [{
    "Id": "src-1", "Name": "4K", "Container": "mkv", "Bitrate": 40000000,
    "SupportsDirectPlay": true, "SupportsTranscoding": true,
    "MediaStreams": [
      {"Index": 0, "Type": "Video", "Codec": "hevc", "BitDepth": 10, "Width": 3840, "Height": 2160,
       "VideoRange": "HDR", "VideoRangeType": "DOVIWithHDR10", "DvProfile": 8, "IsDefault": true},
      {"Index": 1, "Type": "Audio", "Codec": "eac3", "Language": "eng", "Channels": 6, "IsDefault": true},
      {"Index": 2, "Type": "Subtitle", "Codec": "srt", "Language": "eng", "IsForced": true, "IsExternal": true},
      {"Index": 3, "Type": "Attachment", "Codec": "ttf"}
    ]
  }]
}`

func TestGetItem(t *testing.T) {
	var gotAuth, gotPath, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotUser = r.URL.Query().Get("userId")
		_, _ = w.Write([]byte(itemJSON))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	it, err := c.GetItem(context.Background(), "movie-1")
	require.NoError(t, err)

	assert.Equal(t, "/Items/movie-1", gotPath)
	assert.Equal(t, "user-1", gotUser)
	assert.Contains(t, gotAuth, `MediaBrowser Client="couchplay"`)
	assert.Contains(t, gotAuth, `DeviceId="device-1"`)
	assert.Contains(t, gotAuth, `Token="secret"`)

	assert.Equal(t, media.ItemMovie, it.Type)
	assert.Equal(t, int64(1200000000), it.UserData.PlaybackPositionTicks)
	require.Len(t, it.MediaSources, 1)
	src := it.MediaSources[0]
	require.Len(t, src.Video, 1)
	require.NotNil(t, src.Video[0].DVProfile)
	assert.Equal(t, 8, *src.Video[0].DVProfile)
	assert.Equal(t, 10, src.Video[0].BitDepth)
	require.Len(t, src.Audio, 1)
	assert.Equal(t, 6, src.Audio[0].Channels)
	require.Len(t, src.Subtitles, 1)
	assert.True(t, src.Subtitles[0].IsForced)
	assert.True(t, src.Subtitles[0].IsExternal)
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrForbidden},
		{"server error", http.StatusBadGateway, ErrUpstream},
		{"bad request", http.StatusBadRequest, ErrBadResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			monitor := netutil.NewPassiveMonitor(1, zerolog.Nop())
			c := newTestClient(t, srv.URL, monitor)
			_, err := c.GetItem(context.Background(), "x")
			require.ErrorIs(t, err, tt.sentinel)
			assert.NotErrorIs(t, err, ports.ErrNetworkUnavailable)

			var me *Error
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.status, me.Status)
			assert.Equal(t, "nope", me.Body)
			assert.True(t, monitor.Online(), "an HTTP response proves reachability")
		})
	}
}

func TestInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not-json"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, nil).GetItem(context.Background(), "x")
	require.ErrorIs(t, err, ErrBadResponse)
}

func TestTransportFailureGoesOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	monitor := netutil.NewPassiveMonitor(2, zerolog.Nop())
	c := newTestClient(t, base, monitor)

	_, err := c.GetItem(context.Background(), "x")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, ports.ErrNetworkUnavailable)
	assert.True(t, monitor.Online())

	_, err = c.GetNextUp(context.Background(), "series")
	require.Error(t, err)
	assert.False(t, monitor.Online())
}

func TestCanceledRequestDoesNotCountAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	monitor := netutil.NewPassiveMonitor(1, zerolog.Nop())
	c := newTestClient(t, srv.URL, monitor)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := c.GetItem(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, monitor.Online())
}

func TestGetSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/MediaSegments/ep-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"Items":[
			{"Id":"s1","Type":"Intro","StartTicks":0,"EndTicks":900000000},
			{"Id":"s2","Type":"Outro","StartTicks":500,"EndTicks":500},
			{"Id":"s3","ItemId":"ep-1","Type":"Mystery","StartTicks":10,"EndTicks":20}
		]}`))
	}))
	defer srv.Close()

	segs, err := newTestClient(t, srv.URL, nil).GetSegments(context.Background(), "ep-1")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, media.SegmentIntro, segs[0].Type)
	assert.Equal(t, "ep-1", segs[0].ItemID)
	assert.Equal(t, media.SegmentUnknown, segs[1].Type)
}

func TestGetEpisodesAndNextUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Shows/series-1/Episodes":
			assert.Equal(t, "season-1", r.URL.Query().Get("seasonId"))
			_, _ = w.Write([]byte(`{"Items":[{"Id":"e1","Type":"Episode","IndexNumber":1},{"Id":"e2","Type":"Episode","IndexNumber":2}],"TotalRecordCount":2}`))
		case "/Shows/NextUp":
			assert.Equal(t, "series-1", r.URL.Query().Get("seriesId"))
			_, _ = w.Write([]byte(`{"Items":[{"Id":"e2","Type":"Episode","IndexNumber":2}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	eps, err := c.GetEpisodes(context.Background(), "series-1", "season-1")
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, 2, eps[1].IndexNumber)

	next, err := c.GetNextUp(context.Background(), "series-1")
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "e2", next[0].ID)
}

func TestNegotiateDirectPlay(t *testing.T) {
	var body playbackInfoRequestDTO
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/jf/Items/movie-1/PlaybackInfo", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"PlaySessionId":"ps-1","MediaSources":[
			{"Id":"src-0","SupportsDirectPlay":true},
			{"Id":"src-1","SupportsDirectPlay":true,"TranscodingUrl":"/videos/movie-1/master.m3u8?x=1"}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/jf", nil)
	res, err := c.Negotiate(context.Background(), ports.NegotiationRequest{
		ItemID:            "movie-1",
		MediaSourceID:     "src-1",
		DirectPlayAllowed: true,
		AudioIndex:        media.IntPtr(1),
		SubtitleIndex:     media.SubtitleOff,
		StartTicks:        5_000,
	})
	require.NoError(t, err)

	assert.False(t, res.IsTranscoding)
	assert.Equal(t, "ps-1", res.PlaySessionID)
	assert.Equal(t, "src-1", res.MediaSource.ID)
	assert.True(t, strings.HasPrefix(res.URL, srv.URL+"/jf/Videos/movie-1/stream?"), res.URL)
	assert.Contains(t, res.URL, "static=true")
	assert.Contains(t, res.URL, "mediaSourceId=src-1")
	assert.Contains(t, res.URL, "playSessionId=ps-1")

	assert.True(t, body.EnableDirectPlay)
	assert.True(t, body.AllowVideoStreamCopy)
	require.NotNil(t, body.SubtitleStreamIndex)
	assert.Equal(t, -1, *body.SubtitleStreamIndex)
	require.NotNil(t, body.AudioStreamIndex)
	assert.Equal(t, 1, *body.AudioStreamIndex)
	assert.Equal(t, int64(5_000), body.StartTimeTicks)
	require.NotNil(t, body.DeviceProfile)
	require.Len(t, body.DeviceProfile.DirectPlayProfiles, 1)
	assert.Equal(t, "h264,hevc", body.DeviceProfile.DirectPlayProfiles[0].VideoCodec)
	assert.Equal(t, "hevc,h264", body.DeviceProfile.TranscodingProfiles[0].VideoCodec)
}

func TestNegotiateTranscode(t *testing.T) {
	var body playbackInfoRequestDTO
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"PlaySessionId":"ps-2","MediaSources":[
			{"Id":"src-1","SupportsDirectPlay":true,"TranscodingUrl":"/videos/movie-1/master.m3u8?VideoCodec=h264"}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	res, err := c.Negotiate(context.Background(), ports.NegotiationRequest{
		ItemID:        "movie-1",
		MediaSourceID: "src-1",
		SubtitleIndex: 3,
		Transcode:     media.TranscodeOption{Kind: media.TranscodeH264},
	})
	require.NoError(t, err)
	assert.True(t, res.IsTranscoding)
	assert.Equal(t, srv.URL+"/videos/movie-1/master.m3u8?VideoCodec=h264", res.URL)
	assert.False(t, body.EnableDirectPlay)
	assert.False(t, body.AllowVideoStreamCopy)
	assert.Equal(t, "h264", body.DeviceProfile.TranscodingProfiles[0].VideoCodec)
}

func TestNegotiateErrors(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		sentinel error
	}{
		{"error code", `{"ErrorCode":"NotAllowed"}`, ErrForbidden},
		{"no sources", `{"MediaSources":[]}`, ErrBadResponse},
		{"nothing playable", `{"MediaSources":[{"Id":"src-1"}]}`, ErrBadResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL, nil).Negotiate(context.Background(), ports.NegotiationRequest{
				ItemID: "movie-1", SubtitleIndex: media.SubtitleOff,
			})
			require.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestReports(t *testing.T) {
	var paths []string
	var report playbackReportDTO
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.Body != nil && strings.HasPrefix(r.URL.Path, "/Sessions") {
			_ = json.NewDecoder(r.Body).Decode(&report)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	ctx := context.Background()
	r := ports.ProgressReport{ItemID: "movie-1", MediaSourceID: "src-1", PlaySessionID: "ps-1", PositionTicks: 42, IsPaused: true}

	require.NoError(t, c.ReportStart(ctx, r))
	require.NoError(t, c.ReportProgress(ctx, r))
	require.NoError(t, c.ReportStop(ctx, r))
	require.NoError(t, c.MarkPlayed(ctx, "movie-1"))

	assert.Equal(t, []string{
		"/Sessions/Playing",
		"/Sessions/Playing/Progress",
		"/Sessions/Playing/Stopped",
		"/UserPlayedItems/movie-1",
	}, paths)
	assert.Equal(t, int64(42), report.PositionTicks)
	assert.True(t, report.IsPaused)
	assert.Equal(t, "ps-1", report.PlaySessionID)
}

func TestReportBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	r := ports.ProgressReport{ItemID: "movie-1"}
	for i := 0; i < breakerFailures; i++ {
		require.ErrorIs(t, c.ReportProgress(context.Background(), r), ErrUpstream)
	}
	err := c.ReportProgress(context.Background(), r)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(breakerFailures), calls.Load())
}

func TestReportBreakerIgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	for i := 0; i < breakerFailures+1; i++ {
		err := c.MarkPlayed(context.Background(), "gone")
		require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	}
	assert.Equal(t, int32(breakerFailures+1), calls.Load())
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://server", UserID: "u"}, nil)
	require.Error(t, err)

	_, err = New(Config{BaseURL: "http://server"}, nil)
	require.Error(t, err)

	c, err := New(Config{BaseURL: "http://server/", UserID: "u"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, c.cfg.DeviceID)
}
