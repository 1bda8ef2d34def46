// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package mediaserver is the HTTP adapter for the media server REST API. It implements
// the catalog, negotiator and reporter ports of the playback session.
package mediaserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/couchplay/internal/capabilities"
	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/domain/session/ports"
	xglog "github.com/ManuGH/couchplay/internal/log"
	"github.com/ManuGH/couchplay/internal/metrics"
	"github.com/ManuGH/couchplay/internal/netutil"
	"github.com/ManuGH/couchplay/internal/resilience"
	"github.com/ManuGH/couchplay/internal/version"
)

const (
	defaultTimeout  = 15 * time.Second
	maxErrorBody    = 512
	clientName      = "couchplay"
	itemFields      = "MediaSources,MediaStreams,UserData"
	breakerName     = "mediaserver_reports"
	breakerFailures = 3
	breakerReset    = 30 * time.Second
)

var (
	_ ports.Catalog    = (*Client)(nil)
	_ ports.Negotiator = (*Client)(nil)
	_ ports.Reporter   = (*Client)(nil)
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	UserID     string
	DeviceID   string
	DeviceName string
	Timeout    time.Duration
	// Capabilities builds the device profile sent with every negotiation.
	Capabilities func() capabilities.Profile
	// Transport overrides the base round tripper (tests).
	Transport http.RoundTripper
}

// Client talks to a single media server on behalf of one user.
type Client struct {
	base    *url.URL
	http    *http.Client
	cfg     Config
	auth    string
	monitor *netutil.PassiveMonitor
	reports *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// New validates cfg and builds a client. monitor may be nil.
func New(cfg Config, monitor *netutil.PassiveMonitor) (*Client, error) {
	base, ok := netutil.ParseServerURL(cfg.BaseURL)
	if !ok {
		return nil, fmt.Errorf("mediaserver: invalid server url %q", cfg.BaseURL)
	}
	if cfg.UserID == "" {
		return nil, errors.New("mediaserver: user id is required")
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = clientName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Capabilities == nil {
		cfg.Capabilities = func() capabilities.Profile { return capabilities.Profile{} }
	}
	rt := cfg.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	c := &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(rt),
		},
		cfg:     cfg,
		monitor: monitor,
		logger:  xglog.WithComponent("mediaserver"),
		reports: resilience.NewCircuitBreaker(breakerName, breakerFailures, breakerReset,
			resilience.WithFailureClassifier(isBreakerFailure)),
	}
	c.auth = fmt.Sprintf(`MediaBrowser Client=%q, Device=%q, DeviceId=%q, Version=%q, Token=%q`,
		clientName, cfg.DeviceName, cfg.DeviceID, version.Version, cfg.APIKey)
	return c, nil
}

// Only server-side and transport failures trip the report breaker.
func isBreakerFailure(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrUpstream)
}

// GetItem fetches the full item detail, including media sources and streams.
func (c *Client) GetItem(ctx context.Context, itemID string) (media.Item, error) {
	var dto itemDTO
	q := url.Values{"userId": {c.cfg.UserID}, "fields": {itemFields}}
	if err := c.do(ctx, "get_item", http.MethodGet, "/Items/"+url.PathEscape(itemID), q, nil, &dto); err != nil {
		return media.Item{}, err
	}
	if dto.ID == "" {
		return media.Item{}, &Error{Sentinel: ErrBadResponse, Operation: "get_item", Body: "item without id"}
	}
	return dto.toDomain(), nil
}

// GetSegments lists the labeled time ranges of an item.
func (c *Client) GetSegments(ctx context.Context, itemID string) ([]media.Segment, error) {
	var dto segmentsResultDTO
	if err := c.do(ctx, "get_segments", http.MethodGet, "/MediaSegments/"+url.PathEscape(itemID), nil, nil, &dto); err != nil {
		return nil, err
	}
	out := make([]media.Segment, 0, len(dto.Items))
	for _, s := range dto.Items {
		if s.EndTicks <= s.StartTicks {
			continue
		}
		seg := s.toDomain()
		if seg.ItemID == "" {
			seg.ItemID = itemID
		}
		out = append(out, seg)
	}
	return out, nil
}

// GetEpisodes lists a season's episodes in airing order.
func (c *Client) GetEpisodes(ctx context.Context, seriesID, seasonID string) ([]media.Item, error) {
	q := url.Values{"userId": {c.cfg.UserID}, "fields": {itemFields}}
	if seasonID != "" {
		q.Set("seasonId", seasonID)
	}
	var dto itemsResultDTO
	if err := c.do(ctx, "get_episodes", http.MethodGet, "/Shows/"+url.PathEscape(seriesID)+"/Episodes", q, nil, &dto); err != nil {
		return nil, err
	}
	return itemsOf(dto), nil
}

// GetNextUp returns the server's on-deck list for a series.
func (c *Client) GetNextUp(ctx context.Context, seriesID string) ([]media.Item, error) {
	q := url.Values{"userId": {c.cfg.UserID}, "fields": {itemFields}, "seriesId": {seriesID}}
	var dto itemsResultDTO
	if err := c.do(ctx, "get_next_up", http.MethodGet, "/Shows/NextUp", q, nil, &dto); err != nil {
		return nil, err
	}
	return itemsOf(dto), nil
}

func itemsOf(dto itemsResultDTO) []media.Item {
	out := make([]media.Item, 0, len(dto.Items))
	for _, it := range dto.Items {
		out = append(out, it.toDomain())
	}
	return out
}

// Negotiate asks the server for a playable stream of the requested selection.
func (c *Client) Negotiate(ctx context.Context, req ports.NegotiationRequest) (ports.NegotiationResult, error) {
	const op = "negotiate"
	body := c.playbackInfoRequest(req)
	var resp playbackInfoResponseDTO
	path := "/Items/" + url.PathEscape(req.ItemID) + "/PlaybackInfo"
	if err := c.do(ctx, op, http.MethodPost, path, url.Values{"userId": {c.cfg.UserID}}, body, &resp); err != nil {
		return ports.NegotiationResult{}, err
	}
	if resp.ErrorCode != "" {
		return ports.NegotiationResult{}, &Error{Sentinel: ErrForbidden, Operation: op, Body: resp.ErrorCode}
	}

	src, ok := pickSource(resp.MediaSources, req.MediaSourceID)
	if !ok {
		return ports.NegotiationResult{}, &Error{Sentinel: ErrBadResponse, Operation: op, Body: "no media source in playback info"}
	}

	out := ports.NegotiationResult{
		PlaySessionID: resp.PlaySessionID,
		MediaSource:   src.toDomain(),
	}
	switch {
	case req.DirectPlayAllowed && src.SupportsDirectPlay:
		out.URL = c.staticStreamURL(req.ItemID, src.ID, resp.PlaySessionID)
	case src.TranscodingURL != "":
		out.URL = c.resolve(src.TranscodingURL)
		out.IsTranscoding = true
	default:
		return ports.NegotiationResult{}, &Error{Sentinel: ErrBadResponse, Operation: op, Body: "server offered neither direct play nor a transcoding url"}
	}
	return out, nil
}

func pickSource(sources []mediaSourceDTO, id string) (mediaSourceDTO, bool) {
	for _, s := range sources {
		if id != "" && s.ID == id {
			return s, true
		}
	}
	if len(sources) == 0 {
		return mediaSourceDTO{}, false
	}
	return sources[0], true
}

func (c *Client) playbackInfoRequest(req ports.NegotiationRequest) playbackInfoRequestDTO {
	sub := req.SubtitleIndex
	return playbackInfoRequestDTO{
		UserID:               c.cfg.UserID,
		MediaSourceID:        req.MediaSourceID,
		AudioStreamIndex:     req.AudioIndex,
		SubtitleStreamIndex:  &sub,
		StartTimeTicks:       req.StartTicks,
		MaxStreamingBitrate:  req.MaxStreamingBitrate,
		EnableDirectPlay:     req.DirectPlayAllowed,
		EnableDirectStream:   req.DirectPlayAllowed,
		EnableTranscoding:    true,
		AllowVideoStreamCopy: req.Transcode.IsOriginal(),
		AllowAudioStreamCopy: true,
		AutoOpenLiveStream:   true,
		DeviceProfile:        buildDeviceProfile(c.cfg.Capabilities(), req),
	}
}

func (c *Client) staticStreamURL(itemID, sourceID, playSessionID string) string {
	u := *c.base
	u.Path = c.base.Path + "/Videos/" + url.PathEscape(itemID) + "/stream"
	q := url.Values{"static": {"true"}, "mediaSourceId": {sourceID}}
	if playSessionID != "" {
		q.Set("playSessionId", playSessionID)
	}
	if c.cfg.APIKey != "" {
		q.Set("api_key", c.cfg.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// resolve turns a server-relative url into an absolute one.
func (c *Client) resolve(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	u := *c.base
	path, query, _ := strings.Cut(ref, "?")
	u.Path = c.base.Path + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query
	return u.String()
}

// ReportStart announces a new playback to the server.
func (c *Client) ReportStart(ctx context.Context, r ports.ProgressReport) error {
	return c.report(ctx, "report_start", "/Sessions/Playing", r)
}

// ReportProgress sends a periodic position update.
func (c *Client) ReportProgress(ctx context.Context, r ports.ProgressReport) error {
	return c.report(ctx, "report_progress", "/Sessions/Playing/Progress", r)
}

// ReportStop closes the server-side playback session.
func (c *Client) ReportStop(ctx context.Context, r ports.ProgressReport) error {
	return c.report(ctx, "report_stop", "/Sessions/Playing/Stopped", r)
}

// MarkPlayed flags the item as watched for the user.
func (c *Client) MarkPlayed(ctx context.Context, itemID string) error {
	q := url.Values{"userId": {c.cfg.UserID}}
	return c.reports.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, "mark_played", http.MethodPost, "/UserPlayedItems/"+url.PathEscape(itemID), q, nil, nil)
	})
}

func (c *Client) report(ctx context.Context, op, path string, r ports.ProgressReport) error {
	body := playbackReportDTO{
		ItemID:              r.ItemID,
		MediaSourceID:       r.MediaSourceID,
		PlaySessionID:       r.PlaySessionID,
		PositionTicks:       r.PositionTicks,
		IsPaused:            r.IsPaused,
		AudioStreamIndex:    r.AudioIndex,
		SubtitleStreamIndex: r.SubtitleIndex,
		CanSeek:             true,
	}
	return c.reports.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, op, http.MethodPost, path, nil, body, nil)
	})
}

// do performs one request. Any HTTP response counts as reachability; only transport
// failures feed the offline detector.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) (err error) {
	start := time.Now()
	defer func() {
		if !errors.Is(err, context.Canceled) {
			metrics.RecordUpstreamRequest(op, result(err), start)
		}
	}()

	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		buf, mErr := json.Marshal(in)
		if mErr != nil {
			return fmt.Errorf("mediaserver: %s: encode request: %w", op, mErr)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("mediaserver: %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.auth)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return err
		}
		if c.monitor != nil && ctx.Err() == nil {
			c.monitor.ObserveFailure(err)
		}
		c.logger.Debug().Err(err).Str("operation", op).Msg("media server request failed")
		return &Error{Sentinel: transportSentinel(err), Operation: op, Err: err}
	}
	defer func() { _ = res.Body.Close() }()
	if c.monitor != nil {
		c.monitor.ObserveSuccess()
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &Error{
			Sentinel:  statusSentinel(res.StatusCode),
			Operation: op,
			Status:    res.StatusCode,
			Body:      strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &Error{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Err: err}
	}
	return nil
}
