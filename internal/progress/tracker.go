// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package progress records playback position locally and reports it to the media server.
package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/domain/session/ports"
	xglog "github.com/ManuGH/couchplay/internal/log"
	"github.com/ManuGH/couchplay/internal/metrics"
	"github.com/ManuGH/couchplay/internal/netutil"
	"github.com/ManuGH/couchplay/internal/progress/resume"
)

const (
	defaultReportInterval = 10 * time.Second
	defaultReportTimeout  = 5 * time.Second
	defaultPersistTimeout = 5 * time.Second
)

// Config tunes a Tracker.
type Config struct {
	UserID string
	// ReportInterval is the minimum spacing of remote progress reports.
	ReportInterval time.Duration
	ReportTimeout  time.Duration
	PersistTimeout time.Duration
	Now            func() time.Time
}

// Playback identifies what is currently being tracked.
type Playback struct {
	ItemID        string
	MediaSourceID string
	PlaySessionID string
	RuntimeTicks  int64
	AudioIndex    *int
	SubtitleIndex *int
}

// Tracker is safe for concurrent use. Local writes and remote reports both run in
// the background; Wait drains them.
type Tracker struct {
	store    resume.Store
	reporter ports.Reporter
	network  netutil.Monitor
	cfg      Config
	limiter  *rate.Limiter
	logger   zerolog.Logger

	mu        sync.Mutex
	current   Playback
	active    bool
	finished  bool
	segments  []media.Segment
	segment   *media.Segment
	onSegment func(*media.Segment)

	wg sync.WaitGroup
}

// NewTracker builds a tracker. reporter may be nil for purely local tracking.
func NewTracker(store resume.Store, reporter ports.Reporter, network netutil.Monitor, cfg Config) *Tracker {
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = defaultReportInterval
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = defaultReportTimeout
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if network == nil {
		network = netutil.StaticMonitor(true)
	}
	return &Tracker{
		store:    store,
		reporter: reporter,
		network:  network,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(cfg.ReportInterval), 1),
		logger:   xglog.WithComponent("progress"),
	}
}

// OnSegmentChange registers fn to be called (outside the lock) whenever the active
// segment identity changes; nil means no segment is active.
func (t *Tracker) OnSegmentChange(fn func(*media.Segment)) {
	t.mu.Lock()
	t.onSegment = fn
	t.mu.Unlock()
}

// Start begins tracking p at positionTicks and sends a start report.
func (t *Tracker) Start(ctx context.Context, p Playback, positionTicks int64) {
	t.mu.Lock()
	t.current = p
	t.active = true
	t.finished = false
	t.segments = nil
	t.segment = nil
	report := t.reportLocked(positionTicks, false)
	t.mu.Unlock()

	// Start reports are never throttled, but they consume the token so the first
	// periodic report is spaced from it.
	t.limiter.AllowN(t.cfg.Now(), 1)
	t.send(ctx, "start", report)
}

// SetSegments replaces the segment list when itemID is still being tracked.
func (t *Tracker) SetSegments(itemID string, segments []media.Segment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active || t.current.ItemID != itemID {
		return
	}
	t.segments = append([]media.Segment(nil), segments...)
}

// UpdateStreams records the currently selected tracks for subsequent reports.
func (t *Tracker) UpdateStreams(audioIndex, subtitleIndex *int) {
	t.mu.Lock()
	t.current.AudioIndex = audioIndex
	t.current.SubtitleIndex = subtitleIndex
	t.mu.Unlock()
}

// Update records a position tick. The local store is always written; the remote
// report is throttled and skipped while offline. Updates after the title was marked
// finished are ignored until the next Start.
func (t *Tracker) Update(ctx context.Context, position time.Duration, paused bool) {
	ticks := media.TicksFromDuration(position)
	now := t.cfg.Now()

	t.mu.Lock()
	if !t.active || t.finished {
		t.mu.Unlock()
		return
	}
	ticks = media.ClampTicks(ticks, t.current.RuntimeTicks)
	itemID, runtime := t.current.ItemID, t.current.RuntimeTicks
	changed, seg, cb := t.trackSegmentLocked(ticks)
	report := t.reportLocked(ticks, paused)
	t.mu.Unlock()

	t.persist(ctx, itemID, ticks, runtime, now)

	if changed {
		segType := "none"
		if seg != nil {
			segType = string(seg.Type)
		}
		metrics.RecordSegmentChange(segType)
		if cb != nil {
			cb(seg)
		}
	}

	if !t.limiter.AllowN(now, 1) {
		metrics.RecordProgressReport("progress", metrics.ReportThrottled)
		return
	}
	t.send(ctx, "progress", report)
}

// Stop ends tracking. A completed stop clears the resume position like MarkWatched.
func (t *Tracker) Stop(ctx context.Context, position time.Duration, completed bool) {
	ticks := media.TicksFromDuration(position)
	now := t.cfg.Now()

	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	ticks = media.ClampTicks(ticks, t.current.RuntimeTicks)
	itemID, runtime, finished := t.current.ItemID, t.current.RuntimeTicks, t.finished
	if completed {
		t.finished = true
	}
	report := t.reportLocked(ticks, false)
	t.active = false
	t.mu.Unlock()

	switch {
	case completed:
		t.markFinished(ctx, itemID, now)
	case !finished:
		t.persist(ctx, itemID, ticks, runtime, now)
	}
	t.send(ctx, "stop", report)
}

// MarkWatched marks itemID finished locally (resume position 0) and remotely.
func (t *Tracker) MarkWatched(ctx context.Context, itemID string) {
	now := t.cfg.Now()
	t.mu.Lock()
	if t.active && t.current.ItemID == itemID {
		t.finished = true
	}
	t.mu.Unlock()

	t.markFinished(ctx, itemID, now)
	if t.reporter == nil {
		return
	}
	if !t.network.Online() {
		metrics.RecordProgressReport("played", metrics.ReportOffline)
		return
	}
	t.background(ctx, "played", func(ctx context.Context) error {
		return t.reporter.MarkPlayed(ctx, itemID)
	})
}

// Resume returns the locally stored resume state for itemID, if any.
func (t *Tracker) Resume(ctx context.Context, itemID string) (*resume.State, error) {
	st, err := t.store.Get(ctx, t.cfg.UserID, itemID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrProgressRestore, err)
	}
	return st, nil
}

// ActiveSegment returns the segment containing the last observed position.
func (t *Tracker) ActiveSegment() (media.Segment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.segment == nil {
		return media.Segment{}, false
	}
	return *t.segment, true
}

// Wait blocks until in-flight local writes and remote reports have finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) trackSegmentLocked(ticks int64) (bool, *media.Segment, func(*media.Segment)) {
	seg, ok := media.ActiveSegment(t.segments, ticks)
	var next *media.Segment
	if ok {
		next = &seg
	}
	if segmentKey(next) == segmentKey(t.segment) {
		return false, nil, nil
	}
	t.segment = next
	var out *media.Segment
	if next != nil {
		cp := *next
		out = &cp
	}
	return true, out, t.onSegment
}

func segmentKey(s *media.Segment) string {
	if s == nil {
		return ""
	}
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("%s@%d-%d", s.Type, s.StartTicks, s.EndTicks)
}

func (t *Tracker) reportLocked(ticks int64, paused bool) ports.ProgressReport {
	return ports.ProgressReport{
		ItemID:        t.current.ItemID,
		MediaSourceID: t.current.MediaSourceID,
		PlaySessionID: t.current.PlaySessionID,
		PositionTicks: ticks,
		IsPaused:      paused,
		AudioIndex:    media.CloneIntPtr(t.current.AudioIndex),
		SubtitleIndex: media.CloneIntPtr(t.current.SubtitleIndex),
	}
}

// persist writes the resume position in the background. Writes may land out of
// order; the store keeps the one with the newest observation time.
func (t *Tracker) persist(ctx context.Context, itemID string, ticks, runtime int64, at time.Time) {
	t.local(ctx, func(ctx context.Context) {
		applied, err := t.store.RecordProgress(ctx, t.cfg.UserID, itemID, ticks, runtime, at)
		if err != nil {
			metrics.RecordPersistenceFailure("resume")
			t.logger.Warn().Err(err).Str(xglog.FieldItemID, itemID).Str(xglog.FieldEvent, "progress.persist_failed").Msg("local resume write failed")
			return
		}
		if !applied {
			t.logger.Debug().Str(xglog.FieldItemID, itemID).Int64(xglog.FieldPositionTicks, ticks).Msg("stale progress write discarded")
		}
	})
}

func (t *Tracker) markFinished(ctx context.Context, itemID string, at time.Time) {
	t.local(ctx, func(ctx context.Context) {
		if err := t.store.MarkFinished(ctx, t.cfg.UserID, itemID, at); err != nil {
			metrics.RecordPersistenceFailure("resume")
			t.logger.Warn().Err(err).Str(xglog.FieldItemID, itemID).Str(xglog.FieldEvent, "progress.finish_failed").Msg("local finished mark failed")
		}
	})
}

func (t *Tracker) local(ctx context.Context, write func(context.Context)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.PersistTimeout)
		defer cancel()
		write(wctx)
	}()
}

func (t *Tracker) send(ctx context.Context, kind string, r ports.ProgressReport) {
	if t.reporter == nil || r.ItemID == "" {
		return
	}
	if !t.network.Online() {
		metrics.RecordProgressReport(kind, metrics.ReportOffline)
		return
	}
	t.background(ctx, kind, func(ctx context.Context) error {
		switch kind {
		case "start":
			return t.reporter.ReportStart(ctx, r)
		case "stop":
			return t.reporter.ReportStop(ctx, r)
		default:
			return t.reporter.ReportProgress(ctx, r)
		}
	})
}

func (t *Tracker) background(ctx context.Context, kind string, call func(context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.ReportTimeout)
		defer cancel()
		if err := call(rctx); err != nil {
			metrics.RecordProgressReport(kind, metrics.ReportFailed)
			t.logger.Warn().Err(err).Str(xglog.FieldKind, kind).Str(xglog.FieldEvent, "progress.report_failed").Msg("remote playback report failed")
			return
		}
		metrics.RecordProgressReport(kind, metrics.ReportSent)
	}()
}
