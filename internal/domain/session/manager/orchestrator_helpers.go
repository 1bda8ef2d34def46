// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/couchplay/internal/control/continuity"
	"github.com/ManuGH/couchplay/internal/control/options"
	"github.com/ManuGH/couchplay/internal/control/selection"
	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/domain/session/lifecycle"
	"github.com/ManuGH/couchplay/internal/domain/session/ports"
	xglog "github.com/ManuGH/couchplay/internal/log"
	"github.com/ManuGH/couchplay/internal/metrics"
	"github.com/ManuGH/couchplay/internal/progress"
	"github.com/ManuGH/couchplay/internal/progress/resume"
	"github.com/ManuGH/couchplay/internal/telemetry"
)

const (
	outcomeSuccess    = metrics.OutcomeSuccess
	outcomeFailure    = metrics.OutcomeFailure
	outcomeSuperseded = metrics.OutcomeSuperseded
)

func recordNegotiation(kind, outcome string, start time.Time) {
	metrics.RecordNegotiation(kind, outcome, start)
}

// detach derives a context that keeps parent's values but is cancelled only by the
// returned func or by Close.
func (o *Orchestrator) detach(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(o.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// supersedeLocked cancels the in-flight generation and invalidates its result.
func (o *Orchestrator) supersedeLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.gen++
	o.state.Generation = o.gen
	settled := make(chan struct{})
	close(settled)
	o.settled = settled
}

// beginLocked supersedes the in-flight generation and opens a new one. The caller
// must hand done to goLocked.
func (o *Orchestrator) beginLocked(parent context.Context) (context.Context, uint64, chan struct{}) {
	o.supersedeLocked()
	ctx, cancel := o.detach(xglog.ContextWithSessionID(parent, o.state.SessionID))
	o.cancel = cancel
	done := make(chan struct{})
	o.settled = done
	return ctx, o.gen, done
}

func (o *Orchestrator) goLocked(done chan struct{}, fn func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(done)
		fn()
	}()
}

// transitionLocked applies ev through the lifecycle table. Illegal transitions are
// counted and logged and leave the phase untouched.
func (o *Orchestrator) transitionLocked(ev lifecycle.EventKind) error {
	from := o.state.Phase
	to, err := lifecycle.Next(from, ev)
	if err != nil {
		metrics.RecordIllegalTransition(from.String(), ev.String())
		o.logger.Warn().Err(err).
			Str(xglog.FieldOldState, from.String()).
			Str(xglog.FieldKind, ev.String()).
			Str(xglog.FieldEvent, "session.illegal_transition").
			Msg("rejected lifecycle transition")
		return err
	}
	if from != to {
		metrics.RecordSessionTransition(from.String(), to.String())
		o.logger.Debug().
			Str(xglog.FieldOldState, from.String()).
			Str(xglog.FieldNewState, to.String()).
			Msg("session transition")
	}
	o.state.Phase = to
	return nil
}

func (o *Orchestrator) resetItemLocked(target media.Item) {
	if target.SeasonID == "" || target.SeasonID != o.item.SeasonID {
		o.state.Episodes = nil
	}
	o.item = target
	o.applied = media.PlaybackOptions{}
	o.pending = media.PlaybackOptions{}
	o.positionTicks = 0

	s := &o.state
	s.ItemID = target.ID
	s.ItemName = target.Name
	s.Options = media.PlaybackOptions{}
	s.StreamURL = ""
	s.PlaySessionID = ""
	s.IsTranscoding = false
	s.IsBuffering = false
	s.Predicates = selection.Predicates{}
	s.Versions = versionsOf(target)
	s.Dialogs = Dialogs{}
	s.Error = ""
	s.Notice = ""
	s.Segments = nil
	s.ActiveSegment = nil
	s.OnDeck = nil
	s.EpisodeIndex = continuity.IndexOf(s.Episodes, target.ID)
}

// applyLocked makes a negotiated selection authoritative. The subtitle offset is
// never negotiated, so the latest requested one is kept.
func (o *Orchestrator) applyLocked(opts media.PlaybackOptions, result ports.NegotiationResult, gen uint64) {
	opts.SubtitleOffsetMs = o.pending.SubtitleOffsetMs
	prev := o.applied
	o.applied = opts.Clone()
	o.pending = opts.Clone()

	s := &o.state
	s.Options = opts.Clone()
	s.StreamURL = result.URL
	s.PlaySessionID = result.PlaySessionID
	s.IsTranscoding = result.IsTranscoding
	s.Predicates = selection.ComputePredicates(opts.Video, opts.Audio, o.caps())
	s.Error = ""

	if prev.MediaSource.ID == "" || prev.MediaSource.ID != opts.MediaSource.ID {
		return
	}
	if sameIndex(prev.AudioIndex(), opts.AudioIndex()) && prev.SubtitleIndex() == opts.SubtitleIndex() {
		return
	}
	ev := TrackChangeEvent{
		ItemID:        s.ItemID,
		MediaSourceID: opts.MediaSource.ID,
		AudioIndex:    opts.AudioIndex(),
		SubtitleIndex: opts.SubtitleIndex(),
		Generation:    gen,
	}
	select {
	case o.tracks <- ev:
	default:
		o.logger.Warn().Uint64(xglog.FieldGeneration, gen).Msg("track change dropped, no reader")
	}
}

func (o *Orchestrator) playbackLocked() progress.Playback {
	opts := o.applied
	return progress.Playback{
		ItemID:        o.state.ItemID,
		MediaSourceID: opts.MediaSource.ID,
		PlaySessionID: o.state.PlaySessionID,
		RuntimeTicks:  o.item.Runtime(opts.MediaSource),
		AudioIndex:    opts.AudioIndex(),
		SubtitleIndex: media.IntPtr(opts.SubtitleIndex()),
	}
}

func (o *Orchestrator) resolver() options.Resolver {
	return options.Resolver{Caps: o.caps(), Defaults: o.cfg.Defaults}
}

// ensureDetail fetches stream metadata for an item that lacks it. A failed fetch
// falls back to the known item as long as it names a media source to negotiate;
// the server's answer fills in the streams. fetched skips a second attempt after
// navigation already tried and fell back.
func (o *Orchestrator) ensureDetail(ctx context.Context, item media.Item, fetched bool) (media.Item, error) {
	if item.HasStreamMetadata() {
		return item, nil
	}

	var err error
	switch {
	case fetched, o.catalog == nil:
		err = fmt.Errorf("%w: %s has no stream metadata", ports.ErrDetailFetchFailed, item.ID)
	case !o.network.Online():
		err = fmt.Errorf("%w: %w", ports.ErrDetailFetchFailed, ports.ErrNetworkUnavailable)
	default:
		detail, ferr := o.catalog.GetItem(ctx, item.ID)
		if ferr == nil {
			return detail, nil
		}
		err = fmt.Errorf("%w: %w", ports.ErrDetailFetchFailed, ferr)
	}

	if len(item.MediaSources) == 0 {
		return item, err
	}
	if !fetched {
		reason := "fetch_failed"
		if errors.Is(err, ports.ErrNetworkUnavailable) {
			reason = "offline"
		}
		metrics.RecordDetailFallback(reason)
	}
	o.logger.Warn().Err(err).
		Str(xglog.FieldItemID, item.ID).
		Str(xglog.FieldEvent, "session.detail_fallback").
		Msg("negotiating with known item metadata")
	return item, nil
}

func (o *Orchestrator) loadPreferences(ctx context.Context, itemID string) *media.PlaybackPreferences {
	if o.prefs == nil {
		return nil
	}
	p, err := o.prefs.Get(ctx, itemID)
	if err != nil {
		metrics.RecordPersistenceFailure("preferences")
		o.logger.Warn().Err(fmt.Errorf("%w: %w", ports.ErrPersistenceFailed, err)).
			Str(xglog.FieldItemID, itemID).
			Msg("playback preferences unavailable, using defaults")
		return nil
	}
	return p
}

func (o *Orchestrator) loadResume(ctx context.Context, itemID string) (*resume.State, string) {
	st, err := o.tracker.Resume(ctx, itemID)
	if err != nil {
		o.logger.Warn().Err(err).Str(xglog.FieldItemID, itemID).Msg("local resume position unavailable")
		return nil, ports.ErrProgressRestore.Error()
	}
	return st, ""
}

func videoConstraints(v *media.VideoStream) ports.VideoConstraints {
	if v == nil {
		return ports.VideoConstraints{}
	}
	return ports.VideoConstraints{
		Codec:     v.Codec,
		Range:     v.VideoRange,
		RangeType: v.VideoRangeType,
		Profile:   v.Profile,
		BitDepth:  v.BitDepth,
	}
}

func (o *Orchestrator) negotiate(ctx context.Context, gen uint64, kind, itemID string, opts media.PlaybackOptions) (ports.NegotiationResult, error) {
	if o.negotiator == nil {
		return ports.NegotiationResult{}, fmt.Errorf("%w: no negotiator configured", ports.ErrNegotiationFailed)
	}
	if !o.network.Online() {
		return ports.NegotiationResult{}, fmt.Errorf("%w: %w", ports.ErrNegotiationFailed, ports.ErrNetworkUnavailable)
	}
	pred := selection.ComputePredicates(opts.Video, opts.Audio, o.caps())
	req := ports.NegotiationRequest{
		ItemID:              itemID,
		MediaSourceID:       opts.MediaSource.ID,
		DirectPlayAllowed:   pred.DirectPlayPossible && opts.Transcode.IsOriginal(),
		Video:               videoConstraints(opts.Video),
		AudioIndex:          opts.AudioIndex(),
		SubtitleIndex:       opts.SubtitleIndex(),
		StartTicks:          opts.ResumePositionTicks,
		Transcode:           opts.Transcode,
		MaxStreamingBitrate: o.cfg.MaxStreamingBitrate,
	}

	ctx, span := telemetry.Tracer("couchplay/session").Start(ctx, "session.negotiate",
		trace.WithAttributes(telemetry.NegotiationAttributes(kind, itemID, req.MediaSourceID, gen,
			req.DirectPlayAllowed, req.Transcode.String(), req.StartTicks)...))
	defer span.End()
	span.SetAttributes(telemetry.SelectionAttributes(req.Video.Codec, req.Video.RangeType, req.AudioIndex, req.SubtitleIndex)...)

	o.logger.Debug().
		Str(xglog.FieldItemID, itemID).
		Str(xglog.FieldMediaSourceID, req.MediaSourceID).
		Uint64(xglog.FieldGeneration, gen).
		Str(xglog.FieldKind, kind).
		Bool("direct_play", req.DirectPlayAllowed).
		Msg("negotiating stream")

	res, err := o.negotiator.Negotiate(ctx, req)
	if err == nil && res.URL == "" {
		err = errors.New("server returned no stream url")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "negotiation failed")
		span.SetAttributes(telemetry.ErrorAttributes("negotiation")...)
		if errors.Is(err, ports.ErrNegotiationFailed) {
			return ports.NegotiationResult{}, err
		}
		return ports.NegotiationResult{}, fmt.Errorf("%w: %w", ports.ErrNegotiationFailed, err)
	}
	span.SetAttributes(attribute.Bool(telemetry.TranscodingKey, res.IsTranscoding))
	return res, nil
}

// loadAuxLocked fetches segments and sibling episodes for item in the background.
// Results are dropped when another item has started meanwhile.
func (o *Orchestrator) loadAuxLocked(ctx context.Context, item media.Item) {
	if o.catalog == nil || !o.network.Online() {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		var (
			g        errgroup.Group
			segments []media.Segment
			episodes []media.Item
		)
		g.Go(func() error {
			s, err := o.catalog.GetSegments(ctx, item.ID)
			if err != nil {
				return fmt.Errorf("segments: %w", err)
			}
			segments = s
			return nil
		})
		if item.SeriesID != "" {
			g.Go(func() error {
				eps, err := o.catalog.GetEpisodes(ctx, item.SeriesID, item.SeasonID)
				if err != nil {
					return fmt.Errorf("episodes: %w", err)
				}
				episodes = eps
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			o.logger.Warn().Err(err).Str(xglog.FieldItemID, item.ID).Msg("auxiliary item data unavailable")
		}

		o.mu.Lock()
		defer o.mu.Unlock()
		if ctx.Err() != nil || o.state.ItemID != item.ID {
			return
		}
		if segments != nil {
			o.state.Segments = segments
			o.tracker.SetSegments(item.ID, segments)
		}
		if episodes != nil {
			o.state.Episodes = episodes
			o.state.EpisodeIndex = continuity.IndexOf(episodes, item.ID)
		}
		o.publishLocked()
	}()
}

// persistLocked saves the preferences derived from opts in the background. Writes for
// the same item land in request order; failures are logged and counted only.
func (o *Orchestrator) persistLocked(itemID string, opts media.PlaybackOptions) {
	if o.prefs == nil || itemID == "" || o.closed {
		return
	}
	prefs := options.Preferences(opts)
	prefs.UpdatedAt = o.cfg.Now()
	o.persistSeq++
	seq := o.persistSeq

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.persistMu.Lock()
		defer o.persistMu.Unlock()
		if seq < o.savedSeq[itemID] {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.PersistTimeout)
		defer cancel()
		if err := o.prefs.Save(ctx, itemID, prefs); err != nil {
			metrics.RecordPersistenceFailure("preferences")
			o.logger.Warn().Err(fmt.Errorf("%w: %w", ports.ErrPersistenceFailed, err)).
				Str(xglog.FieldItemID, itemID).
				Str(xglog.FieldEvent, "session.persist_failed").
				Msg("saving playback preferences failed")
			return
		}
		o.savedSeq[itemID] = seq
	}()
}

// publishLocked hands a snapshot to every subscriber, replacing an unread one.
func (o *Orchestrator) publishLocked() {
	if o.closed {
		return
	}
	for _, ch := range o.subs {
		snap := o.state.Clone()
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (o *Orchestrator) onSegment(seg *media.Segment) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.ActiveSegment = seg
	o.publishLocked()
}
