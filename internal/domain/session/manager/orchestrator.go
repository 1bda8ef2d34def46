// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package manager owns the live playback session: it turns a selection into a
// negotiated stream URL, rebuilds it on user-driven changes and carries the
// selection across episodes.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/couchplay/internal/capabilities"
	"github.com/ManuGH/couchplay/internal/control/continuity"
	"github.com/ManuGH/couchplay/internal/control/options"
	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/domain/session/lifecycle"
	"github.com/ManuGH/couchplay/internal/domain/session/ports"
	xglog "github.com/ManuGH/couchplay/internal/log"
	"github.com/ManuGH/couchplay/internal/netutil"
	"github.com/ManuGH/couchplay/internal/preferences"
	"github.com/ManuGH/couchplay/internal/progress"
	"github.com/ManuGH/couchplay/internal/progress/resume"
)

// ErrClosed is returned by commands issued after Close.
var ErrClosed = errors.New("session manager closed")

const (
	defaultPersistTimeout = 5 * time.Second
	trackChangeBuffer     = 16

	negotiationInitial = "initial"
	negotiationRebuild = "rebuild"
)

// Deps are the collaborators of an Orchestrator. Catalog, Preferences and Network may
// be nil; the session then runs without detail fetches, persistence or connectivity
// awareness respectively.
type Deps struct {
	Catalog     ports.Catalog
	Negotiator  ports.Negotiator
	Preferences preferences.Store
	Tracker     *progress.Tracker
	Network     netutil.Monitor
	Caps        func() capabilities.Profile
}

// Config tunes an Orchestrator.
type Config struct {
	Defaults            options.Defaults
	MaxStreamingBitrate int64
	PersistTimeout      time.Duration
	Now                 func() time.Time
}

// Orchestrator is the single writer of a playback session. Commands are accepted
// synchronously and negotiations run in the background; at most one negotiation is
// in flight and the newest request always wins.
type Orchestrator struct {
	catalog    ports.Catalog
	negotiator ports.Negotiator
	prefs      preferences.Store
	tracker    *progress.Tracker
	network    netutil.Monitor
	caps       func() capabilities.Profile
	cfg        Config
	continuity *continuity.Resolver
	logger     zerolog.Logger

	base      context.Context
	closeBase context.CancelFunc

	mu            sync.Mutex
	closed        bool
	state         PlaybackState
	item          media.Item
	applied       media.PlaybackOptions // last negotiated selection
	pending       media.PlaybackOptions // latest requested selection
	positionTicks int64
	gen           uint64
	cancel        context.CancelFunc
	settled       chan struct{}
	itemCancel    context.CancelFunc
	subs          map[int]chan PlaybackState
	nextSub       int
	tracks        chan TrackChangeEvent
	persistSeq    uint64

	persistMu sync.Mutex
	savedSeq  map[string]uint64

	wg sync.WaitGroup
}

// New builds an idle Orchestrator.
func New(d Deps, cfg Config) *Orchestrator {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if d.Network == nil {
		d.Network = netutil.StaticMonitor(true)
	}
	if d.Caps == nil {
		d.Caps = func() capabilities.Profile { return capabilities.Profile{} }
	}
	if d.Tracker == nil {
		d.Tracker = progress.NewTracker(resume.NewMemoryStore(), nil, d.Network, progress.Config{})
	}

	base, closeBase := context.WithCancel(context.Background())
	settled := make(chan struct{})
	close(settled)

	sessionID := uuid.NewString()
	o := &Orchestrator{
		catalog:    d.Catalog,
		negotiator: d.Negotiator,
		prefs:      d.Preferences,
		tracker:    d.Tracker,
		network:    d.Network,
		caps:       d.Caps,
		cfg:        cfg,
		continuity: continuity.NewResolver(d.Catalog, d.Network),
		logger:     xglog.WithComponent("session").With().Str(xglog.FieldSessionID, sessionID).Logger(),
		base:       base,
		closeBase:  closeBase,
		state: PlaybackState{
			SessionID:    sessionID,
			Phase:        lifecycle.PhaseIdle,
			EpisodeIndex: -1,
		},
		settled:  settled,
		subs:     make(map[int]chan PlaybackState),
		tracks:   make(chan TrackChangeEvent, trackChangeBuffer),
		savedSeq: make(map[string]uint64),
	}
	d.Tracker.OnSegmentChange(o.onSegment)
	return o
}

// Initialize starts a session for item, replacing whatever is playing. Detail is
// fetched first when the item carries no stream metadata.
func (o *Orchestrator) Initialize(ctx context.Context, item media.Item, startFromBeginning bool) error {
	return o.startItem(ctx, item, func(context.Context) (media.Item, *options.Intent, bool) {
		return item, nil, false
	}, startFromBeginning)
}

// Next advances to the following sibling episode, carrying the track selection over.
func (o *Orchestrator) Next(ctx context.Context) error {
	return o.navigate(ctx, func(eps []media.Item, cur int) (int, error) {
		return continuity.Target(eps, cur, continuity.Next)
	})
}

// Previous goes back to the preceding sibling episode.
func (o *Orchestrator) Previous(ctx context.Context) error {
	return o.navigate(ctx, func(eps []media.Item, cur int) (int, error) {
		return continuity.Target(eps, cur, continuity.Previous)
	})
}

// JumpTo plays the sibling episode at index.
func (o *Orchestrator) JumpTo(ctx context.Context, index int) error {
	return o.navigate(ctx, func(eps []media.Item, _ int) (int, error) {
		return continuity.Jump(eps, index)
	})
}

// ChangeAudio switches to the audio stream with the given source-scoped index.
func (o *Orchestrator) ChangeAudio(ctx context.Context, index int) error {
	return o.rebuild(ctx, DialogAudio, nil, func(r options.Resolver, cur media.PlaybackOptions) (media.PlaybackOptions, error) {
		return r.PickAudio(cur, index)
	})
}

// ChangeSubtitle switches subtitles; media.SubtitleOff turns them off.
func (o *Orchestrator) ChangeSubtitle(ctx context.Context, index int) error {
	return o.rebuild(ctx, DialogSubtitle, nil, func(r options.Resolver, cur media.PlaybackOptions) (media.PlaybackOptions, error) {
		return r.PickSubtitle(cur, index)
	})
}

// ChangeVersion switches to another media source of the current item.
func (o *Orchestrator) ChangeVersion(ctx context.Context, sourceID string) error {
	return o.rebuild(ctx, DialogVersion, nil, func(r options.Resolver, cur media.PlaybackOptions) (media.PlaybackOptions, error) {
		res, err := r.SwitchVersion(o.item, cur, sourceID)
		return res.Options, err
	})
}

// ChangeQuality re-filters the video stream within the current media source.
func (o *Orchestrator) ChangeQuality(ctx context.Context, quality media.VideoQuality) error {
	return o.rebuild(ctx, DialogQuality, nil, func(r options.Resolver, cur media.PlaybackOptions) (media.PlaybackOptions, error) {
		return r.ChangeQuality(cur, quality), nil
	})
}

// ChangeHDRPreference re-selects the video stream for a new dynamic-range preference.
func (o *Orchestrator) ChangeHDRPreference(ctx context.Context, hdr media.HDRPreference) error {
	return o.rebuild(ctx, DialogQuality, nil, func(r options.Resolver, cur media.PlaybackOptions) (media.PlaybackOptions, error) {
		return r.ChangeHDRPreference(cur, hdr), nil
	})
}

// ChangeTranscode records a transcode choice. The stream is only renegotiated when a
// start position is given; otherwise the choice applies to the next negotiation.
func (o *Orchestrator) ChangeTranscode(ctx context.Context, opt media.TranscodeOption, startTicks *int64) error {
	set := func(_ options.Resolver, cur media.PlaybackOptions) (media.PlaybackOptions, error) {
		out := cur.Clone()
		out.Transcode = opt
		return out, nil
	}
	if startTicks != nil {
		return o.rebuild(ctx, DialogQuality, startTicks, set)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if !o.state.Phase.Playable() {
		return o.transitionLocked(lifecycle.EvRebuild)
	}
	o.pending.Transcode = opt
	o.applied.Transcode = opt
	o.state.Options.Transcode = opt
	o.persistLocked(o.state.ItemID, o.pending)
	o.publishLocked()
	return nil
}

// SetSubtitleOffset clamps and persists a subtitle timing offset without renegotiating.
// It is only accepted while a stream is playable.
func (o *Orchestrator) SetSubtitleOffset(ms int) (int, error) {
	ms = media.ClampSubtitleOffset(ms)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, ErrClosed
	}
	if !o.state.Phase.Playable() {
		return 0, fmt.Errorf("set subtitle offset in phase %s: %w", o.state.Phase, lifecycle.ErrIllegalTransition)
	}
	o.pending.SubtitleOffsetMs = ms
	o.applied.SubtitleOffsetMs = ms
	o.state.Options.SubtitleOffsetMs = ms
	o.persistLocked(o.state.ItemID, o.pending)
	o.publishLocked()
	return ms, nil
}

// SetBuffering mirrors the player's buffering flag into the session state.
func (o *Orchestrator) SetBuffering(buffering bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.IsBuffering == buffering {
		return
	}
	o.state.IsBuffering = buffering
	o.publishLocked()
}

// ShowDialog marks a picker visible.
func (o *Orchestrator) ShowDialog(kind DialogKind) error { return o.setDialog(kind, true) }

// HideDialog marks a picker hidden.
func (o *Orchestrator) HideDialog(kind DialogKind) error { return o.setDialog(kind, false) }

func (o *Orchestrator) setDialog(kind DialogKind, visible bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.state.Dialogs.set(kind, visible); err != nil {
		return err
	}
	o.publishLocked()
	return nil
}

// ObservePosition feeds a player position tick into progress tracking.
func (o *Orchestrator) ObservePosition(ctx context.Context, position time.Duration, paused bool) {
	o.mu.Lock()
	if !o.state.Phase.Playable() {
		o.mu.Unlock()
		return
	}
	o.positionTicks = media.ClampTicks(media.TicksFromDuration(position), o.item.Runtime(o.applied.MediaSource))
	o.mu.Unlock()

	o.tracker.Update(ctx, position, paused)
}

// Complete handles the player's "playback completed" signal: the title is marked
// finished and follow-up recommendations are fetched in the background.
func (o *Orchestrator) Complete(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if err := o.transitionLocked(lifecycle.EvComplete); err != nil {
		return err
	}
	gctx, gen, done := o.beginLocked(ctx)
	o.pending = o.applied.Clone()
	o.state.IsBuffering = false
	o.tracker.Stop(ctx, media.DurationFromTicks(o.positionTicks), true)
	o.publishLocked()

	item := o.item
	o.goLocked(done, func() { o.loadOnDeck(gctx, gen, item) })
	return nil
}

// Stop ends the session and reports the last position.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if err := o.transitionLocked(lifecycle.EvStop); err != nil {
		return err
	}
	o.supersedeLocked()
	if o.itemCancel != nil {
		o.itemCancel()
		o.itemCancel = nil
	}
	o.pending = o.applied.Clone()
	o.tracker.Stop(ctx, media.DurationFromTicks(o.positionTicks), false)
	o.state.StreamURL = ""
	o.state.PlaySessionID = ""
	o.state.IsTranscoding = false
	o.state.IsBuffering = false
	o.publishLocked()
	return nil
}

// State returns a snapshot of the session.
func (o *Orchestrator) State() PlaybackState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Subscribe returns a channel of state snapshots. The channel holds only the latest
// snapshot; a slow reader skips intermediate ones. The returned func unsubscribes.
func (o *Orchestrator) Subscribe() (<-chan PlaybackState, func()) {
	ch := make(chan PlaybackState, 1)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- o.state.Clone()

	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
}

// TrackChanges yields in-place track switches confirmed by the server.
func (o *Orchestrator) TrackChanges() <-chan TrackChangeEvent {
	return o.tracks
}

// Await blocks until the work of the current generation (initialization, rebuild or
// next-up fetch) has finished, or ctx is done. Segment and episode loading is not awaited.
func (o *Orchestrator) Await(ctx context.Context) error {
	for {
		o.mu.Lock()
		ch := o.settled
		o.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}

		o.mu.Lock()
		stable := o.settled == ch
		o.mu.Unlock()
		if stable {
			return nil
		}
	}
}

// Close cancels in-flight work, waits for background goroutines and closes every
// observer channel. The session is not stopped; call Stop first to report it.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.supersedeLocked()
	if o.itemCancel != nil {
		o.itemCancel()
		o.itemCancel = nil
	}
	o.mu.Unlock()

	o.closeBase()
	o.wg.Wait()
	o.tracker.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
	close(o.tracks)
	return nil
}

// resolveFunc yields the item to play, the carried-over intent and whether a detail
// fetch was already attempted for it.
type resolveFunc func(context.Context) (media.Item, *options.Intent, bool)

func (o *Orchestrator) startItem(ctx context.Context, target media.Item, resolve resolveFunc, fromStart bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if err := o.transitionLocked(lifecycle.EvInitialize); err != nil {
		return err
	}
	o.tracker.Stop(ctx, media.DurationFromTicks(o.positionTicks), false)

	ctx = xglog.ContextWithItemID(ctx, target.ID)
	gctx, gen, done := o.beginLocked(ctx)
	if o.itemCancel != nil {
		o.itemCancel()
	}
	itemCtx, itemCancel := o.detach(ctx)
	o.itemCancel = itemCancel

	o.resetItemLocked(target)
	o.publishLocked()

	o.logger.Info().
		Str(xglog.FieldItemID, target.ID).
		Uint64(xglog.FieldGeneration, gen).
		Str(xglog.FieldEvent, "session.initialize").
		Msg("initializing playback session")

	o.goLocked(done, func() { o.runInit(gctx, itemCtx, gen, resolve, fromStart) })
	return nil
}

func (o *Orchestrator) navigate(ctx context.Context, pick func([]media.Item, int) (int, error)) error {
	o.mu.Lock()
	idx, err := pick(o.state.Episodes, o.state.EpisodeIndex)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	target := o.state.Episodes[idx]
	current := o.applied.Clone()
	o.mu.Unlock()

	return o.startItem(ctx, target, func(ctx context.Context) (media.Item, *options.Intent, bool) {
		item, intent := o.continuity.Resolve(ctx, current, target)
		if current.MediaSource.ID == "" {
			return item, nil, true
		}
		return item, &intent, true
	}, false)
}

func (o *Orchestrator) runInit(ctx, itemCtx context.Context, gen uint64, resolve resolveFunc, fromStart bool) {
	item, intent, fetched := resolve(ctx)

	item, err := o.ensureDetail(ctx, item, fetched)
	if err != nil {
		o.failInit(gen, err)
		return
	}

	prefs := o.loadPreferences(ctx, item.ID)
	local, notice := o.loadResume(ctx, item.ID)

	res, err := o.resolver().Resolve(options.Input{
		Item:               item,
		Preferences:        prefs,
		Intent:             intent,
		ResumeTicks:        options.ResumeTicks(item, local),
		StartFromBeginning: fromStart,
	})
	if err != nil {
		o.failInit(gen, fmt.Errorf("%w: %w", ports.ErrNegotiationFailed, err))
		return
	}

	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return
	}
	o.item = item
	o.pending = res.Options.Clone()
	o.state.Options = res.Options.Clone()
	o.state.ItemName = item.Name
	o.state.Versions = versionsOf(item)
	o.state.Notice = notice
	o.publishLocked()
	o.mu.Unlock()

	start := time.Now()
	result, err := o.negotiate(ctx, gen, negotiationInitial, item.ID, res.Options)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		recordNegotiation(negotiationInitial, outcomeSuperseded, start)
		return
	}
	if err != nil {
		recordNegotiation(negotiationInitial, outcomeFailure, start)
		o.failInitLocked(err)
		return
	}
	recordNegotiation(negotiationInitial, outcomeSuccess, start)

	o.applyLocked(options.Reconcile(res.Options, result.MediaSource), result, gen)
	o.positionTicks = o.applied.ResumePositionTicks
	_ = o.transitionLocked(lifecycle.EvNegotiated)
	o.tracker.Start(ctx, o.playbackLocked(), o.positionTicks)
	o.publishLocked()

	o.loadAuxLocked(itemCtx, item)
}

func (o *Orchestrator) rebuild(ctx context.Context, dialog DialogKind, startTicks *int64, mutate func(options.Resolver, media.PlaybackOptions) (media.PlaybackOptions, error)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if _, ok := lifecycle.TransitionFor(o.state.Phase, lifecycle.EvRebuild); !ok {
		return o.transitionLocked(lifecycle.EvRebuild)
	}

	// Build on the latest request, not the last applied one, so rapid successive
	// changes collapse into a single negotiation carrying all of them.
	next, err := mutate(o.resolver(), o.pending)
	if err != nil {
		return err
	}
	if startTicks != nil {
		o.positionTicks = *startTicks
	}
	next.ResumePositionTicks = media.ClampTicks(o.positionTicks, o.item.Runtime(next.MediaSource))
	next.StartFromBeginning = false

	if err := o.transitionLocked(lifecycle.EvRebuild); err != nil {
		return err
	}
	o.pending = next.Clone()
	o.persistLocked(o.state.ItemID, next)
	_ = o.state.Dialogs.set(dialog, false)

	gctx, gen, done := o.beginLocked(xglog.ContextWithItemID(ctx, o.state.ItemID))
	o.publishLocked()

	itemID := o.state.ItemID
	o.goLocked(done, func() { o.runRebuild(gctx, gen, itemID, next) })
	return nil
}

func (o *Orchestrator) runRebuild(ctx context.Context, gen uint64, itemID string, opts media.PlaybackOptions) {
	start := time.Now()
	result, err := o.negotiate(ctx, gen, negotiationRebuild, itemID, opts)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		recordNegotiation(negotiationRebuild, outcomeSuperseded, start)
		return
	}
	if err != nil {
		recordNegotiation(negotiationRebuild, outcomeFailure, start)
		// The last good stream stays authoritative; the user retries explicitly.
		o.pending = o.applied.Clone()
		o.state.Error = err.Error()
		o.state.IsTranscoding = false
		o.state.IsBuffering = false
		_ = o.transitionLocked(lifecycle.EvFailed)
		o.logger.Warn().Err(err).
			Str(xglog.FieldItemID, itemID).
			Uint64(xglog.FieldGeneration, gen).
			Str(xglog.FieldEvent, "session.rebuild_failed").
			Msg("rebuild negotiation failed, keeping previous stream")
		o.publishLocked()
		return
	}
	recordNegotiation(negotiationRebuild, outcomeSuccess, start)

	o.applyLocked(options.Reconcile(opts, result.MediaSource), result, gen)
	_ = o.transitionLocked(lifecycle.EvNegotiated)
	o.tracker.Start(ctx, o.playbackLocked(), o.positionTicks)
	o.tracker.SetSegments(itemID, o.state.Segments)
	o.publishLocked()
}

func (o *Orchestrator) failInit(gen uint64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return
	}
	o.failInitLocked(err)
}

func (o *Orchestrator) failInitLocked(err error) {
	o.state.Error = err.Error()
	o.state.IsTranscoding = false
	o.state.IsBuffering = false
	_ = o.transitionLocked(lifecycle.EvFailed)
	o.logger.Warn().Err(err).
		Str(xglog.FieldItemID, o.state.ItemID).
		Str(xglog.FieldEvent, "session.initialize_failed").
		Msg("playback initialization failed")
	o.publishLocked()
}

func (o *Orchestrator) loadOnDeck(ctx context.Context, gen uint64, item media.Item) {
	if o.catalog == nil || item.SeriesID == "" || !o.network.Online() {
		return
	}
	items, err := o.catalog.GetNextUp(ctx, item.SeriesID)
	if err != nil {
		o.logger.Warn().Err(err).
			Str(xglog.FieldItemID, item.ID).
			Str(xglog.FieldEvent, "session.next_up_failed").
			Msg("next-up fetch failed")
		return
	}

	deck := make([]media.Item, 0, len(items))
	for _, it := range items {
		if it.ID != item.ID {
			deck = append(deck, it)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return
	}
	o.state.OnDeck = deck
	if len(deck) > 0 {
		o.state.Dialogs.NextUp = true
	}
	o.publishLocked()
}
