// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ManuGH/couchplay/internal/api"
	"github.com/ManuGH/couchplay/internal/capabilities"
	"github.com/ManuGH/couchplay/internal/config"
	"github.com/ManuGH/couchplay/internal/domain/session/lifecycle"
	"github.com/ManuGH/couchplay/internal/domain/session/manager"
	"github.com/ManuGH/couchplay/internal/health"
	"github.com/ManuGH/couchplay/internal/log"
	"github.com/ManuGH/couchplay/internal/mediaserver"
	"github.com/ManuGH/couchplay/internal/netutil"
	"github.com/ManuGH/couchplay/internal/persistence/sqlite"
	"github.com/ManuGH/couchplay/internal/preferences"
	"github.com/ManuGH/couchplay/internal/progress"
	"github.com/ManuGH/couchplay/internal/progress/resume"
	"github.com/ManuGH/couchplay/internal/telemetry"
	"github.com/ManuGH/couchplay/internal/version"
)

// app owns every long-lived component of the process.
type app struct {
	tracing *telemetry.Provider
	catalog *mediaserver.CachingCatalog
	prefs   preferences.Store
	resume  resume.Store
	session *manager.Orchestrator
	api     *api.Server
	started atomic.Bool
}

func newApp(ctx context.Context, cfg config.AppConfig) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.closeStores()
			_ = a.tracing.Shutdown(context.WithoutCancel(ctx))
		}
	}()

	a.tracing, err = telemetry.NewProvider(ctx, cfg.Telemetry.TracerConfig(version.Version))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	if cfg.Storage.DataDir != "" {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		if err := health.CheckDataDir(cfg.Storage.DataDir); err != nil {
			return nil, err
		}
	}

	monitor := netutil.NewPassiveMonitor(cfg.Server.OfflineAfter, log.WithComponent("network"))
	caps := capabilities.Cached(capabilities.StaticProber{Spec: cfg.Capabilities})
	client, err := mediaserver.New(mediaserver.Config{
		BaseURL:      cfg.Server.BaseURL,
		APIKey:       cfg.Server.APIKey,
		UserID:       cfg.Server.UserID,
		DeviceID:     cfg.Server.DeviceID,
		DeviceName:   cfg.Server.DeviceName,
		Timeout:      cfg.Server.Timeout,
		Capabilities: caps,
	}, monitor)
	if err != nil {
		return nil, err
	}
	a.catalog = mediaserver.NewCachingCatalog(client, mediaserver.CacheConfig{
		Size: cfg.Storage.CacheSize,
		TTL:  cfg.Storage.CacheTTL,
	})

	if a.prefs, err = preferences.NewStore(cfg.Storage.Backend, cfg.Storage.DataDir); err != nil {
		return nil, err
	}
	if a.resume, err = resume.NewStore(cfg.Storage.Backend, cfg.Storage.DataDir); err != nil {
		return nil, err
	}

	tracker := progress.NewTracker(a.resume, client, monitor, progress.Config{
		UserID:         cfg.Server.UserID,
		ReportInterval: cfg.Playback.ReportInterval,
		PersistTimeout: cfg.Playback.PersistTimeout,
	})
	a.session = manager.New(manager.Deps{
		Catalog:     a.catalog,
		Negotiator:  client,
		Preferences: a.prefs,
		Tracker:     tracker,
		Network:     monitor,
		Caps:        caps,
	}, manager.Config{
		Defaults:            cfg.Playback.Defaults(),
		MaxStreamingBitrate: cfg.Playback.MaxStreamingBitrate,
		PersistTimeout:      cfg.Playback.PersistTimeout,
	})

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NetworkChecker{Monitor: monitor})
	hm.RegisterChecker(health.DataDirChecker{Path: cfg.Storage.DataDir})
	if dbs := sqliteFiles(cfg.Storage); len(dbs) > 0 {
		hm.RegisterChecker(health.CheckerFunc{CheckName: "sqlite", Fn: func(ctx context.Context) health.CheckResult {
			for _, path := range dbs {
				if err := sqlite.QuickCheck(ctx, path); err != nil {
					return health.CheckResult{Status: health.StatusUnhealthy, Error: err.Error()}
				}
			}
			return health.CheckResult{Status: health.StatusHealthy, Message: "integrity ok"}
		}})
	}
	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = "couchplay-api"
	}
	a.api = api.New(api.Config{
		ListenAddr:     cfg.API.ListenAddr,
		RateLimit:      cfg.API.RateLimit,
		Version:        version.Version,
		TracingService: tracingService,
	}, a.session, hm)
	return a, nil
}

// sqliteFiles lists the databases the configured backend writes to.
func sqliteFiles(st config.StorageConfig) []string {
	if st.DataDir == "" {
		return nil
	}
	switch st.Backend {
	case "sqlite", "":
		return []string{
			filepath.Join(st.DataDir, preferences.SqliteFile),
			filepath.Join(st.DataDir, resume.SqliteFile),
		}
	case "file":
		return []string{filepath.Join(st.DataDir, resume.SqliteFile)}
	default:
		return nil
	}
}

// start fetches the item and negotiates its first stream. A failed negotiation is
// logged and left visible in the session state; only a failed item fetch is fatal.
func (a *app) start(ctx context.Context, itemID string, fromStart bool) error {
	logger := log.WithComponentFromContext(log.ContextWithItemID(ctx, itemID), "main")
	item, err := a.catalog.GetItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("fetch item %s: %w", itemID, err)
	}
	if err := a.session.Initialize(ctx, item, fromStart); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	a.started.Store(true)
	if err := a.session.Await(ctx); err != nil {
		return err
	}
	st := a.session.State()
	if st.Phase != lifecycle.PhaseReady {
		logger.Warn().Str(log.FieldEvent, "session.not_ready").Str("error", st.Error).Msg("session did not become ready")
		return nil
	}
	logger.Info().
		Str(log.FieldEvent, "session.ready").
		Str(log.FieldURL, st.StreamURL).
		Bool("transcoding", st.IsTranscoding).
		Msg("stream negotiated")
	return nil
}

// observe logs phase changes and track switches until ctx is done.
func (a *app) observe(ctx context.Context) {
	logger := log.WithComponent("main")
	states, unsubscribe := a.session.Subscribe()
	defer unsubscribe()
	tracks := a.session.TrackChanges()

	var last lifecycle.Phase
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if st.Phase != last {
				logger.Info().
					Str(log.FieldEvent, "session.phase").
					Str(log.FieldOldState, last.String()).
					Str(log.FieldNewState, st.Phase.String()).
					Uint64(log.FieldGeneration, st.Generation).
					Msg("session phase changed")
				last = st.Phase
			}
		case ev, ok := <-tracks:
			if !ok {
				return
			}
			logger.Info().
				Str(log.FieldEvent, "session.track_change").
				Str(log.FieldMediaSourceID, ev.MediaSourceID).
				Int(log.FieldSubtitleIndex, ev.SubtitleIndex).
				Uint64(log.FieldGeneration, ev.Generation).
				Msg("tracks switched in place")
		}
	}
}

// shutdown reports the stop, then releases resources in reverse order of creation.
func (a *app) shutdown(ctx context.Context) {
	logger := log.WithComponent("main")
	if a.started.Load() && a.session.State().Phase != lifecycle.PhaseIdle {
		if err := a.session.Stop(ctx); err != nil && !errors.Is(err, manager.ErrClosed) {
			logger.Warn().Err(err).Str(log.FieldEvent, "session.stop_failed").Msg("could not stop session")
		}
	}
	if err := a.session.Close(); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "session.close_failed").Msg("could not close session")
	}
	a.closeStores()
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Str(log.FieldEvent, "telemetry.shutdown_failed").Msg("could not flush traces")
		}
	}
}

func (a *app) closeStores() {
	for _, c := range []interface{ Close() error }{a.prefs, a.resume} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			logger := log.WithComponent("main")
			logger.Warn().Err(err).Str(log.FieldEvent, "store.close_failed").Msg("could not close store")
		}
	}
}
