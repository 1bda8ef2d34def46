// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/couchplay/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// ReloadFunc observes a successful reload.
type ReloadFunc func(old, next AppConfig)

// Holder holds the current configuration and reloads it when the file changes.
// A reload that fails to load or validate keeps the previous configuration.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []ReloadFunc

	wg sync.WaitGroup
}

// NewHolder creates a holder with an already loaded configuration.
func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  xglog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers fn to run after every successful reload.
func (h *Holder) OnReload(fn ReloadFunc) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload loads and validates the configuration, then swaps it in atomically.
func (h *Holder) Reload() error {
	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("keeping previous configuration")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = next
	h.mu.Unlock()

	h.listenersMu.RLock()
	listeners := append([]ReloadFunc(nil), h.listeners...)
	h.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(old, next)
	}

	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded")
	return nil
}

// Watch reloads on changes to the config file until ctx is done. The parent directory
// is watched so that editors replacing the file by rename are picked up. Watch is a
// no-op when the loader has no file.
func (h *Holder) Watch(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("no config file, watcher disabled")
		return nil
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.logger.Info().Str("event", "config.watcher_started").Str("path", path).Msg("watching config file")
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.watchLoop(ctx, watcher, path)
	}()
	return nil
}

// Wait blocks until the watcher goroutine has exited.
func (h *Holder) Wait() { h.wg.Wait() }

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer func() { _ = watcher.Close() }()

	var debounce *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			_ = h.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// ApplyLogLevel is a ReloadFunc that hot-applies log.level changes.
func ApplyLogLevel(old, next AppConfig) {
	if old.Log.Level == next.Log.Level {
		return
	}
	logger := xglog.WithComponent("config")
	if err := xglog.SetLevel(next.Log.Level); err != nil {
		logger.Warn().Err(err).Str("level", next.Log.Level).Msg("ignoring invalid log level")
		return
	}
	logger.Info().Str("old", old.Log.Level).Str("new", next.Log.Level).Msg("log level changed")
}
