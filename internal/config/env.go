// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/couchplay/internal/log"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COUCHPLAY_"

type lookupFunc func(key string) (string, bool)

type envBinding struct {
	key   string
	apply func(cfg *AppConfig, value string) error
}

func str(set func(*AppConfig, string)) func(*AppConfig, string) error {
	return func(cfg *AppConfig, v string) error {
		set(cfg, v)
		return nil
	}
}

func duration(set func(*AppConfig, time.Duration)) func(*AppConfig, string) error {
	return func(cfg *AppConfig, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		set(cfg, d)
		return nil
	}
}

func integer(set func(*AppConfig, int64)) func(*AppConfig, string) error {
	return func(cfg *AppConfig, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		set(cfg, n)
		return nil
	}
}

func boolean(set func(*AppConfig, bool)) func(*AppConfig, string) error {
	return func(cfg *AppConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		set(cfg, b)
		return nil
	}
}

var envBindings = []envBinding{
	{"SERVER_URL", str(func(c *AppConfig, v string) { c.Server.BaseURL = v })},
	{"API_KEY", str(func(c *AppConfig, v string) { c.Server.APIKey = v })},
	{"USER_ID", str(func(c *AppConfig, v string) { c.Server.UserID = v })},
	{"DEVICE_ID", str(func(c *AppConfig, v string) { c.Server.DeviceID = v })},
	{"DEVICE_NAME", str(func(c *AppConfig, v string) { c.Server.DeviceName = v })},
	{"SERVER_TIMEOUT", duration(func(c *AppConfig, d time.Duration) { c.Server.Timeout = d })},
	{"OFFLINE_AFTER", integer(func(c *AppConfig, n int64) { c.Server.OfflineAfter = int(n) })},
	{"STORAGE_BACKEND", str(func(c *AppConfig, v string) { c.Storage.Backend = strings.ToLower(v) })},
	{"DATA_DIR", str(func(c *AppConfig, v string) { c.Storage.DataDir = v })},
	{"HDR_PREFERENCE", str(func(c *AppConfig, v string) { c.Playback.HDRPreference = v })},
	{"QUALITY", str(func(c *AppConfig, v string) { c.Playback.Quality = v })},
	{"REPORT_INTERVAL", duration(func(c *AppConfig, d time.Duration) { c.Playback.ReportInterval = d })},
	{"MAX_STREAMING_BITRATE", integer(func(c *AppConfig, n int64) { c.Playback.MaxStreamingBitrate = n })},
	{"LISTEN_ADDR", str(func(c *AppConfig, v string) { c.API.ListenAddr = v })},
	{"RATE_LIMIT", integer(func(c *AppConfig, n int64) { c.API.RateLimit = int(n) })},
	{"TELEMETRY_ENABLED", boolean(func(c *AppConfig, b bool) { c.Telemetry.Enabled = b })},
	{"OTLP_EXPORTER", str(func(c *AppConfig, v string) { c.Telemetry.Exporter = strings.ToLower(v) })},
	{"OTLP_ENDPOINT", str(func(c *AppConfig, v string) { c.Telemetry.Endpoint = v })},
	{"LOG_LEVEL", str(func(c *AppConfig, v string) { c.Log.Level = strings.ToLower(v) })},
	{"LOG_FORMAT", str(func(c *AppConfig, v string) { c.Log.Format = strings.ToLower(v) })},
}

// applyEnv overrides cfg from COUCHPLAY_* variables. Empty values are ignored.
func applyEnv(cfg *AppConfig, lookup lookupFunc) error {
	logger := log.WithComponent("config")
	var errs []error
	for _, b := range envBindings {
		key := EnvPrefix + b.key
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		ev := logger.Debug().Str("key", key).Str("source", "environment")
		if b.key == "API_KEY" {
			ev = ev.Bool("sensitive", true)
		}
		ev.Msg("using environment variable")
	}
	return errors.Join(errs...)
}
