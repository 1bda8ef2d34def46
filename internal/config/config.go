// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the couchplay configuration with precedence ENV > file > defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/couchplay/internal/capabilities"
	"github.com/ManuGH/couchplay/internal/control/options"
	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/telemetry"
)

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	Server       ServerConfig      `yaml:"server"`
	Storage      StorageConfig     `yaml:"storage"`
	Playback     PlaybackConfig    `yaml:"playback"`
	Capabilities capabilities.Spec `yaml:"capabilities"`
	API          APIConfig         `yaml:"api"`
	Telemetry    TelemetryConfig   `yaml:"telemetry"`
	Log          LogConfig         `yaml:"log"`
}

// ServerConfig addresses the media server.
type ServerConfig struct {
	BaseURL    string        `yaml:"base_url" validate:"required,http_url"`
	APIKey     string        `yaml:"api_key"`
	UserID     string        `yaml:"user_id" validate:"required"`
	DeviceID   string        `yaml:"device_id"`
	DeviceName string        `yaml:"device_name"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
	// OfflineAfter is the number of consecutive transport failures before offline mode.
	OfflineAfter int `yaml:"offline_after" validate:"gte=0"`
}

// StorageConfig selects where preferences and resume positions live.
type StorageConfig struct {
	Backend   string        `yaml:"backend" validate:"oneof=sqlite file memory"`
	DataDir   string        `yaml:"data_dir" validate:"required_if=Backend file"`
	CacheSize int           `yaml:"cache_size" validate:"gte=0"`
	CacheTTL  time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

// PlaybackConfig holds playback defaults and reporting cadence.
type PlaybackConfig struct {
	HDRPreference       string        `yaml:"hdr_preference"`
	Quality             string        `yaml:"quality"`
	ReportInterval      time.Duration `yaml:"report_interval" validate:"gte=0"`
	MaxStreamingBitrate int64         `yaml:"max_streaming_bitrate" validate:"gte=0"`
	PersistTimeout      time.Duration `yaml:"persist_timeout" validate:"gte=0"`
}

// APIConfig configures the local status API.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int `yaml:"rate_limit" validate:"gte=0"`
}

// TelemetryConfig configures OTLP tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"oneof=grpc http"`
	Endpoint     string  `yaml:"endpoint" validate:"required_if=Enabled true"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	Environment  string  `yaml:"environment"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Default returns the built-in defaults.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			DeviceName:   "couchplay",
			Timeout:      15 * time.Second,
			OfflineAfter: 2,
		},
		Storage: StorageConfig{
			Backend:   "sqlite",
			CacheSize: 256,
			CacheTTL:  5 * time.Minute,
		},
		Playback: PlaybackConfig{
			HDRPreference:  "auto",
			Quality:        "auto",
			ReportInterval: 10 * time.Second,
			PersistTimeout: 5 * time.Second,
		},
		API: APIConfig{
			ListenAddr: "127.0.0.1:8089",
			RateLimit:  120,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			SamplingRate: 1.0,
			Environment:  "production",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Defaults converts the playback section into resolver defaults.
func (p PlaybackConfig) Defaults() options.Defaults {
	return options.Defaults{
		HDRPreference: media.ParseHDRPreference(p.HDRPreference),
		Quality:       media.ParseVideoQuality(p.Quality),
	}
}

// TracerConfig converts the telemetry section.
func (t TelemetryConfig) TracerConfig(serviceVersion string) telemetry.Config {
	return telemetry.Config{
		Enabled:        t.Enabled,
		ServiceName:    "couchplay",
		ServiceVersion: serviceVersion,
		Environment:    t.Environment,
		ExporterType:   t.Exporter,
		Endpoint:       t.Endpoint,
		SamplingRate:   t.SamplingRate,
	}
}

// Loader loads configuration with precedence ENV > file > defaults.
type Loader struct {
	path string
}

// NewLoader creates a loader for the YAML file at path. An empty path means ENV only.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the watched file path.
func (l *Loader) Path() string { return l.path }

// Load parses the file strictly, applies the environment and validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.path != "" {
		if err := loadFile(l.path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, fmt.Errorf("apply environment: %w", err)
	}
	if cfg.Storage.DataDir != "" {
		if abs, err := filepath.Abs(cfg.Storage.DataDir); err == nil {
			cfg.Storage.DataDir = abs
		}
	}
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg. Unknown fields are fatal.
func loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

// String renders the configuration with secrets masked.
func (c AppConfig) String() string {
	masked := c
	if masked.Server.APIKey != "" {
		masked.Server.APIKey = "***"
	}
	out, err := yaml.Marshal(masked)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}
