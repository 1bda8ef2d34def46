// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/couchplay/internal/capabilities"
	"github.com/ManuGH/couchplay/internal/domain/media"
)

const minimalYAML = `
server:
  base_url: http://jellyfin.local:8096
  user_id: user-1
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: http://jellyfin.local:8096
  api_key: secret
  user_id: user-1
  timeout: 3s
storage:
  backend: memory
playback:
  hdr_preference: sdr
  quality: 1080p
  report_interval: 30s
capabilities:
  video_codecs:
    - codec: hevc
      ten_bit: true
  hdr: [hdr10]
  dolby_vision_profiles: [8]
  audio_codecs: [aac, eac3]
log:
  level: debug
`)
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "http://jellyfin.local:8096", cfg.Server.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 2, cfg.Server.OfflineAfter, "unset fields keep defaults")
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 30*time.Second, cfg.Playback.ReportInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []int{8}, cfg.Capabilities.DolbyVisionProfiles)
	assert.Equal(t, []capabilities.CodecSupport{{Codec: "hevc", TenBit: true}}, cfg.Capabilities.VideoCodecs)

	d := cfg.Playback.Defaults()
	assert.Equal(t, media.HDRForceSDR, d.HDRPreference.Kind)
	assert.Equal(t, media.Quality1080p, d.Quality.Kind)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	t.Setenv("COUCHPLAY_USER_ID", "user-2")
	t.Setenv("COUCHPLAY_REPORT_INTERVAL", "1m")
	t.Setenv("COUCHPLAY_MAX_STREAMING_BITRATE", "20000000")
	t.Setenv("COUCHPLAY_TELEMETRY_ENABLED", "true")
	t.Setenv("COUCHPLAY_OTLP_ENDPOINT", "localhost:4317")
	t.Setenv("COUCHPLAY_LOG_LEVEL", "WARN")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "user-2", cfg.Server.UserID)
	assert.Equal(t, time.Minute, cfg.Playback.ReportInterval)
	assert.Equal(t, int64(20000000), cfg.Playback.MaxStreamingBitrate)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("COUCHPLAY_SERVER_URL", "https://media.example.com/jf")
	t.Setenv("COUCHPLAY_USER_ID", "user-1")
	t.Setenv("COUCHPLAY_STORAGE_BACKEND", "memory")

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/jf", cfg.Server.BaseURL)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	t.Setenv("COUCHPLAY_REPORT_INTERVAL", "soon")

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COUCHPLAY_REPORT_INTERVAL")
}

func TestLoad_StrictParsing(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", minimalYAML + "bouquet: news\n", "strict config parse error"},
		{"trailing document", minimalYAML + "---\nserver: {}\n", "multiple documents"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeConfig(t, tt.body)).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path).Load()
	require.ErrorContains(t, err, "only YAML supported")
}

func TestValidate(t *testing.T) {
	valid := func() AppConfig {
		cfg := Default()
		cfg.Server.BaseURL = "http://jellyfin.local"
		cfg.Server.UserID = "user-1"
		return cfg
	}
	require.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"missing url", func(c *AppConfig) { c.Server.BaseURL = "" }, "server.base_url: is required"},
		{"bad url", func(c *AppConfig) { c.Server.BaseURL = "ftp://x" }, "http(s) url"},
		{"missing user", func(c *AppConfig) { c.Server.UserID = "" }, "server.user_id: is required"},
		{"bad backend", func(c *AppConfig) { c.Storage.Backend = "redis" }, "storage.backend: must be one of"},
		{"file without dir", func(c *AppConfig) { c.Storage.Backend = "file" }, "storage.data_dir: is required"},
		{"bad exporter", func(c *AppConfig) { c.Telemetry.Exporter = "zipkin" }, "telemetry.exporter"},
		{"telemetry without endpoint", func(c *AppConfig) { c.Telemetry.Enabled = true }, "telemetry.endpoint: is required"},
		{"sampling range", func(c *AppConfig) { c.Telemetry.SamplingRate = 2 }, "telemetry.sampling_rate"},
		{"bad level", func(c *AppConfig) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *AppConfig) { c.Log.Format = "xml" }, "log.format"},
		{"unknown hdr", func(c *AppConfig) { c.Playback.HDRPreference = "vivid" }, "playback.hdr_preference"},
		{"unknown quality", func(c *AppConfig) { c.Playback.Quality = "8k" }, "playback.quality"},
		{"negative dv", func(c *AppConfig) { c.Capabilities.DolbyVisionProfiles = []int{-1} }, "negative profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestString_MasksAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Server.APIKey = "super-secret"
	out := cfg.String()
	assert.NotContains(t, out, "super-secret")
	assert.Contains(t, out, "***")
}

func TestTracerConfig(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = "collector:4318"
	cfg.Telemetry.Exporter = "http"

	tc := cfg.Telemetry.TracerConfig("v1.2.3")
	assert.True(t, tc.Enabled)
	assert.Equal(t, "couchplay", tc.ServiceName)
	assert.Equal(t, "v1.2.3", tc.ServiceVersion)
	assert.Equal(t, "http", tc.ExporterType)
	assert.Equal(t, "collector:4318", tc.Endpoint)
}
