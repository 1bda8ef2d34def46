// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_Reconfigures(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prev)
		Configure(Config{})
	})

	var first, second bytes.Buffer
	Configure(Config{Level: "info", Output: &first})
	hidden := WithComponent("test")
	hidden.Debug().Msg("hidden")
	assert.Zero(t, first.Len(), "debug is below info")

	Configure(Config{Level: "debug", Output: &second, Service: "svc", Version: "v1"})
	visible := WithComponent("test")
	visible.Debug().Str(FieldItemID, "item-1").Msg("visible")
	assert.Zero(t, first.Len(), "old writer is no longer used")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(second.Bytes(), &entry))
	assert.Equal(t, "svc", entry["service"])
	assert.Equal(t, "v1", entry["version"])
	assert.Equal(t, "test", entry[FieldComponent])
	assert.Equal(t, "item-1", entry[FieldItemID])
}

func TestConfigure_ConsoleAndDefaults(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prev)
		Configure(Config{})
	})

	var buf bytes.Buffer
	Configure(Config{Level: "bogus", Format: "console", Output: &buf})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel(), "invalid level falls back to info")

	L().Info().Msg("hello console")
	assert.Contains(t, buf.String(), "hello console")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "console output is not JSON")
}
