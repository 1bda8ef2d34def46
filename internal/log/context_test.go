// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextIDs(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		session string
		item    string
	}{
		{name: "nil context", ctx: nil, session: "s-1", item: "i-1"},
		{name: "background context", ctx: context.Background(), session: "s-2", item: "i-2"},
		{name: "empty ids", ctx: context.Background(), session: "", item: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithSessionID(tt.ctx, tt.session)
			ctx = ContextWithItemID(ctx, tt.item)
			ctx = ContextWithRequestID(ctx, tt.item+"-req")
			assert.Equal(t, tt.session, SessionIDFromContext(ctx))
			assert.Equal(t, tt.item, ItemIDFromContext(ctx))
			assert.Equal(t, tt.item+"-req", RequestIDFromContext(ctx))
		})
	}
}

func TestIDsFromNilContext(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	assert.Empty(t, SessionIDFromContext(nil))
	//nolint:staticcheck
	assert.Empty(t, ItemIDFromContext(nil))
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithSessionID(context.Background(), "sess-9")
	ctx = ContextWithItemID(ctx, "item-3")

	l := WithContext(ctx, base)
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sess-9", entry[FieldSessionID])
	assert.Equal(t, "item-3", entry[FieldItemID])
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	l := WithContext(context.Background(), base)
	l.Info().Msg("plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, hasSession := entry[FieldSessionID]
	assert.False(t, hasSession)
}

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.Error(t, SetLevel("loud"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}
