// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func toMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestNegotiationAttributes(t *testing.T) {
	attrs := toMap(NegotiationAttributes("rebuild", "item-1", "src-2", 7, true, "original", 1_200_000_000))

	assert.Equal(t, "rebuild", attrs[NegotiationKey].AsString())
	assert.Equal(t, "item-1", attrs[ItemIDKey].AsString())
	assert.Equal(t, "src-2", attrs[MediaSourceIDKey].AsString())
	assert.Equal(t, int64(7), attrs[GenerationKey].AsInt64())
	assert.True(t, attrs[DirectPlayKey].AsBool())
	assert.Equal(t, "original", attrs[TranscodeKey].AsString())
	assert.Equal(t, int64(1_200_000_000), attrs[StartTicksKey].AsInt64())
}

func TestSelectionAttributes(t *testing.T) {
	idx := 2
	attrs := toMap(SelectionAttributes("hevc", "DOVIWithHDR10", &idx, -1))
	assert.Equal(t, "hevc", attrs[VideoCodecKey].AsString())
	assert.Equal(t, "DOVIWithHDR10", attrs[VideoRangeTypeKey].AsString())
	assert.Equal(t, int64(2), attrs[AudioIndexKey].AsInt64())
	assert.Equal(t, int64(-1), attrs[SubtitleIndexKey].AsInt64())

	bare := SelectionAttributes("", "", nil, 3)
	assert.Len(t, bare, 1)
}

func TestErrorAttributes(t *testing.T) {
	attrs := toMap(ErrorAttributes("network_unavailable"))
	assert.True(t, attrs[ErrorKey].AsBool())
	assert.Equal(t, "network_unavailable", attrs[ErrorTypeKey].AsString())
}
