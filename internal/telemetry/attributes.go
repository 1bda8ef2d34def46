// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by couchplay spans.
const (
	ItemIDKey        = "couchplay.item_id"
	MediaSourceIDKey = "couchplay.media_source_id"
	GenerationKey    = "couchplay.generation"
	NegotiationKey   = "couchplay.negotiation.kind"
	DirectPlayKey    = "couchplay.negotiation.direct_play"
	TranscodeKey     = "couchplay.negotiation.transcode"
	StartTicksKey    = "couchplay.negotiation.start_ticks"
	TranscodingKey   = "couchplay.negotiation.is_transcoding"

	VideoCodecKey     = "couchplay.video.codec"
	VideoRangeTypeKey = "couchplay.video.range_type"
	AudioIndexKey     = "couchplay.audio.index"
	SubtitleIndexKey  = "couchplay.subtitle.index"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// NegotiationAttributes describes one negotiation request.
func NegotiationAttributes(kind, itemID, sourceID string, generation uint64, directPlay bool, transcode string, startTicks int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(NegotiationKey, kind),
		attribute.String(ItemIDKey, itemID),
		attribute.String(MediaSourceIDKey, sourceID),
		attribute.Int64(GenerationKey, int64(generation)),
		attribute.Bool(DirectPlayKey, directPlay),
		attribute.String(TranscodeKey, transcode),
		attribute.Int64(StartTicksKey, startTicks),
	}
}

// SelectionAttributes describes the selected streams; absent streams are omitted.
func SelectionAttributes(videoCodec, rangeType string, audioIndex *int, subtitleIndex int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if videoCodec != "" {
		attrs = append(attrs, attribute.String(VideoCodecKey, videoCodec))
	}
	if rangeType != "" {
		attrs = append(attrs, attribute.String(VideoRangeTypeKey, rangeType))
	}
	if audioIndex != nil {
		attrs = append(attrs, attribute.Int(AudioIndexKey, *audioIndex))
	}
	attrs = append(attrs, attribute.Int(SubtitleIndexKey, subtitleIndex))
	return attrs
}

// ErrorAttributes records an error class on a span.
func ErrorAttributes(errType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errType),
	}
}
