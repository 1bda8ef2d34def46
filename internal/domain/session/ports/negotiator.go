// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"context"

	"github.com/ManuGH/couchplay/internal/domain/media"
)

// VideoConstraints describe the selected video stream to the server.
type VideoConstraints struct {
	Codec     string `json:"codec,omitempty"`
	Range     string `json:"range,omitempty"`
	RangeType string `json:"rangeType,omitempty"`
	Profile   string `json:"profile,omitempty"`
	BitDepth  int    `json:"bitDepth,omitempty"`
}

// NegotiationRequest asks the server for a playable stream for a selection.
type NegotiationRequest struct {
	ItemID            string
	MediaSourceID     string
	DirectPlayAllowed bool
	Video             VideoConstraints
	AudioIndex        *int
	// SubtitleIndex is media.SubtitleOff for no subtitles.
	SubtitleIndex       int
	StartTicks          int64
	Transcode           media.TranscodeOption
	MaxStreamingBitrate int64
}

// NegotiationResult is the server's answer: a stream URL plus the concrete media source
// (and stream list) it will serve.
type NegotiationResult struct {
	URL           string
	PlaySessionID string
	MediaSource   media.MediaSource
	IsTranscoding bool
}

// Negotiator performs playback negotiation. It may block on the network and must
// honour ctx cancellation.
type Negotiator interface {
	Negotiate(ctx context.Context, req NegotiationRequest) (NegotiationResult, error)
}
