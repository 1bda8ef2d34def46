// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import "context"

// ProgressReport is one playback report sent to the media server.
type ProgressReport struct {
	ItemID        string
	MediaSourceID string
	PlaySessionID string
	PositionTicks int64
	IsPaused      bool
	AudioIndex    *int
	SubtitleIndex *int
}

// Reporter publishes playback state to the media server.
type Reporter interface {
	ReportStart(ctx context.Context, r ProgressReport) error
	ReportProgress(ctx context.Context, r ProgressReport) error
	ReportStop(ctx context.Context, r ProgressReport) error
	MarkPlayed(ctx context.Context, itemID string) error
}
