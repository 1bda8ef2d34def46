// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import (
	"context"

	"github.com/ManuGH/couchplay/internal/domain/media"
)

// Catalog reads item metadata from the media server.
type Catalog interface {
	// GetItem returns the full item detail including media sources and streams.
	GetItem(ctx context.Context, itemID string) (media.Item, error)
	GetSegments(ctx context.Context, itemID string) ([]media.Segment, error)
	// GetEpisodes lists a season's episodes in airing order.
	GetEpisodes(ctx context.Context, seriesID, seasonID string) ([]media.Item, error)
	GetNextUp(ctx context.Context, seriesID string) ([]media.Item, error)
}
