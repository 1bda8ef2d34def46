// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package mediaserver

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/domain/session/ports"
	"github.com/ManuGH/couchplay/internal/metrics"
)

// CacheConfig sizes the catalog cache.
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// CachingCatalog serves repeated catalog reads from a bounded TTL cache. NextUp is
// never cached since it changes whenever an episode completes.
type CachingCatalog struct {
	next     ports.Catalog
	items    *expirable.LRU[string, media.Item]
	segments *expirable.LRU[string, []media.Segment]
	episodes *expirable.LRU[string, []media.Item]
}

var _ ports.Catalog = (*CachingCatalog)(nil)

// NewCachingCatalog wraps next.
func NewCachingCatalog(next ports.Catalog, cfg CacheConfig) *CachingCatalog {
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &CachingCatalog{
		next:     next,
		items:    expirable.NewLRU[string, media.Item](cfg.Size, nil, cfg.TTL),
		segments: expirable.NewLRU[string, []media.Segment](cfg.Size, nil, cfg.TTL),
		episodes: expirable.NewLRU[string, []media.Item](cfg.Size, nil, cfg.TTL),
	}
}

// GetItem only caches items that carry stream metadata.
func (c *CachingCatalog) GetItem(ctx context.Context, itemID string) (media.Item, error) {
	if it, ok := c.items.Get(itemID); ok {
		metrics.RecordCatalogCache("item", true)
		return cloneItem(it), nil
	}
	metrics.RecordCatalogCache("item", false)
	it, err := c.next.GetItem(ctx, itemID)
	if err != nil {
		return media.Item{}, err
	}
	if it.HasStreamMetadata() {
		c.items.Add(itemID, cloneItem(it))
	}
	return it, nil
}

func (c *CachingCatalog) GetSegments(ctx context.Context, itemID string) ([]media.Segment, error) {
	if segs, ok := c.segments.Get(itemID); ok {
		metrics.RecordCatalogCache("segments", true)
		return append([]media.Segment(nil), segs...), nil
	}
	metrics.RecordCatalogCache("segments", false)
	segs, err := c.next.GetSegments(ctx, itemID)
	if err != nil {
		return nil, err
	}
	c.segments.Add(itemID, append([]media.Segment(nil), segs...))
	return segs, nil
}

func (c *CachingCatalog) GetEpisodes(ctx context.Context, seriesID, seasonID string) ([]media.Item, error) {
	key := seriesID + "/" + seasonID
	if eps, ok := c.episodes.Get(key); ok {
		metrics.RecordCatalogCache("episodes", true)
		return cloneItems(eps), nil
	}
	metrics.RecordCatalogCache("episodes", false)
	eps, err := c.next.GetEpisodes(ctx, seriesID, seasonID)
	if err != nil {
		return nil, err
	}
	c.episodes.Add(key, cloneItems(eps))
	return eps, nil
}

func (c *CachingCatalog) GetNextUp(ctx context.Context, seriesID string) ([]media.Item, error) {
	return c.next.GetNextUp(ctx, seriesID)
}

func cloneItem(it media.Item) media.Item {
	out := it
	if it.MediaSources != nil {
		out.MediaSources = make([]media.MediaSource, len(it.MediaSources))
		for i, s := range it.MediaSources {
			out.MediaSources[i] = s.Clone()
		}
	}
	return out
}

func cloneItems(in []media.Item) []media.Item {
	if in == nil {
		return nil
	}
	out := make([]media.Item, len(in))
	for i, it := range in {
		out[i] = cloneItem(it)
	}
	return out
}
