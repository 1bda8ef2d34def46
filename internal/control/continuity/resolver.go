// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package continuity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/couchplay/internal/control/options"
	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/domain/session/ports"
	xglog "github.com/ManuGH/couchplay/internal/log"
	"github.com/ManuGH/couchplay/internal/metrics"
	"github.com/ManuGH/couchplay/internal/netutil"
)

// ErrNoTarget is returned when navigation runs off either end of the sibling list.
var ErrNoTarget = errors.New("continuity: no navigation target")

// Direction is a relative navigation step.
type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

// Resolver fetches detail for a navigation target and carries the current selection
// over to it. Concurrent fetches for the same target share one request.
type Resolver struct {
	catalog ports.Catalog
	network netutil.Monitor
	group   singleflight.Group
	logger  zerolog.Logger
}

func NewResolver(catalog ports.Catalog, network netutil.Monitor) *Resolver {
	if network == nil {
		network = netutil.StaticMonitor(true)
	}
	return &Resolver{
		catalog: catalog,
		network: network,
		logger:  xglog.WithComponent("continuity"),
	}
}

// Resolve returns the target's full detail (or target itself when the fetch fails or
// the server is unreachable) and the carried-over intent. It never blocks navigation
// on a failed fetch.
func (r *Resolver) Resolve(ctx context.Context, current media.PlaybackOptions, target media.Item) (media.Item, options.Intent) {
	item := target
	if detail, err := r.fetch(ctx, target.ID); err != nil {
		reason := "fetch_failed"
		if errors.Is(err, ports.ErrNetworkUnavailable) {
			reason = "offline"
		}
		metrics.RecordDetailFallback(reason)
		r.logger.Warn().Err(err).
			Str(xglog.FieldItemID, target.ID).
			Str(xglog.FieldEvent, "continuity.detail_fallback").
			Msg("using known item metadata for navigation target")
	} else {
		item = detail
	}
	return item, Carry(current, item)
}

func (r *Resolver) fetch(ctx context.Context, itemID string) (media.Item, error) {
	if r.catalog == nil {
		return media.Item{}, fmt.Errorf("%w: no catalog", ports.ErrDetailFetchFailed)
	}
	if !r.network.Online() {
		return media.Item{}, fmt.Errorf("%w: %w", ports.ErrDetailFetchFailed, ports.ErrNetworkUnavailable)
	}

	ch := r.group.DoChan(itemID, func() (any, error) {
		// Shared by every waiter, so it must not die with the first caller's context.
		return r.catalog.GetItem(context.WithoutCancel(ctx), itemID)
	})
	select {
	case <-ctx.Done():
		return media.Item{}, fmt.Errorf("%w: %w", ports.ErrDetailFetchFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return media.Item{}, fmt.Errorf("%w: %w", ports.ErrDetailFetchFailed, res.Err)
		}
		return res.Val.(media.Item), nil
	}
}

// Target resolves the sibling index reached from current in dir.
func Target(siblings []media.Item, current int, dir Direction) (int, error) {
	next := current + int(dir)
	if current < 0 || current >= len(siblings) || next < 0 || next >= len(siblings) {
		return -1, ErrNoTarget
	}
	return next, nil
}

// Jump validates an absolute sibling index.
func Jump(siblings []media.Item, index int) (int, error) {
	if index < 0 || index >= len(siblings) {
		return -1, ErrNoTarget
	}
	return index, nil
}

// IndexOf returns the position of itemID among siblings, or -1.
func IndexOf(siblings []media.Item, itemID string) int {
	for i, s := range siblings {
		if s.ID == itemID {
			return i
		}
	}
	return -1
}
