// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package netutil tracks media-server reachability.
package netutil

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Monitor reports whether the media server is currently reachable.
type Monitor interface {
	Online() bool
}

// StaticMonitor always reports the same connectivity.
type StaticMonitor bool

func (m StaticMonitor) Online() bool { return bool(m) }

// DefaultOfflineAfter is the number of consecutive transport failures after which a
// PassiveMonitor reports offline.
const DefaultOfflineAfter = 2

// PassiveMonitor derives connectivity from observed request outcomes. It starts online
// and never probes on its own; the next successful request brings it back.
type PassiveMonitor struct {
	failures     atomic.Int32
	offlineAfter int32
	logger       zerolog.Logger
}

// NewPassiveMonitor creates a monitor that goes offline after offlineAfter consecutive
// transport failures (DefaultOfflineAfter when <= 0).
func NewPassiveMonitor(offlineAfter int, logger zerolog.Logger) *PassiveMonitor {
	if offlineAfter <= 0 {
		offlineAfter = DefaultOfflineAfter
	}
	return &PassiveMonitor{offlineAfter: int32(offlineAfter), logger: logger}
}

func (m *PassiveMonitor) Online() bool {
	return m.failures.Load() < m.offlineAfter
}

// ObserveSuccess records a request that reached the server.
func (m *PassiveMonitor) ObserveSuccess() {
	if prev := m.failures.Swap(0); prev >= m.offlineAfter {
		m.logger.Info().Str("event", "network.online").Msg("media server reachable again")
	}
}

// ObserveFailure records a transport-level failure (no HTTP response).
func (m *PassiveMonitor) ObserveFailure(err error) {
	if n := m.failures.Add(1); n == m.offlineAfter {
		m.logger.Warn().Err(err).Str("event", "network.offline").Msg("media server unreachable, switching to offline mode")
	}
}
