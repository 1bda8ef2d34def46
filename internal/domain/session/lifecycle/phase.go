// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

// Phase is the coarse state of a playback session.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseInitializing Phase = "initializing"
	PhaseReady        Phase = "ready"
	PhaseRebuilding   Phase = "rebuilding"
	PhaseEnded        Phase = "ended"
)

// AllPhases lists every phase in declaration order.
var AllPhases = []Phase{PhaseIdle, PhaseInitializing, PhaseReady, PhaseRebuilding, PhaseEnded}

func (p Phase) String() string { return string(p) }

// Playable reports whether a stream URL is authoritative in this phase.
func (p Phase) Playable() bool {
	return p == PhaseReady || p == PhaseRebuilding
}
