// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned for a (phase, event) pair with no table entry.
var ErrIllegalTransition = errors.New("illegal lifecycle transition")

// Transition is a single allowed edge in the lifecycle state machine.
type Transition struct {
	From  Phase
	To    Phase
	Event EventKind
}

var transitionsTable = []Transition{
	// Initialization; re-initializing replaces whatever is playing.
	{From: PhaseIdle, To: PhaseInitializing, Event: EvInitialize},
	{From: PhaseInitializing, To: PhaseInitializing, Event: EvInitialize},
	{From: PhaseReady, To: PhaseInitializing, Event: EvInitialize},
	{From: PhaseRebuilding, To: PhaseInitializing, Event: EvInitialize},
	{From: PhaseEnded, To: PhaseInitializing, Event: EvInitialize},

	{From: PhaseInitializing, To: PhaseReady, Event: EvNegotiated},
	{From: PhaseRebuilding, To: PhaseReady, Event: EvNegotiated},

	// Nothing playable yet returns to idle; a failed rebuild keeps the last good stream.
	{From: PhaseInitializing, To: PhaseIdle, Event: EvFailed},
	{From: PhaseRebuilding, To: PhaseReady, Event: EvFailed},

	{From: PhaseReady, To: PhaseRebuilding, Event: EvRebuild},
	{From: PhaseRebuilding, To: PhaseRebuilding, Event: EvRebuild},

	{From: PhaseReady, To: PhaseEnded, Event: EvComplete},
	{From: PhaseRebuilding, To: PhaseEnded, Event: EvComplete},

	{From: PhaseInitializing, To: PhaseIdle, Event: EvStop},
	{From: PhaseReady, To: PhaseIdle, Event: EvStop},
	{From: PhaseRebuilding, To: PhaseIdle, Event: EvStop},
	{From: PhaseEnded, To: PhaseIdle, Event: EvStop},
}

// TransitionFor returns the allowed transition for a given phase+event.
func TransitionFor(from Phase, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Next resolves the target phase or returns ErrIllegalTransition.
func Next(from Phase, ev EventKind) (Phase, error) {
	tr, ok := TransitionFor(from, ev)
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
	}
	return tr.To, nil
}
