// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable_NoDuplicates(t *testing.T) {
	seen := map[Phase]map[EventKind]struct{}{}
	for _, tr := range transitionsTable {
		if _, ok := seen[tr.From]; !ok {
			seen[tr.From] = map[EventKind]struct{}{}
		}
		if _, exists := seen[tr.From][tr.Event]; exists {
			t.Fatalf("duplicate transition: %s + %v", tr.From, tr.Event)
		}
		seen[tr.From][tr.Event] = struct{}{}
	}
}

func TestTransitionTable_Edges(t *testing.T) {
	tests := []struct {
		from Phase
		ev   EventKind
		want Phase
		ok   bool
	}{
		{PhaseIdle, EvInitialize, PhaseInitializing, true},
		{PhaseInitializing, EvNegotiated, PhaseReady, true},
		{PhaseInitializing, EvFailed, PhaseIdle, true},
		{PhaseReady, EvRebuild, PhaseRebuilding, true},
		{PhaseRebuilding, EvRebuild, PhaseRebuilding, true},
		{PhaseRebuilding, EvNegotiated, PhaseReady, true},
		{PhaseRebuilding, EvFailed, PhaseReady, true},
		{PhaseReady, EvComplete, PhaseEnded, true},
		{PhaseEnded, EvInitialize, PhaseInitializing, true},
		{PhaseEnded, EvStop, PhaseIdle, true},

		{PhaseIdle, EvRebuild, PhaseIdle, false},
		{PhaseIdle, EvNegotiated, PhaseIdle, false},
		{PhaseIdle, EvStop, PhaseIdle, false},
		{PhaseInitializing, EvRebuild, PhaseInitializing, false},
		{PhaseInitializing, EvComplete, PhaseInitializing, false},
		{PhaseEnded, EvRebuild, PhaseEnded, false},
		{PhaseReady, EvNegotiated, PhaseReady, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.ev.String(), func(t *testing.T) {
			got, err := Next(tt.from, tt.ev)
			if !tt.ok {
				require.ErrorIs(t, err, ErrIllegalTransition)
				assert.Equal(t, tt.from, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransitionTable_EveryPhaseCanInitialize(t *testing.T) {
	for _, p := range AllPhases {
		_, ok := TransitionFor(p, EvInitialize)
		assert.True(t, ok, "phase %s", p)
	}
}
