// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

// EventKind is a domain event in the session lifecycle.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvInitialize
	EvNegotiated
	EvFailed
	EvRebuild
	EvComplete
	EvStop
)

var eventNames = map[EventKind]string{
	EvUnknown:    "unknown",
	EvInitialize: "initialize",
	EvNegotiated: "negotiated",
	EvFailed:     "failed",
	EvRebuild:    "rebuild",
	EvComplete:   "complete",
	EvStop:       "stop",
}

func (e EventKind) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return "unknown"
}
