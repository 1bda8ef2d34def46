// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import "errors"

// Session error taxonomy. Only ErrNegotiationFailed and ErrProgressRestore are shown to
// the user; the rest degrade silently.
var (
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrNegotiationFailed  = errors.New("negotiation failed")
	ErrDetailFetchFailed  = errors.New("item detail fetch failed")
	ErrPersistenceFailed  = errors.New("persistence failed")
	ErrProgressRestore    = errors.New("could not restore progress")
)
