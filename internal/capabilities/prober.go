// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capabilities

import "sync"

// Prober computes the device capability. Implementations live outside the core.
type Prober interface {
	Probe() Profile
}

// ProberFunc adapts a function to Prober.
type ProberFunc func() Profile

func (f ProberFunc) Probe() Profile { return f() }

// StaticProber returns a fixed profile, e.g. from configuration.
type StaticProber struct {
	Spec Spec
}

func (s StaticProber) Probe() Profile { return New(s.Spec) }

// Cached probes lazily on first call and returns the same snapshot for the process lifetime.
func Cached(p Prober) func() Profile {
	return sync.OnceValue(p.Probe)
}
