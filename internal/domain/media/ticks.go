// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import "time"

// TicksPerSecond is the position unit used throughout: 100ns ticks.
const TicksPerSecond int64 = 10_000_000

// TicksFromDuration converts a duration to ticks.
func TicksFromDuration(d time.Duration) int64 {
	return int64(d / 100)
}

// DurationFromTicks converts ticks to a duration.
func DurationFromTicks(ticks int64) time.Duration {
	return time.Duration(ticks) * 100
}

// ClampTicks bounds a position to [0, runtime]. A non-positive runtime means unknown and
// only the lower bound applies.
func ClampTicks(ticks, runtime int64) int64 {
	if ticks < 0 {
		return 0
	}
	if runtime > 0 && ticks > runtime {
		return runtime
	}
	return ticks
}
