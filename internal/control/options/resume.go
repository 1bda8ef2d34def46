// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package options

import (
	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/progress/resume"
)

// ResumeTicks picks the last known position: the local store first, then the server's
// user data. Finished titles resume at 0. The result is clamped to the item runtime.
func ResumeTicks(item media.Item, local *resume.State) int64 {
	runtime := item.RunTimeTicks
	if src, ok := item.PrimarySource(); ok {
		runtime = item.Runtime(src)
	}
	if local != nil {
		if local.Finished {
			return 0
		}
		return media.ClampTicks(local.PositionTicks, runtime)
	}
	if item.UserData.Played {
		return 0
	}
	return media.ClampTicks(item.UserData.PlaybackPositionTicks, runtime)
}
