// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldPlaySessionID = "play_session_id"
	FieldItemID        = "item_id"
	FieldMediaSourceID = "media_source_id"
	FieldUserID        = "user_id"
	FieldRequestID     = "request_id"

	// Process fields
	FieldEvent      = "event"
	FieldComponent  = "component"
	FieldGeneration = "generation"
	FieldKind       = "kind"

	// Stream fields
	FieldCodec         = "codec"
	FieldResolution    = "resolution"
	FieldVideoRange    = "video_range"
	FieldDVProfile     = "dv_profile"
	FieldAudioIndex    = "audio_index"
	FieldSubtitleIndex = "subtitle_index"
	FieldReason        = "reason"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Position fields
	FieldPositionTicks = "position_ticks"
	FieldSegmentID     = "segment_id"

	// Network fields
	FieldURL    = "url"
	FieldStatus = "status"
)
