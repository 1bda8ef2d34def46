// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

// SegmentType labels a time range of a title.
type SegmentType string

const (
	SegmentIntro      SegmentType = "Intro"
	SegmentRecap      SegmentType = "Recap"
	SegmentPreview    SegmentType = "Preview"
	SegmentOutro      SegmentType = "Outro"
	SegmentCommercial SegmentType = "Commercial"
	SegmentUnknown    SegmentType = "Unknown"
)

// Segment is a labeled [StartTicks, EndTicks) range.
type Segment struct {
	ID         string      `json:"id"`
	ItemID     string      `json:"itemId"`
	Type       SegmentType `json:"type"`
	StartTicks int64       `json:"startTicks"`
	EndTicks   int64       `json:"endTicks"`
}

// Contains reports whether position falls inside the segment.
func (s Segment) Contains(ticks int64) bool {
	return ticks >= s.StartTicks && ticks < s.EndTicks
}

// ActiveSegment returns the first segment containing position, if any.
func ActiveSegment(segments []Segment, ticks int64) (Segment, bool) {
	for _, s := range segments {
		if s.Contains(ticks) {
			return s, true
		}
	}
	return Segment{}, false
}
