// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"path"
	"strings"

	"github.com/MunifTanjim/go-ptt"
)

// VersionLabel returns a human label for a media source. Server-supplied names win;
// otherwise the label is derived from the file name (resolution, HDR, codec).
func VersionLabel(s MediaSource) string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	base := path.Base(strings.ReplaceAll(s.Path, "\\", "/"))
	if base == "" || base == "." || base == "/" {
		return labelFromStreams(s)
	}

	info := ptt.Parse(base)
	var parts []string
	if info.Resolution != "" {
		parts = append(parts, info.Resolution)
	}
	parts = append(parts, info.HDR...)
	if info.Codec != "" {
		parts = append(parts, strings.ToUpper(info.Codec))
	}
	if info.BitDepth != "" {
		parts = append(parts, info.BitDepth)
	}
	if len(parts) == 0 {
		return labelFromStreams(s)
	}
	return strings.Join(parts, " ")
}

func labelFromStreams(s MediaSource) string {
	if len(s.Video) == 0 {
		if s.Container != "" {
			return strings.ToUpper(s.Container)
		}
		return s.ID
	}
	v := s.Video[0]
	parts := []string{QualityOf(v).String()}
	if v.IsDolbyVision() {
		parts = append(parts, "DV")
	} else if v.IsHDR() && v.VideoRangeType != "" {
		parts = append(parts, v.VideoRangeType)
	}
	if v.Codec != "" {
		parts = append(parts, strings.ToUpper(v.Codec))
	}
	return strings.Join(parts, " ")
}
