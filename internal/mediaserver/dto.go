// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package mediaserver

import (
	"strings"

	"github.com/ManuGH/couchplay/internal/domain/media"
)

// Wire DTOs of the media server REST API. Field names follow the server's PascalCase.

type itemDTO struct {
	ID                string           `json:"Id"`
	Name              string           `json:"Name"`
	Type              string           `json:"Type"`
	SeriesID          string           `json:"SeriesId,omitempty"`
	SeasonID          string           `json:"SeasonId,omitempty"`
	IndexNumber       *int             `json:"IndexNumber,omitempty"`
	ParentIndexNumber *int             `json:"ParentIndexNumber,omitempty"`
	RunTimeTicks      *int64           `json:"RunTimeTicks,omitempty"`
	MediaSources      []mediaSourceDTO `json:"MediaSources,omitempty"`
	UserData          *userDataDTO     `json:"UserData,omitempty"`
}

type userDataDTO struct {
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks"`
	Played                bool  `json:"Played"`
}

type mediaSourceDTO struct {
	ID           string           `json:"Id"`
	Name         string           `json:"Name,omitempty"`
	Path         string           `json:"Path,omitempty"`
	Container    string           `json:"Container,omitempty"`
	Bitrate      *int64           `json:"Bitrate,omitempty"`
	RunTimeTicks *int64           `json:"RunTimeTicks,omitempty"`
	MediaStreams []mediaStreamDTO `json:"MediaStreams,omitempty"`

	SupportsDirectPlay   bool   `json:"SupportsDirectPlay"`
	SupportsDirectStream bool   `json:"SupportsDirectStream"`
	SupportsTranscoding  bool   `json:"SupportsTranscoding"`
	TranscodingURL       string `json:"TranscodingUrl,omitempty"`
}

type mediaStreamDTO struct {
	Index          int    `json:"Index"`
	Type           string `json:"Type"` // Video | Audio | Subtitle
	Codec          string `json:"Codec,omitempty"`
	Profile        string `json:"Profile,omitempty"`
	BitDepth       *int   `json:"BitDepth,omitempty"`
	Language       string `json:"Language,omitempty"`
	Title          string `json:"Title,omitempty"`
	Width          *int   `json:"Width,omitempty"`
	Height         *int   `json:"Height,omitempty"`
	Channels       *int   `json:"Channels,omitempty"`
	VideoRange     string `json:"VideoRange,omitempty"`
	VideoRangeType string `json:"VideoRangeType,omitempty"`
	DvProfile      *int   `json:"DvProfile,omitempty"`
	IsDefault      bool   `json:"IsDefault"`
	IsForced       bool   `json:"IsForced"`
	IsExternal     bool   `json:"IsExternal"`
}

type itemsResultDTO struct {
	Items            []itemDTO `json:"Items"`
	TotalRecordCount int       `json:"TotalRecordCount"`
}

type segmentDTO struct {
	ID         string `json:"Id"`
	ItemID     string `json:"ItemId"`
	Type       string `json:"Type"`
	StartTicks int64  `json:"StartTicks"`
	EndTicks   int64  `json:"EndTicks"`
}

type segmentsResultDTO struct {
	Items []segmentDTO `json:"Items"`
}

type playbackInfoRequestDTO struct {
	UserID               string         `json:"UserId,omitempty"`
	MediaSourceID        string         `json:"MediaSourceId,omitempty"`
	AudioStreamIndex     *int           `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex  *int           `json:"SubtitleStreamIndex,omitempty"`
	StartTimeTicks       int64          `json:"StartTimeTicks"`
	MaxStreamingBitrate  int64          `json:"MaxStreamingBitrate,omitempty"`
	EnableDirectPlay     bool           `json:"EnableDirectPlay"`
	EnableDirectStream   bool           `json:"EnableDirectStream"`
	EnableTranscoding    bool           `json:"EnableTranscoding"`
	AllowVideoStreamCopy bool           `json:"AllowVideoStreamCopy"`
	AllowAudioStreamCopy bool           `json:"AllowAudioStreamCopy"`
	AutoOpenLiveStream   bool           `json:"AutoOpenLiveStream"`
	DeviceProfile        *deviceProfile `json:"DeviceProfile,omitempty"`
}

type deviceProfile struct {
	Name                string               `json:"Name,omitempty"`
	MaxStreamingBitrate int64                `json:"MaxStreamingBitrate,omitempty"`
	DirectPlayProfiles  []directPlayProfile  `json:"DirectPlayProfiles"`
	TranscodingProfiles []transcodingProfile `json:"TranscodingProfiles"`
	CodecProfiles       []codecProfile       `json:"CodecProfiles,omitempty"`
}

type directPlayProfile struct {
	Type       string `json:"Type,omitempty"`
	Container  string `json:"Container,omitempty"`
	VideoCodec string `json:"VideoCodec,omitempty"`
	AudioCodec string `json:"AudioCodec,omitempty"`
}

type transcodingProfile struct {
	Type       string `json:"Type"`
	Container  string `json:"Container"`
	Protocol   string `json:"Protocol"`
	VideoCodec string `json:"VideoCodec"`
	AudioCodec string `json:"AudioCodec"`
	Context    string `json:"Context"`
}

type codecProfile struct {
	Type       string             `json:"Type"`
	Codec      string             `json:"Codec,omitempty"`
	Conditions []profileCondition `json:"Conditions"`
}

type profileCondition struct {
	Condition  string `json:"Condition"`
	Property   string `json:"Property"`
	Value      string `json:"Value"`
	IsRequired bool   `json:"IsRequired"`
}

type playbackInfoResponseDTO struct {
	MediaSources  []mediaSourceDTO `json:"MediaSources"`
	PlaySessionID string           `json:"PlaySessionId,omitempty"`
	ErrorCode     string           `json:"ErrorCode,omitempty"`
}

type playbackReportDTO struct {
	ItemID              string `json:"ItemId"`
	MediaSourceID       string `json:"MediaSourceId,omitempty"`
	PlaySessionID       string `json:"PlaySessionId,omitempty"`
	PositionTicks       int64  `json:"PositionTicks"`
	IsPaused            bool   `json:"IsPaused"`
	AudioStreamIndex    *int   `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex *int   `json:"SubtitleStreamIndex,omitempty"`
	PlayMethod          string `json:"PlayMethod,omitempty"`
	CanSeek             bool   `json:"CanSeek"`
}

func (d itemDTO) toDomain() media.Item {
	it := media.Item{
		ID:       d.ID,
		Name:     d.Name,
		Type:     media.ItemType(d.Type),
		SeriesID: d.SeriesID,
		SeasonID: d.SeasonID,
	}
	if d.IndexNumber != nil {
		it.IndexNumber = *d.IndexNumber
	}
	if d.ParentIndexNumber != nil {
		it.ParentIndexNumber = *d.ParentIndexNumber
	}
	if d.RunTimeTicks != nil {
		it.RunTimeTicks = *d.RunTimeTicks
	}
	if d.UserData != nil {
		it.UserData = media.UserData{
			PlaybackPositionTicks: d.UserData.PlaybackPositionTicks,
			Played:                d.UserData.Played,
		}
	}
	for _, s := range d.MediaSources {
		it.MediaSources = append(it.MediaSources, s.toDomain())
	}
	return it
}

func (d mediaSourceDTO) toDomain() media.MediaSource {
	src := media.MediaSource{
		ID:        d.ID,
		Name:      d.Name,
		Path:      d.Path,
		Container: d.Container,
	}
	if d.Bitrate != nil {
		src.Bitrate = *d.Bitrate
	}
	if d.RunTimeTicks != nil {
		src.RunTimeTicks = *d.RunTimeTicks
	}
	for _, s := range d.MediaStreams {
		flags := media.StreamFlags{IsDefault: s.IsDefault, IsForced: s.IsForced, IsExternal: s.IsExternal}
		switch strings.ToLower(s.Type) {
		case "video":
			v := media.VideoStream{
				Index:          s.Index,
				Codec:          s.Codec,
				Profile:        s.Profile,
				BitDepth:       deref(s.BitDepth),
				Language:       s.Language,
				Title:          s.Title,
				Width:          deref(s.Width),
				Height:         deref(s.Height),
				VideoRange:     s.VideoRange,
				VideoRangeType: s.VideoRangeType,
				StreamFlags:    flags,
			}
			if s.DvProfile != nil {
				p := *s.DvProfile
				v.DVProfile = &p
			}
			src.Video = append(src.Video, v)
		case "audio":
			src.Audio = append(src.Audio, media.AudioStream{
				Index:       s.Index,
				Codec:       s.Codec,
				Profile:     s.Profile,
				Language:    s.Language,
				Title:       s.Title,
				Channels:    deref(s.Channels),
				StreamFlags: flags,
			})
		case "subtitle":
			src.Subtitles = append(src.Subtitles, media.SubtitleStream{
				Index:       s.Index,
				Codec:       s.Codec,
				Language:    s.Language,
				Title:       s.Title,
				StreamFlags: flags,
			})
		}
	}
	return src
}

func (d segmentDTO) toDomain() media.Segment {
	t := media.SegmentType(d.Type)
	switch t {
	case media.SegmentIntro, media.SegmentRecap, media.SegmentPreview, media.SegmentOutro, media.SegmentCommercial:
	default:
		t = media.SegmentUnknown
	}
	return media.Segment{ID: d.ID, ItemID: d.ItemID, Type: t, StartTicks: d.StartTicks, EndTicks: d.EndTicks}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
