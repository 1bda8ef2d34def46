// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package mediaserver

import (
	"strings"

	"github.com/ManuGH/couchplay/internal/capabilities"
	"github.com/ManuGH/couchplay/internal/domain/media"
	"github.com/ManuGH/couchplay/internal/domain/session/ports"
)

const directPlayContainers = "mkv,mp4,m4v,mov,webm,ts"

// buildDeviceProfile translates the local decode capability into the server's device
// profile. A forced transcode target overrides the transcoding video codec.
func buildDeviceProfile(caps capabilities.Profile, req ports.NegotiationRequest) *deviceProfile {
	spec := caps.Spec()

	video := make([]string, 0, len(spec.VideoCodecs))
	for _, c := range spec.VideoCodecs {
		video = append(video, c.Codec)
	}
	audio := spec.AudioCodecs

	p := &deviceProfile{
		Name:                clientName,
		MaxStreamingBitrate: req.MaxStreamingBitrate,
		DirectPlayProfiles:  []directPlayProfile{},
		TranscodingProfiles: []transcodingProfile{{
			Type:       "Video",
			Container:  "ts",
			Protocol:   "hls",
			VideoCodec: transcodeVideoCodec(caps, req.Transcode),
			AudioCodec: transcodeAudioCodec(caps),
			Context:    "Streaming",
		}},
	}
	if len(video) > 0 {
		p.DirectPlayProfiles = append(p.DirectPlayProfiles, directPlayProfile{
			Type:       "Video",
			Container:  directPlayContainers,
			VideoCodec: strings.Join(video, ","),
			AudioCodec: strings.Join(audio, ","),
		})
	}

	for _, c := range spec.VideoCodecs {
		if !c.TenBit {
			p.CodecProfiles = append(p.CodecProfiles, codecProfile{
				Type:  "Video",
				Codec: c.Codec,
				Conditions: []profileCondition{{
					Condition:  "LessThanEqual",
					Property:   "VideoBitDepth",
					Value:      "8",
					IsRequired: false,
				}},
			})
		}
	}
	p.CodecProfiles = append(p.CodecProfiles, codecProfile{
		Type: "Video",
		Conditions: []profileCondition{{
			Condition:  "EqualsAny",
			Property:   "VideoRangeType",
			Value:      strings.Join(rangeTypes(caps), "|"),
			IsRequired: false,
		}},
	})
	return p
}

func transcodeVideoCodec(caps capabilities.Profile, opt media.TranscodeOption) string {
	if target := opt.TargetCodec(); target != "" {
		return target
	}
	if caps.SupportsVideoCodec("hevc") {
		return "hevc,h264"
	}
	return "h264"
}

func transcodeAudioCodec(caps capabilities.Profile) string {
	out := []string{"aac"}
	for _, c := range []string{"ac3", "eac3"} {
		if caps.SupportsAudioCodec(c) {
			out = append(out, c)
		}
	}
	return strings.Join(out, ",")
}

// rangeTypes lists the video range types the display can render.
func rangeTypes(caps capabilities.Profile) []string {
	out := []string{media.RangeTypeSDR}
	if caps.SupportsHDR(capabilities.HDR10) {
		out = append(out, media.RangeTypeHDR10)
	}
	if caps.SupportsHDR(capabilities.HDR10Plus) {
		out = append(out, media.RangeTypeHDR10Plus)
	}
	if caps.SupportsHDR(capabilities.HLG) {
		out = append(out, media.RangeTypeHLG)
	}
	if caps.HasDolbyVision() {
		out = append(out, media.RangeTypeDOVI, media.RangeTypeDOVIWithSDR)
		if caps.SupportsHDR(capabilities.HDR10) {
			out = append(out, media.RangeTypeDOVIWithHDR10)
		}
		if caps.SupportsHDR(capabilities.HLG) {
			out = append(out, media.RangeTypeDOVIWithHLG)
		}
		if caps.SupportsHDR(capabilities.HDR10Plus) {
			out = append(out, media.RangeTypeDOVIWithHDR10Plus)
		}
	}
	return out
}
