// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ManuGH/couchplay/internal/domain/media"
)

var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
})

// Validate checks struct tags plus the cross-field rules tags cannot express.
func Validate(cfg AppConfig) error {
	var problems []string
	if err := validate().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if media.ParseHDRPreference(cfg.Playback.HDRPreference).Kind == media.HDRUnknown {
		problems = append(problems, fmt.Sprintf("playback.hdr_preference: unknown value %q", cfg.Playback.HDRPreference))
	}
	if media.ParseVideoQuality(cfg.Playback.Quality).Kind == media.QualityUnknown {
		problems = append(problems, fmt.Sprintf("playback.quality: unknown value %q", cfg.Playback.Quality))
	}
	for _, n := range cfg.Capabilities.DolbyVisionProfiles {
		if n < 0 {
			problems = append(problems, fmt.Sprintf("capabilities.dolby_vision_profiles: negative profile %d", n))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New(strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "AppConfig.")
	switch fe.Tag() {
	case "required", "required_if":
		return field + ": is required"
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "http_url":
		return fmt.Sprintf("%s: must be an http(s) url, got %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s: failed %s=%s (value %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
}
