// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package selection

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var fold = cases.Fold()

// ISO 639-2/B codes as commonly written by muxers, mapped to their 639-2/T form.
var bibliographic = map[string]string{
	"alb": "sqi", "arm": "hye", "baq": "eus", "bur": "mya", "chi": "zho",
	"cze": "ces", "dut": "nld", "fre": "fra", "geo": "kat", "ger": "deu",
	"gre": "ell", "ice": "isl", "mac": "mkd", "mao": "mri", "may": "msa",
	"per": "fas", "rum": "ron", "slo": "slk", "tib": "bod", "wel": "cym",
}

// NormalizeLanguage maps ISO 639-1/639-2 codes and BCP 47 tags to their base language
// ("jpn" and "ja-JP" both become "ja"). Unparseable values are lower-cased.
func NormalizeLanguage(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, ok := bibliographic[strings.ToLower(s)]; ok {
		s = t
	}
	if base, err := language.ParseBase(s); err == nil {
		return base.String()
	}
	if tag, err := language.Parse(s); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			return base.String()
		}
	}
	return strings.ToLower(s)
}

// SameLanguage compares two language codes case-insensitively, treating
// equivalent ISO 639 codes as equal. Empty never matches.
func SameLanguage(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return true
	}
	return NormalizeLanguage(a) == NormalizeLanguage(b)
}

// NormalizeTitle case-folds a track title and collapses whitespace.
func NormalizeTitle(s string) string {
	return fold.String(strings.Join(strings.Fields(s), " "))
}
