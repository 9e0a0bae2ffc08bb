// Package geo implements the proximity resolver (C3): checking lowercased
// text against a user's configured geography stems.
package geo

import (
	"os"
	"strings"

	"tg-alert-filter/internal/catalogue"
	"tg-alert-filter/internal/domain"
)

// FromEnv builds a UserGeography from comma-separated, case-folded env vars.
func FromEnv() domain.UserGeography {
	return domain.UserGeography{
		Oblast:   parseList(os.Getenv("MY_OBLAST")),
		City:     parseList(os.Getenv("MY_CITY")),
		District: parseList(os.Getenv("MY_DISTRICT")),
	}
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolve checks District stems first, then City, then Oblast, returning
// the highest-specificity match, plus a separate nationwide flag.
func Resolve(textLower string, geography domain.UserGeography) (domain.Proximity, bool) {
	nationwide := catalogue.IsNationwide(textLower)
	return check(textLower, geography), nationwide
}

func check(textLower string, geography domain.UserGeography) domain.Proximity {
	if containsAny(textLower, geography.District) {
		return domain.ProximityDistrict
	}
	if containsAny(textLower, geography.City) {
		return domain.ProximityCity
	}
	if containsAny(textLower, geography.Oblast) {
		return domain.ProximityOblast
	}
	return domain.ProximityNone
}

func containsAny(s string, stems []string) bool {
	for _, stem := range stems {
		if strings.Contains(s, stem) {
			return true
		}
	}
	return false
}
