package utils

import (
	"strings"

	"github.com/gosimple/slug"
)

// NormalizeSlug creates a URL-friendly slug using the gosimple/slug library
// This handles umlauts and other non-ASCII characters in station names
func NormalizeSlug(text string) string {
	if text == "" {
		return ""
	}

	return slug.Make(text)
}

// GenerateStationSlug creates a stable tag value for a gauge station name
func GenerateStationSlug(stationName string) string {
	if stationName == "" {
		return "station"
	}
	return NormalizeSlug(stationName)
}

// SafeFileName keeps model identifiers as they are unless they cannot be used as a file name.
// Model names double as the file stem of the CSV output, so ordinary identifiers must survive unchanged.
func SafeFileName(name string) string {
	if name == "" {
		return "unnamed"
	}
	if strings.ContainsAny(name, `/\:*?"<>| `) || name == "." || name == ".." {
		if s := NormalizeSlug(name); s != "" {
			return s
		}
		return "unnamed"
	}
	return name
}
