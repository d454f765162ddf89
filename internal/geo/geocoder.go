// Package geo resolves free-text birth places to coordinates and timezones.
package geo

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// ErrNotFound is returned when the place cannot be resolved.
var ErrNotFound = errors.New("geo: place not found")

// Location is a resolved place.
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`
}

// Geocoder resolves place text. Implementations return ErrNotFound on a miss and
// any other error when the provider is unavailable.
type Geocoder interface {
	Resolve(ctx context.Context, place string) (*Location, error)
}

// normalizePlace lowercases, drops punctuation and collapses whitespace.
func normalizePlace(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ',':
			b.WriteRune(',')
		default:
			b.WriteRune(' ')
		}
	}
	parts := strings.Split(b.String(), ",")
	for i, p := range parts {
		parts[i] = strings.Join(strings.Fields(p), " ")
	}
	return strings.Join(parts, ",")
}
