package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Proton-105/astro-bot/internal/geo"
)

const maxPlaceRunes = 120

// ErrGeocoderUnavailable wraps geocoder failures other than a miss.
var ErrGeocoderUnavailable = errors.New("validation: geocoder unavailable")

// PlaceValidator resolves birth places through a geocoder.
type PlaceValidator struct {
	geocoder geo.Geocoder
}

func NewPlaceValidator(geocoder geo.Geocoder) *PlaceValidator {
	return &PlaceValidator{geocoder: geocoder}
}

// Validate returns the resolved location. A *ValidationError means the user must
// retry; a non-nil error means the geocoder itself failed.
func (v *PlaceValidator) Validate(ctx context.Context, input string) (*geo.Location, *ValidationError, error) {
	text := strings.Join(strings.Fields(input), " ")
	if text == "" {
		return nil, fail(FieldPlace, ReasonEmpty, input), nil
	}
	if utf8.RuneCountInString(text) > maxPlaceRunes {
		return nil, fail(FieldPlace, ReasonTooLong, text), nil
	}

	loc, err := v.geocoder.Resolve(ctx, text)
	if errors.Is(err, geo.ErrNotFound) {
		return nil, fail(FieldPlace, ReasonNotFound, text), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrGeocoderUnavailable, err)
	}

	if loc.Timezone == "" {
		loc.Timezone = geo.TimezoneAt(loc.Latitude, loc.Longitude)
	}
	if loc.Name == "" {
		loc.Name = text
	}
	return loc, nil, nil
}
