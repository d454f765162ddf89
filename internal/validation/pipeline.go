package validation

import (
	"time"

	"github.com/Proton-105/astro-bot/internal/geo"
)

// Step transforms or checks a value. Returning an error stops the pipeline.
type Step[T any] func(T) (T, *ValidationError)

// Run applies steps in order.
func Run[T any](in T, steps ...Step[T]) (T, *ValidationError) {
	var err *ValidationError
	for _, step := range steps {
		in, err = step(in)
		if err != nil {
			return in, err
		}
	}
	return in, nil
}

// Pipeline bundles the onboarding validators.
type Pipeline struct {
	Date    *DateValidator
	Time    *TimeValidator
	Place   *PlaceValidator
	Confirm *ConfirmValidator
	Name    *NameValidator
}

// NewPipeline wires validators around a geocoder and clock. A nil clock uses time.Now.
func NewPipeline(geocoder geo.Geocoder, now func() time.Time) *Pipeline {
	return &Pipeline{
		Date:    NewDateValidator(now),
		Time:    NewTimeValidator(),
		Place:   NewPlaceValidator(geocoder),
		Confirm: NewConfirmValidator(),
		Name:    NewNameValidator(),
	}
}
