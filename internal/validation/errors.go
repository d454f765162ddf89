// Package validation holds the onboarding field validators.
//
// Each validator runs an ordered list of transform-then-validate steps and
// returns either the normalized value or a *ValidationError naming the field,
// the failing reason and, when one is obvious, a suggested correction.
package validation

import "fmt"

// Field names.
const (
	FieldDate    = "date"
	FieldTime    = "time"
	FieldPlace   = "place"
	FieldConfirm = "confirm"
	FieldName    = "name"
)

// Failure reasons.
const (
	ReasonEmpty      = "empty"
	ReasonMalformed  = "malformed"
	ReasonLength     = "length"
	ReasonMonth      = "month"
	ReasonDay        = "day"
	ReasonYear       = "year"
	ReasonFuture     = "future"
	ReasonColon      = "colon"
	ReasonHour       = "hour"
	ReasonMinute     = "minute"
	ReasonHourMinute = "hour_minute"
	ReasonSecond     = "second"
	ReasonNotFound   = "not_found"
	ReasonConfirm    = "confirm"
	ReasonTooLong    = "too_long"
)

// ValidationError is a recoverable, field-specific input error.
type ValidationError struct {
	Field      string
	Reason     string
	Suggestion string
	Input      string
}

func (e *ValidationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("invalid %s (%s), did you mean %q?", e.Field, e.Reason, e.Suggestion)
	}
	return fmt.Sprintf("invalid %s (%s)", e.Field, e.Reason)
}

// MessageKey is the i18n key of the correction prompt.
func (e *ValidationError) MessageKey() string {
	return "validation." + e.Field + "." + e.Reason
}

func fail(field, reason, input string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Input: input}
}
