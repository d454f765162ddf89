package validation

import "strings"

var (
	yesWords = []string{"yes", "y", "yeah", "yep", "correct", "confirm", "ok", "okay", "haan", "ha", "sure"}
	noWords  = []string{"no", "n", "nope", "wrong", "change", "incorrect", "nahi", "edit"}
)

// ConfirmValidator maps a reply onto yes/no.
type ConfirmValidator struct {
	yes map[string]struct{}
	no  map[string]struct{}
}

func NewConfirmValidator() *ConfirmValidator {
	v := &ConfirmValidator{yes: map[string]struct{}{}, no: map[string]struct{}{}}
	for _, w := range yesWords {
		v.yes[w] = struct{}{}
	}
	for _, w := range noWords {
		v.no[w] = struct{}{}
	}
	return v
}

// Validate returns true for yes and false for no.
func (v *ConfirmValidator) Validate(input string) (bool, *ValidationError) {
	key := strings.ToLower(strings.Trim(strings.TrimSpace(input), ".!"))
	if _, ok := v.yes[key]; ok {
		return true, nil
	}
	if _, ok := v.no[key]; ok {
		return false, nil
	}
	return false, fail(FieldConfirm, ReasonConfirm, strings.TrimSpace(input))
}
