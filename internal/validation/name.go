package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameRunes = 60

// NameValidator accepts personal names for the guided flows.
type NameValidator struct{}

func NewNameValidator() *NameValidator { return &NameValidator{} }

func (v *NameValidator) Validate(input string) (string, *ValidationError) {
	name := strings.Join(strings.Fields(input), " ")
	if name == "" {
		return "", fail(FieldName, ReasonEmpty, input)
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		return "", fail(FieldName, ReasonTooLong, name)
	}
	hasLetter := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.Is(unicode.Mn, r):
			hasLetter = true
		case r == ' ' || r == '.' || r == '\'' || r == '-':
		default:
			return "", fail(FieldName, ReasonMalformed, name)
		}
	}
	if !hasLetter {
		return "", fail(FieldName, ReasonMalformed, name)
	}
	return name, nil
}
