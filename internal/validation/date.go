package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateSeparators = "/.- "

type dateInput struct {
	raw     string
	digits  string
	day     int
	month   int
	year    int
	yearLen int
	value   time.Time
}

// DateValidator accepts DDMMYY, DDMMYYYY and their separated variants.
type DateValidator struct {
	now func() time.Time
}

func NewDateValidator(now func() time.Time) *DateValidator {
	if now == nil {
		now = time.Now
	}
	return &DateValidator{now: now}
}

// Validate returns the birth date at UTC midnight.
func (v *DateValidator) Validate(input string) (time.Time, *ValidationError) {
	out, err := Run(dateInput{raw: input},
		v.tokenize,
		v.checkLength,
		v.parse,
		v.checkYear,
		v.checkMonth,
		v.checkDay,
		v.checkFuture,
	)
	if err != nil {
		err.Input = strings.TrimSpace(input)
		return time.Time{}, err
	}
	return out.value, nil
}

// tokenize strips separators, zero-padding day and month parts of separated input.
func (v *DateValidator) tokenize(in dateInput) (dateInput, *ValidationError) {
	s := strings.TrimSpace(in.raw)
	if s == "" {
		return in, fail(FieldDate, ReasonMalformed, in.raw)
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(dateSeparators, r)
	})
	for _, p := range parts {
		if !isDigits(p) {
			return in, fail(FieldDate, ReasonMalformed, in.raw)
		}
	}

	switch len(parts) {
	case 1:
		in.digits = parts[0]
	case 3:
		if len(parts[0]) > 2 || len(parts[1]) > 2 {
			return in, fail(FieldDate, ReasonLength, in.raw)
		}
		in.digits = pad2(parts[0]) + pad2(parts[1]) + parts[2]
	default:
		return in, fail(FieldDate, ReasonMalformed, in.raw)
	}
	return in, nil
}

func (v *DateValidator) checkLength(in dateInput) (dateInput, *ValidationError) {
	if n := len(in.digits); n != 6 && n != 8 {
		return in, fail(FieldDate, ReasonLength, in.raw)
	}
	return in, nil
}

func (v *DateValidator) parse(in dateInput) (dateInput, *ValidationError) {
	in.day, _ = strconv.Atoi(in.digits[0:2])
	in.month, _ = strconv.Atoi(in.digits[2:4])
	in.year, _ = strconv.Atoi(in.digits[4:])
	in.yearLen = len(in.digits) - 4
	if in.yearLen == 2 {
		in.year = pivotYear(in.year, v.now().Year())
	}
	return in, nil
}

// pivotYear maps a two-digit year into the century window ending at the current year.
func pivotYear(yy, current int) int {
	year := current - current%100 + yy
	if year > current {
		year -= 100
	}
	return year
}

func (v *DateValidator) checkYear(in dateInput) (dateInput, *ValidationError) {
	if in.year < 1 {
		return in, fail(FieldDate, ReasonYear, in.raw)
	}
	return in, nil
}

func (v *DateValidator) checkMonth(in dateInput) (dateInput, *ValidationError) {
	if in.month >= 1 && in.month <= 12 {
		return in, nil
	}
	err := fail(FieldDate, ReasonMonth, in.raw)
	// 12/25/1990 style input: offer the swapped order when it is a real date.
	if in.day >= 1 && in.day <= 12 && in.month <= daysIn(in.day, in.year) && in.month >= 1 {
		err.Suggestion = fmt.Sprintf("%02d%02d%s", in.month, in.day, in.digits[4:])
	}
	return in, err
}

func (v *DateValidator) checkDay(in dateInput) (dateInput, *ValidationError) {
	if in.day < 1 || in.day > daysIn(in.month, in.year) {
		return in, fail(FieldDate, ReasonDay, in.raw)
	}
	in.value = time.Date(in.year, time.Month(in.month), in.day, 0, 0, 0, 0, time.UTC)
	return in, nil
}

func (v *DateValidator) checkFuture(in dateInput) (dateInput, *ValidationError) {
	now := v.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !in.value.After(today) {
		return in, nil
	}
	// A two-digit year in the current year can still name the previous century.
	if in.yearLen == 2 {
		year := in.year - 100
		if year >= 1 && in.day <= daysIn(in.month, year) {
			in.year = year
			in.value = time.Date(year, time.Month(in.month), in.day, 0, 0, 0, 0, time.UTC)
			return in, nil
		}
	}
	return in, fail(FieldDate, ReasonFuture, in.raw)
}

func daysIn(month, year int) int {
	if month < 1 || month > 12 {
		return 0
	}
	// Day zero of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
