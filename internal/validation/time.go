package validation

import (
	"strconv"
	"strings"

	"github.com/Proton-105/astro-bot/internal/domain"
)

// SkipKeyword marks the birth time as intentionally unknown.
const SkipKeyword = "skip"

// TimeResult is a validated birth time, nil when skipped.
type TimeResult struct {
	Time    *domain.BirthTime
	Skipped bool
}

type timeInput struct {
	raw     string
	digits  string
	skipped bool
	value   domain.BirthTime
}

// TimeValidator accepts HHMM and HHMMSS 24-hour input.
type TimeValidator struct{}

func NewTimeValidator() *TimeValidator { return &TimeValidator{} }

func (v *TimeValidator) Validate(input string) (TimeResult, *ValidationError) {
	out, err := Run(timeInput{raw: input},
		v.trim,
		v.rejectColon,
		v.digitsOnly,
		v.padShort,
		v.checkLength,
		v.parse,
	)
	if err != nil {
		err.Input = strings.TrimSpace(input)
		return TimeResult{}, err
	}
	if out.skipped {
		return TimeResult{Skipped: true}, nil
	}
	t := out.value
	return TimeResult{Time: &t}, nil
}

func (v *TimeValidator) trim(in timeInput) (timeInput, *ValidationError) {
	in.digits = strings.TrimSpace(in.raw)
	if in.digits == "" {
		return in, fail(FieldTime, ReasonMalformed, in.raw)
	}
	return in, nil
}

func (v *TimeValidator) rejectColon(in timeInput) (timeInput, *ValidationError) {
	if strings.EqualFold(in.digits, SkipKeyword) {
		in.skipped = true
		return in, nil
	}
	if strings.Contains(in.digits, ":") {
		return in, fail(FieldTime, ReasonColon, in.raw)
	}
	return in, nil
}

func (v *TimeValidator) digitsOnly(in timeInput) (timeInput, *ValidationError) {
	if in.skipped {
		return in, nil
	}
	if !isDigits(in.digits) {
		return in, fail(FieldTime, ReasonMalformed, in.raw)
	}
	return in, nil
}

func (v *TimeValidator) padShort(in timeInput) (timeInput, *ValidationError) {
	if !in.skipped && len(in.digits) == 3 {
		in.digits = "0" + in.digits
	}
	return in, nil
}

func (v *TimeValidator) checkLength(in timeInput) (timeInput, *ValidationError) {
	if in.skipped {
		return in, nil
	}
	if n := len(in.digits); n != 4 && n != 6 {
		return in, fail(FieldTime, ReasonLength, in.raw)
	}
	return in, nil
}

// parse validates hour and minute independently so the error names what failed.
func (v *TimeValidator) parse(in timeInput) (timeInput, *ValidationError) {
	if in.skipped {
		return in, nil
	}
	hour, _ := strconv.Atoi(in.digits[0:2])
	minute, _ := strconv.Atoi(in.digits[2:4])
	second := 0
	if len(in.digits) == 6 {
		second, _ = strconv.Atoi(in.digits[4:6])
	}

	badHour := hour > 23
	badMinute := minute > 59
	switch {
	case badHour && badMinute:
		return in, fail(FieldTime, ReasonHourMinute, in.raw)
	case badHour:
		return in, fail(FieldTime, ReasonHour, in.raw)
	case badMinute:
		return in, fail(FieldTime, ReasonMinute, in.raw)
	case second > 59:
		return in, fail(FieldTime, ReasonSecond, in.raw)
	}

	in.value = domain.BirthTime{Hour: hour, Minute: minute, Second: second}
	return in, nil
}
