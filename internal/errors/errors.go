// Package errors defines the application error taxonomy and recovery helpers.
package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind classifies how a failure is recovered.
type Kind string

const (
	KindValidation              Kind = "validation"
	KindGuardViolation          Kind = "guard_violation"
	KindInternal                Kind = "internal"
	KindCollaboratorUnavailable Kind = "collaborator_unavailable"
	KindSessionCorruption       Kind = "session_corruption"
	KindUnrecognizedInput       Kind = "unrecognized_input"
	KindRateLimited             Kind = "rate_limited"
)

// Reply keys used when an error carries no specific user message.
const (
	MsgGeneric        = "error.generic"
	MsgUnavailable    = "error.unavailable"
	MsgUnrecognized   = "error.unrecognized"
	MsgSessionReset   = "error.session_reset"
	MsgRateLimited    = "error.rate_limited"
	MsgInvalidRequest = "error.invalid_request"
)

// AppError carries a code, a log message and the i18n key of the reply.
type AppError struct {
	Code        string
	Kind        Kind
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// NewValidationError reports a field input error; userMessage is the prompt key.
func NewValidationError(msg, userMessage string) *AppError {
	return &AppError{
		Code:        "E100",
		Kind:        KindValidation,
		Message:     msg,
		UserMessage: userMessage,
		Severity:    SeverityLow,
	}
}

// NewGuardViolation reports a denied menu entry.
func NewGuardViolation(nodeID, reasonKey string, cause error) *AppError {
	return &AppError{
		Code:        "E150",
		Kind:        KindGuardViolation,
		Message:     fmt.Sprintf("guard denied entry to %s", nodeID),
		UserMessage: reasonKey,
		Severity:    SeverityLow,
		cause:       cause,
	}
}

// NewInternalError wraps an unexpected failure such as a storage error.
func NewInternalError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Kind:        KindInternal,
		Message:     fmt.Sprintf("internal error: %s", underlyingMsg),
		UserMessage: MsgGeneric,
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewCollaboratorUnavailable wraps a timeout or outage of an external service.
func NewCollaboratorUnavailable(name string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Kind:        KindCollaboratorUnavailable,
		Message:     fmt.Sprintf("collaborator unavailable: %s", name),
		UserMessage: MsgUnavailable,
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewSessionCorruption reports a session that was discarded and reinitialised.
func NewSessionCorruption(cause error) *AppError {
	return &AppError{
		Code:        "E400",
		Kind:        KindSessionCorruption,
		Message:     "session corruption recovered",
		UserMessage: MsgSessionReset,
		Severity:    SeverityMedium,
		cause:       cause,
	}
}

// NewUnrecognizedInput reports input the current state cannot interpret.
func NewUnrecognizedInput(detail string) *AppError {
	return &AppError{
		Code:        "E450",
		Kind:        KindUnrecognizedInput,
		Message:     fmt.Sprintf("unrecognized input: %s", detail),
		UserMessage: MsgUnrecognized,
		Severity:    SeverityLow,
	}
}

// NewRateLimitError reports a flood-protection rejection.
func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        "E500",
		Kind:        KindRateLimited,
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: MsgRateLimited,
		Severity:    SeverityLow,
	}
}

// KindOf returns the error's kind, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Kind
	}
	return KindInternal
}
