package errors

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyCodes(t *testing.T) {
	cause := errors.New("boom")

	testCases := []struct {
		name      string
		err       *AppError
		code      string
		kind      Kind
		retryable bool
	}{
		{name: "validation", err: NewValidationError("bad date", "validation.date.malformed"), code: "E100", kind: KindValidation},
		{name: "guard", err: NewGuardViolation("solar_return", "guard.requires_premium", nil), code: "E150", kind: KindGuardViolation},
		{name: "internal", err: NewInternalError(cause), code: "E200", kind: KindInternal, retryable: true},
		{name: "collaborator", err: NewCollaboratorUnavailable("content", cause), code: "E300", kind: KindCollaboratorUnavailable, retryable: true},
		{name: "corruption", err: NewSessionCorruption(cause), code: "E400", kind: KindSessionCorruption},
		{name: "unrecognized", err: NewUnrecognizedInput("sticker"), code: "E450", kind: KindUnrecognizedInput},
		{name: "rate limit", err: NewRateLimitError(5), code: "E500", kind: KindRateLimited},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.retryable, IsRetryable(tc.err))
			assert.NotEmpty(t, tc.err.UserMessage)
		})
	}

	assert.ErrorIs(t, NewInternalError(cause), cause)
	assert.Equal(t, KindInternal, KindOf(cause))
}

func TestHandler_Handle(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)

	var seen []Kind
	h.OnHandled(func(kind Kind, _ string) { seen = append(seen, kind) })

	msg, retry := h.Handle(context.Background(), NewCollaboratorUnavailable("geocoder", context.DeadlineExceeded))
	assert.Equal(t, MsgUnavailable, msg)
	assert.True(t, retry)

	msg, retry = h.Handle(context.Background(), errors.New("plain"))
	assert.Equal(t, MsgGeneric, msg)
	assert.False(t, retry)

	msg, _ = h.Handle(context.Background(), nil)
	assert.Empty(t, msg)

	assert.Equal(t, []Kind{KindCollaboratorUnavailable, KindInternal}, seen)
}

func TestWithRetry(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	calls := 0
	err := WithRetryPolicy(context.Background(), policy, func() error {
		calls++
		if calls < 3 {
			return NewCollaboratorUnavailable("content", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = WithRetryPolicy(context.Background(), policy, func() error {
		calls++
		return NewValidationError("no", "validation.date.malformed")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable errors are not retried")

	calls = 0
	err = WithRetryPolicy(context.Background(), policy, func() error {
		calls++
		return NewCollaboratorUnavailable("content", nil)
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var transitions []string
	cb := NewCircuitBreakerWithSettings(BreakerSettings{
		Name:          "content",
		MinRequests:   4,
		OpenTimeout:   time.Minute,
		HalfOpenLimit: 1,
		OnStateChange: func(_ string, from, to State) { transitions = append(transitions, from.String()+"->"+to.String()) },
	})
	cb.now = func() time.Time { return now }

	fail := errors.New("down")
	for i := 0; i < 4; i++ {
		_ = cb.Call(func() error { return fail })
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}

func TestCircuitBreaker_IgnoresUncountedErrors(t *testing.T) {
	cb := NewCircuitBreakerWithSettings(BreakerSettings{MinRequests: 2})
	notFound := errors.New("not found")

	for i := 0; i < 5; i++ {
		err := cb.CallCounting(func() error { return notFound }, func(err error) bool { return !errors.Is(err, notFound) })
		assert.ErrorIs(t, err, notFound)
	}
	assert.Equal(t, StateClosed, cb.State())
}
