package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives every decision: backend is "redis" or "fallback".
type Observer func(backend string, allowed bool)

// BackendErrorObserver is told about each primary backend failure.
type BackendErrorObserver func()

// AdaptiveLimiter delegates to a primary (Redis) limiter and falls back to
// a stricter in-memory limiter when the primary fails.
type AdaptiveLimiter struct {
	primary   Limiter
	fallback  Limiter
	log       *slog.Logger
	observe   Observer
	onFailure BackendErrorObserver
}

// NewAdaptiveLimiter creates a limiter that adapts between Redis and in-memory backends.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:   primary,
		fallback:  fallback,
		log:       log,
		observe:   func(string, bool) {},
		onFailure: func() {},
	}
}

// Observe registers metric hooks.
func (a *AdaptiveLimiter) Observe(decisions Observer, failures BackendErrorObserver) {
	if decisions != nil {
		a.observe = decisions
	}
	if failures != nil {
		a.onFailure = failures
	}
}

// Check evaluates the limit using the primary backend, falling back to memory on errors.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil {
		a.observe("redis", result.Allowed)
		return result, nil
	}

	a.onFailure()
	a.log.Warn("redis limiter failed, falling back to in-memory", "key", key, "error", err)

	// The fallback is per replica, so it only gets half the budget.
	fallbackLimit := limit / 2
	if fallbackLimit <= 0 {
		fallbackLimit = 1
	}

	fallbackResult, fallbackErr := a.fallback.Check(ctx, key, fallbackLimit, window)
	if fallbackErr != nil {
		return fallbackResult, fallbackErr
	}

	a.observe("fallback", fallbackResult.Allowed)
	return fallbackResult, nil
}
