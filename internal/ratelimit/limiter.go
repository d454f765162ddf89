// Package ratelimit protects the turn pipeline from message floods, one
// sliding window per phone.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the window frees a slot, rounded up to seconds.
func (r *Result) RetryAfter(now time.Time) int {
	if r == nil || !r.ResetAt.After(now) {
		return 0
	}
	d := r.ResetAt.Sub(now)
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// Limiter describes a rate-limiting strategy. A rejected request is reported
// through Result.Allowed; errors mean the backend itself failed.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// PhoneKey is the limiter key for a sender.
func PhoneKey(phone string) string {
	return "phone:" + phone
}
