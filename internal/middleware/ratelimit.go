package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/astro-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/ratelimit"
)

// RateLimitMiddleware enforces per-phone rate limits for incoming messages.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
	now     func() time.Time
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
		now:     time.Now,
	}
}

// Handle rejects a message over the limit with a RateLimited error; the turn
// is not run, so the session is untouched. Limiter failures let the message through.
func (m *RateLimitMiddleware) Handle(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(ctx context.Context, env *message.Envelope) (*message.Response, error) {
		if m.limiter == nil || m.rules == nil || !m.rules.Enabled() {
			return next(ctx, env)
		}

		phone := env.From
		if m.rules.IsWhitelisted(phone) {
			return next(ctx, env)
		}

		limit, window, err := m.rules.GetPerUserLimit()
		if err != nil {
			m.log.Error("failed to load per-user rate limit", slog.String("phone", phone), slog.Any("error", err))
			return next(ctx, env)
		}

		result, err := m.limiter.Check(ctx, ratelimit.PhoneKey(phone), limit, window)
		if err != nil {
			m.log.Warn("rate limiter error", slog.String("phone", phone), slog.Any("error", err))
			return next(ctx, env)
		}

		if !result.Allowed {
			m.log.Warn("rate limit exceeded", slog.String("phone", phone))
			return nil, apperrors.NewRateLimitError(result.RetryAfter(m.now()))
		}

		return next(ctx, env)
	}
}
