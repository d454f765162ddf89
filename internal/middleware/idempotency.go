package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Proton-105/astro-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/idempotency"
	"github.com/Proton-105/astro-bot/internal/message"
)

// DuplicateObserver is told about every dropped redelivery.
type DuplicateObserver func(channel string)

// Idempotency ensures a turn is applied at most once per channel message id.
// A redelivered message produces no reply; its first delivery already did.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger, observe DuplicateObserver) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if observe == nil {
		observe = func(string) {}
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(ctx context.Context, env *message.Envelope) (*message.Response, error) {
			if env.MessageID == "" {
				return next(ctx, env)
			}
			key := idempotency.MessageKey(env.Channel, env.MessageID)

			var resp *message.Response
			result, err := manager.Execute(ctx, key, ttl, func(execCtx context.Context) (interface{}, error) {
				var err error
				resp, err = next(execCtx, env)
				if err != nil {
					return nil, err
				}
				// Only the fact of completion is stored, not the reply.
				return true, nil
			})
			switch {
			case errors.Is(err, idempotency.ErrRequestInProgress):
				log.Info("duplicate delivery while first is in progress", slog.String("message_id", env.MessageID))
				observe(env.Channel)
				return nil, nil
			case err != nil && resp == nil:
				log.Error("idempotent handler failed", slog.String("message_id", env.MessageID), slog.Any("error", err))
				return nil, apperrors.NewCollaboratorUnavailable("dedupe_store", err)
			case err != nil:
				// The turn ran but its record was not stored; a redelivery may repeat it.
				log.Warn("failed to record processed message", slog.String("message_id", env.MessageID), slog.Any("error", err))
				return resp, nil
			}

			if result != nil && result.FromCache {
				log.Info("duplicate delivery dropped", slog.String("message_id", env.MessageID))
				observe(env.Channel)
				return nil, nil
			}

			return resp, nil
		}
	}
}
