package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Proton-105/astro-bot/internal/bot/handlers"
	errors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/i18n"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/pkg/logger"
)

// replyFor resolves err to a translated single-text response.
func replyFor(ctx context.Context, errHandler *errors.Handler, tr *i18n.Manager, err error) *message.Response {
	key := errors.MsgGeneric
	if errHandler != nil {
		if k, _ := errHandler.Handle(ctx, err); k != "" {
			key = k
		}
	}

	resp := &message.Response{}
	if tr == nil {
		return resp.Text("Something went wrong. Please try again.")
	}
	return resp.Text(tr.Translator("").T(key))
}

// RecoveryMiddleware turns a panic into an internal error reply.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler, tr *i18n.Manager) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(ctx context.Context, env *message.Envelope) (resp *message.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
					resp = replyFor(ctx, errHandler, tr, errors.NewInternalError(fmt.Errorf("panic recovered: %v", r)))
					err = nil
				}
			}()

			return next(ctx, env)
		}
	}
}

// ErrorHandlingMiddleware answers handler failures with the taxonomy's reply
// so that no error leaves the pipeline unanswered.
func ErrorHandlingMiddleware(errHandler *errors.Handler, tr *i18n.Manager) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(ctx context.Context, env *message.Envelope) (*message.Response, error) {
			resp, err := next(ctx, env)
			if err == nil {
				return resp, nil
			}
			return replyFor(ctx, errHandler, tr, err), nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming envelopes.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(ctx context.Context, env *message.Envelope) (*message.Response, error) {
			start := time.Now()
			attrs := []any{
				slog.String("phone", env.From),
				slog.String("message_id", env.MessageID),
				slog.String("type", env.Type),
				slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
			}

			log.DebugContext(ctx, "handling message", attrs...)
			resp, err := next(ctx, env)
			log.InfoContext(ctx, "handled message", append(attrs,
				slog.Int("replies", replyCount(resp)),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)...)

			return resp, err
		}
	}
}

func replyCount(resp *message.Response) int {
	if resp == nil {
		return 0
	}
	return len(resp.Messages)
}
