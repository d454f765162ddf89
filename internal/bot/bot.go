// Package bot wires the turn pipeline: per-phone dispatch, the middleware
// chain and reply delivery. Channels only Submit envelopes.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/astro-bot/internal/bot/handlers"
	errors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/i18n"
	"github.com/Proton-105/astro-bot/internal/idempotency"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/middleware"
	"github.com/Proton-105/astro-bot/pkg/metrics"
)

// Deps are the collaborators of the pipeline. Only Engine is required.
type Deps struct {
	Engine      handlers.Engine
	Output      Deliverer
	Dedupe      idempotency.Manager
	RateLimit   *middleware.RateLimitMiddleware
	Errors      *errors.Handler
	I18n        *i18n.Manager
	Logger      *slog.Logger
	Middlewares []handlers.Middleware
}

// Options tunes the pipeline.
type Options struct {
	DedupeTTL   time.Duration
	MailboxSize int
	TurnTimeout time.Duration
}

// Bot accepts envelopes from any channel and processes them in per-phone order.
type Bot struct {
	router     *Router
	dispatcher *Dispatcher
	log        *slog.Logger
}

// New builds the pipeline. Middlewares run in this order: recovery, error
// replies, logging, metrics, dedupe, rate limit, then any extra ones.
func New(deps Deps, opts Options) *Bot {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	errHandler := deps.Errors
	if errHandler == nil {
		errHandler = errors.NewHandler(log, false)
	}

	router := NewRouter(handlers.NewTurnHandler(deps.Engine), deps.Output, log)
	router.Use(RecoveryMiddleware(log, errHandler, deps.I18n))
	router.Use(ErrorHandlingMiddleware(errHandler, deps.I18n))
	router.Use(LoggingMiddleware(log))
	router.Use(middleware.Metrics)
	router.Use(middleware.Idempotency(deps.Dedupe, opts.DedupeTTL, log, metrics.RecordDuplicate))
	if deps.RateLimit != nil {
		router.Use(deps.RateLimit.Handle)
	}
	for _, mw := range deps.Middlewares {
		router.Use(mw)
	}

	dispatcher := NewDispatcher(router.Route, DispatcherOptions{
		MailboxSize: opts.MailboxSize,
		TurnTimeout: opts.TurnTimeout,
		OnMailboxes: metrics.SetActiveMailboxes,
	}, log)

	return &Bot{
		router:     router,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Submit queues env for processing and returns immediately.
func (b *Bot) Submit(env *message.Envelope) error {
	return b.dispatcher.Submit(env)
}

// Pending reports phones with unfinished turns.
func (b *Bot) Pending() int {
	return b.dispatcher.Pending()
}

// Stop stops accepting messages and drains queued turns until ctx ends.
func (b *Bot) Stop(ctx context.Context) error {
	b.log.Info("stopping turn dispatcher...", slog.Int("pending", b.dispatcher.Pending()))
	return b.dispatcher.Close(ctx)
}
