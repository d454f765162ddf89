package bot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Proton-105/astro-bot/internal/bot/handlers"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/pkg/logger"
)

// Deliverer hands a reply to the channel the envelope came from.
type Deliverer interface {
	Deliver(ctx context.Context, channel, to string, resp *message.Response) error
}

// Router runs an envelope through the middleware chain and delivers the reply.
type Router struct {
	mu          sync.RWMutex
	handler     handlers.Handler
	middlewares []handlers.Middleware
	out         Deliverer
	log         *slog.Logger
}

// NewRouter builds a Router around the innermost handler.
func NewRouter(h handlers.Handler, out Deliverer, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		handler:     h,
		middlewares: make([]handlers.Middleware, 0),
		out:         out,
		log:         log,
	}
}

// Use appends a middleware to the chain. The first registered runs outermost.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Route processes env and delivers whatever the chain produced. Delivery
// failures are returned; the turn itself has already been applied.
func (r *Router) Route(ctx context.Context, env *message.Envelope) error {
	if env == nil {
		return nil
	}
	ctx = logger.WithCorrelationID(ctx, "")

	h := handlers.Chain(r.handler, r.middlewaresSnapshot()...)
	if h == nil {
		return nil
	}

	resp, err := h(ctx, env)
	if err != nil {
		return err
	}
	if resp.Empty() || r.out == nil {
		return nil
	}

	return r.out.Deliver(ctx, env.Channel, env.From, resp)
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}
