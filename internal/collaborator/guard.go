package collaborator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Proton-105/astro-bot/internal/domain"
	apperrors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/geo"
)

// Observer receives the outcome of every guarded call.
type Observer func(service string, err error, elapsed time.Duration)

// GuardOptions configures the timeout, retry and breaker applied to a collaborator.
type GuardOptions struct {
	Timeout  time.Duration
	Retry    apperrors.RetryPolicy
	Breaker  *apperrors.CircuitBreaker
	Observer Observer
	Logger   *slog.Logger
}

type guard struct {
	name string
	opts GuardOptions
}

func newGuard(name string, opts GuardOptions) guard {
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.Retry == (apperrors.RetryPolicy{}) {
		opts.Retry = apperrors.RetryPolicy{MaxRetries: 1, InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}
	}
	if opts.Breaker == nil {
		opts.Breaker = apperrors.NewCircuitBreakerWithSettings(apperrors.BreakerSettings{Name: name})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return guard{name: name, opts: opts}
}

// run calls fn under one overall timeout. Errors matched by passthrough are
// business outcomes: returned as-is, never retried, not counted by the breaker.
// Everything else becomes a CollaboratorUnavailable.
func (g guard) run(ctx context.Context, passthrough func(error) bool, fn func(ctx context.Context) error) error {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	isBusiness := func(err error) bool { return passthrough != nil && passthrough(err) }

	err := apperrors.WithRetryPolicy(callCtx, g.opts.Retry, func() error {
		return g.opts.Breaker.CallCounting(func() error {
			callErr := fn(callCtx)
			if callErr == nil || isBusiness(callErr) {
				return callErr
			}
			return apperrors.NewCollaboratorUnavailable(g.name, callErr)
		}, func(err error) bool { return !isBusiness(err) })
	})

	switch {
	case err == nil, isBusiness(err):
	case errors.Is(err, apperrors.ErrCircuitOpen):
		err = apperrors.NewCollaboratorUnavailable(g.name, err)
	case apperrors.KindOf(err) != apperrors.KindCollaboratorUnavailable:
		err = apperrors.NewCollaboratorUnavailable(g.name, err)
	}

	if err != nil && !isBusiness(err) {
		g.opts.Logger.Warn("collaborator call failed",
			slog.String("collaborator", g.name),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
	}
	if g.opts.Observer != nil {
		g.opts.Observer(g.name, err, time.Since(start))
	}
	return err
}

// GuardedContent wraps a ContentService.
type GuardedContent struct {
	next  ContentService
	guard guard
}

func NewGuardedContent(next ContentService, opts GuardOptions) *GuardedContent {
	return &GuardedContent{next: next, guard: newGuard("content", opts)}
}

func (g *GuardedContent) Generate(ctx context.Context, kind string, profile *domain.UserProfile, params map[string]string) (*Rendered, error) {
	var out *Rendered
	err := g.guard.run(ctx, func(err error) bool { return errors.Is(err, ErrUnsupportedKind) }, func(ctx context.Context) error {
		r, err := g.next.Generate(ctx, kind, profile, params)
		out = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GuardedPayment wraps a PaymentService. Charges are never retried: a timed-out
// charge may still have been applied by the gateway.
type GuardedPayment struct {
	next  PaymentService
	guard guard
}

func NewGuardedPayment(next PaymentService, opts GuardOptions) *GuardedPayment {
	opts.Retry = apperrors.RetryPolicy{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return &GuardedPayment{next: next, guard: newGuard("payment", opts)}
}

func (g *GuardedPayment) Charge(ctx context.Context, profile *domain.UserProfile, plan Plan) (*Receipt, error) {
	var out *Receipt
	err := g.guard.run(ctx, func(err error) bool { return errors.Is(err, ErrDeclined) }, func(ctx context.Context) error {
		r, err := g.next.Charge(ctx, profile, plan)
		out = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GuardedGeocoder wraps a geo.Geocoder; a miss is a business outcome.
type GuardedGeocoder struct {
	next  geo.Geocoder
	guard guard
}

func NewGuardedGeocoder(next geo.Geocoder, opts GuardOptions) *GuardedGeocoder {
	return &GuardedGeocoder{next: next, guard: newGuard("geocoder", opts)}
}

func (g *GuardedGeocoder) Resolve(ctx context.Context, place string) (*geo.Location, error) {
	var out *geo.Location
	err := g.guard.run(ctx, func(err error) bool { return errors.Is(err, geo.ErrNotFound) }, func(ctx context.Context) error {
		loc, err := g.next.Resolve(ctx, place)
		out = loc
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
