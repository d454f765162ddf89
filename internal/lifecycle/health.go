package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// ErrDraining is reported by Readiness once shutdown has begun.
var ErrDraining = errors.New("service is draining")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// ReadyFunc reports whether dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

// Probes answers the webhook server's health endpoints. Readiness fails while
// draining so load balancers stop routing deliveries here.
type Probes struct {
	log      *slog.Logger
	ready    ReadyFunc
	draining atomic.Bool
}

// NewProbes creates probes; ready may be nil when there is nothing to check.
func NewProbes(ready ReadyFunc, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, ready: ready}
}

// Liveness reports success while the process is running.
func (p *Probes) Liveness(context.Context) error {
	return nil
}

func (p *Probes) Readiness(ctx context.Context) error {
	if p.draining.Load() {
		return ErrDraining
	}
	if p.ready == nil {
		return nil
	}
	if err := p.ready(ctx); err != nil {
		p.log.Debug("readiness probe failed", slog.Any("error", err))
		return err
	}
	return nil
}

// Drain flips readiness to failing. It is the first shutdown step.
func (p *Probes) Drain(context.Context) error {
	if !p.draining.Swap(true) {
		p.log.Info("readiness probe now reports draining")
	}
	return nil
}
