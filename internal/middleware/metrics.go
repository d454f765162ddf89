package middleware

import (
	"context"
	"time"

	"github.com/Proton-105/astro-bot/internal/bot/handlers"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/pkg/metrics"
)

// Metrics measures execution time and status for turns, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(ctx context.Context, env *message.Envelope) (*message.Response, error) {
		start := time.Now()
		resp, err := next(ctx, env)

		status := "ok"
		switch {
		case err != nil:
			status = "error"
		case resp.Empty():
			status = "silent"
		}

		metrics.RecordTurn(channelOf(env), status, time.Since(start))

		return resp, err
	}
}

func channelOf(env *message.Envelope) string {
	if env == nil || env.Channel == "" {
		return "unknown"
	}
	return env.Channel
}
