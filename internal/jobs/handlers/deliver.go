// Package handlers holds the asynq task handlers.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/astro-bot/internal/jobs"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/output"
)

// Resender sends payloads once, without its own retry or queueing.
type Resender interface {
	Resend(ctx context.Context, channel, to string, payloads []message.Payload) (int, error)
}

type DeliverHandler struct {
	out  Resender
	jobs jobs.Manager
	log  *slog.Logger
}

// NewDeliverHandler builds the handler for queued replies. Remaining payloads
// after a partial send are re-queued so sent ones are not repeated.
func NewDeliverHandler(out Resender, m jobs.Manager, log *slog.Logger) *DeliverHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DeliverHandler{out: out, jobs: m, log: log}
}

func (h *DeliverHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.DeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "deliver: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode deliver payload: %v: %w", err, asynq.SkipRetry)
	}

	sent, err := h.out.Resend(ctx, payload.Channel, payload.To, payload.Messages)
	if err == nil {
		h.log.InfoContext(ctx, "deliver: queued reply sent", slog.String("channel", payload.Channel), slog.Int("payloads", sent))
		return nil
	}

	if output.IsPermanent(err) {
		h.log.WarnContext(ctx, "deliver: dropping undeliverable reply", slog.String("channel", payload.Channel), slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if sent > 0 && h.jobs != nil {
		task, buildErr := jobs.NewDeliverTask(payload.Channel, payload.To, payload.Messages[sent:])
		if buildErr == nil {
			if _, qErr := h.jobs.Enqueue(ctx, task); qErr == nil {
				return nil
			}
		}
	}

	retried, _ := asynq.GetRetryCount(ctx)
	h.log.WarnContext(ctx, "deliver: attempt failed", slog.Int("retry", retried), slog.Any("error", err))
	return err
}
