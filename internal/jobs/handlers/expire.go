package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Proton-105/astro-bot/internal/domain"
	"github.com/Proton-105/astro-bot/internal/i18n"
	"github.com/Proton-105/astro-bot/internal/jobs"
)

// Expirer downgrades ended subscriptions.
type Expirer interface {
	ExpireSubscriptions(ctx context.Context, limit int, notify func(p *domain.UserProfile) domain.Notification) (int, error)
}

type ExpireSubscriptionsHandler struct {
	users Expirer
	i18n  *i18n.Manager
	log   *slog.Logger
	now   func() time.Time
}

func NewExpireSubscriptionsHandler(users Expirer, tr *i18n.Manager, log *slog.Logger) *ExpireSubscriptionsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ExpireSubscriptionsHandler{users: users, i18n: tr, log: log, now: time.Now}
}

func (h *ExpireSubscriptionsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.ExpireSubscriptionsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode expire payload: %v: %w", err, asynq.SkipRetry)
	}

	n, err := h.users.ExpireSubscriptions(ctx, payload.Limit, h.notification)
	if err != nil {
		return err
	}

	h.log.InfoContext(ctx, "subscription sweep finished", slog.Int("expired", n))
	return nil
}

// notification is queued on the profile and shown in front of the next idle reply.
func (h *ExpireSubscriptionsHandler) notification(p *domain.UserProfile) domain.Notification {
	tr := h.i18n.Translator(p.Language)
	return domain.Notification{
		ID:        uuid.NewString(),
		Text:      tr.Tf("notification.subscription_expired", "tier", string(p.Subscription.Tier)),
		CreatedAt: h.now().UTC(),
	}
}
