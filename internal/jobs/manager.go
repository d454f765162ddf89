package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/astro-bot/internal/message"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	client := asynq.NewClient(redisOpt)

	return &manager{
		client: client,
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

func (m *manager) Close() error {
	return m.client.Close()
}

// DeliveryQueue adapts a Manager to the output adapter's fallback queue.
type DeliveryQueue struct {
	jobs Manager
	log  *slog.Logger
	now  func() time.Time
}

// NewDeliveryQueue wraps m.
func NewDeliveryQueue(m Manager, log *slog.Logger) *DeliveryQueue {
	if log == nil {
		log = slog.Default()
	}
	return &DeliveryQueue{jobs: m, log: log, now: time.Now}
}

// EnqueueDelivery schedules payloads for background delivery.
func (q *DeliveryQueue) EnqueueDelivery(ctx context.Context, channel, to string, payloads []message.Payload) error {
	if len(payloads) == 0 {
		return nil
	}

	task, err := NewDeliverTask(channel, to, payloads)
	if err != nil {
		return fmt.Errorf("build deliver task: %w", err)
	}

	info, err := q.jobs.Enqueue(ctx, task, asynq.Deadline(q.now().Add(deliverDeadline)))
	if err != nil {
		return fmt.Errorf("enqueue deliver task: %w", err)
	}

	q.log.InfoContext(ctx, "delivery queued",
		slog.String("task_id", info.ID),
		slog.String("channel", channel),
		slog.Int("payloads", len(payloads)),
	)
	return nil
}
