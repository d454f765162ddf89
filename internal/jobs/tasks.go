package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/astro-bot/internal/message"
)

const (
	TaskTypeDeliver             = "outbound:deliver"
	TaskTypeExpireSubscriptions = "subscription:expire"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues is the worker's priority table.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

const (
	deliverMaxRetry = 8
	// Replies older than this are stale; the user has likely moved on.
	deliverDeadline  = 15 * time.Minute
	defaultUniqueTTL = 10 * time.Minute
)

// DeliverPayload carries the payloads a turn could not send inline.
type DeliverPayload struct {
	Channel  string            `json:"channel"`
	To       string            `json:"to"`
	Messages []message.Payload `json:"messages"`
}

// ExpireSubscriptionsPayload bounds one sweep.
type ExpireSubscriptionsPayload struct {
	Limit int `json:"limit"`
}

func NewDeliverTask(channel, to string, payloads []message.Payload) (*asynq.Task, error) {
	payload, err := json.Marshal(DeliverPayload{Channel: channel, To: to, Messages: payloads})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeDeliver, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(deliverMaxRetry),
		asynq.Timeout(time.Minute),
	), nil
}

func NewExpireSubscriptionsTask(limit int) (*asynq.Task, error) {
	payload, err := json.Marshal(ExpireSubscriptionsPayload{Limit: limit})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeExpireSubscriptions, payload, asynq.Queue(QueueLow), asynq.MaxRetry(1)), nil
}
