package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	defaultSweepCron  = "*/15 * * * *"
	defaultSweepLimit = 500
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	sweepCron      string
	log            *slog.Logger
}

// NewScheduler builds the periodic task scheduler. An empty cron spec uses every 15 minutes.
func NewScheduler(redisOpt asynq.RedisConnOpt, sweepCron string, log *slog.Logger) Scheduler {
	if sweepCron == "" {
		sweepCron = defaultSweepCron
	}
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		sweepCron:      sweepCron,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewExpireSubscriptionsTask(defaultSweepLimit)
	if err != nil {
		return err
	}

	// Unique keeps overlapping schedulers on several replicas from double-running the sweep.
	if _, err := s.asynqScheduler.Register(s.sweepCron, task, asynq.Unique(defaultUniqueTTL)); err != nil {
		return err
	}

	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: registered subscription sweep", slog.String("cron", s.sweepCron))
	}

	return nil
}

// Run starts the scheduler in the background; Shutdown stops it.
func (s *scheduler) Run() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	if err := s.asynqScheduler.Start(); err != nil && s.log != nil {
		s.log.ErrorContext(context.Background(), "scheduler: start failed", "error", err)
	}
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}
