package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Cleaner removes sessions idle past the TTL on a schedule.
type Cleaner struct {
	manager  *Manager
	store    Store
	log      *slog.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewCleaner constructs a Cleaner instance. Deletions go through the manager so
// they serialize with in-flight turns.
func NewCleaner(manager *Manager, store Store, log *slog.Logger, ttl, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Cleaner{
		manager:  manager,
		store:    store,
		log:      log,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.store == nil || c.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("session cleaner stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep deletes every expired session and returns how many were removed.
func (c *Cleaner) Sweep(ctx context.Context) int {
	phones, err := c.store.List(ctx)
	if err != nil {
		c.log.Error("session cleaner list failed", slog.Any("error", err))
		return 0
	}

	removed := 0
	for _, phone := range phones {
		if ctx.Err() != nil {
			return removed
		}

		err := c.manager.WithLock(ctx, phone, func(ctx context.Context) error {
			sess, err := c.store.Load(ctx, phone)
			if err != nil {
				if errors.Is(err, ErrCorrupt) {
					return c.store.Delete(ctx, phone)
				}
				return err
			}
			if !sess.Expired(c.now().UTC(), c.ttl) {
				return errNotExpired
			}
			return c.store.Delete(ctx, phone)
		})

		switch {
		case err == nil:
			removed++
		case errors.Is(err, errNotExpired), errors.Is(err, ErrNotFound):
		default:
			c.log.Error("session cleaner failed to remove session", slog.String("phone", phone), slog.Any("error", err))
		}
	}

	if removed > 0 {
		c.log.Info("expired sessions removed", slog.Int("count", removed))
	}
	return removed
}

var errNotExpired = errors.New("session not expired")
