package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/astro-bot/internal/domain"
)

// CachedRepository is a Redis read-through cache in front of another repository.
// Cache failures are logged and fall through to the backing store.
type CachedRepository struct {
	next   UserRepository
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewCachedRepository(next UserRepository, client *redis.Client, ttl time.Duration, log *slog.Logger) *CachedRepository {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedRepository{next: next, client: client, ttl: ttl, log: log}
}

func (c *CachedRepository) Get(ctx context.Context, phone string) (*domain.UserProfile, error) {
	data, err := c.client.Get(ctx, cacheKey(phone)).Bytes()
	switch {
	case err == nil:
		var profile domain.UserProfile
		if jsonErr := json.Unmarshal(data, &profile); jsonErr == nil {
			return &profile, nil
		}
		c.invalidate(ctx, phone)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("profile cache read failed", slog.String("phone", phone), slog.Any("error", err))
	}

	profile, err := c.next.Get(ctx, phone)
	if err != nil {
		return nil, err
	}
	c.set(ctx, profile)
	return profile, nil
}

func (c *CachedRepository) Save(ctx context.Context, profile *domain.UserProfile) error {
	if err := c.next.Save(ctx, profile); err != nil {
		return err
	}
	c.set(ctx, profile)
	return nil
}

func (c *CachedRepository) Delete(ctx context.Context, phone string) error {
	if err := c.next.Delete(ctx, phone); err != nil {
		return err
	}
	c.invalidate(ctx, phone)
	return nil
}

func (c *CachedRepository) ListExpiredSubscriptions(ctx context.Context, now time.Time, limit int) ([]*domain.UserProfile, error) {
	return c.next.ListExpiredSubscriptions(ctx, now, limit)
}

func (c *CachedRepository) set(ctx context.Context, profile *domain.UserProfile) {
	payload, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(profile.Phone), payload, c.ttl).Err(); err != nil {
		c.log.Warn("profile cache write failed", slog.String("phone", profile.Phone), slog.Any("error", err))
	}
}

func (c *CachedRepository) invalidate(ctx context.Context, phone string) {
	if err := c.client.Del(ctx, cacheKey(phone)).Err(); err != nil {
		c.log.Warn("profile cache invalidate failed", slog.String("phone", phone), slog.Any("error", err))
	}
}

func cacheKey(phone string) string {
	return fmt.Sprintf("profile:%s", phone)
}
