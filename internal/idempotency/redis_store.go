package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusCompleted = "completed"

	keyPrefix = "dedupe:"
)

// Record is the stored outcome of a processed delivery.
type Record struct {
	Status    string
	Response  []byte
	UpdatedAt time.Time
}

// Store persists dedupe records and the short-lived processing lock.
type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key string) error
}

type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, lockKey(key), 1, lockTTL).Result()
	if err != nil {
		s.log.Error("failed to acquire dedupe lock", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return acquired, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	result, err := s.client.HGetAll(ctx, recordKey(key)).Result()
	if err != nil {
		s.log.Error("failed to fetch dedupe record", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	if len(result) == 0 {
		return nil, nil
	}

	record := &Record{
		Status:   result["status"],
		Response: []byte(result["response"]),
	}
	if ts, err := strconv.ParseInt(result["updated_at"], 10, 64); err == nil {
		record.UpdatedAt = time.Unix(0, ts).UTC()
	}

	return record, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	updated := record.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	args := map[string]interface{}{
		"status":     record.Status,
		"response":   string(record.Response),
		"updated_at": strconv.FormatInt(updated.UnixNano(), 10),
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, recordKey(key), args)
	pipe.Expire(ctx, recordKey(key), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error("failed to store dedupe record", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lockKey(key)).Err(); err != nil {
		s.log.Error("failed to release dedupe lock", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func recordKey(key string) string {
	return fmt.Sprintf("%s%s", keyPrefix, key)
}

func lockKey(key string) string {
	return fmt.Sprintf("%s%s:lock", keyPrefix, key)
}
