package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix   = "session:"
	sessionScanPattern = "session:*"
	sessionScanBatch   = 100
)

// RedisStore persists sessions as JSON in Redis.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

// NewRedisStore initializes a Redis-backed Store. Keys expire after ttl plus a grace period
// so the cleaner and the expiry reset both get to observe them.
func NewRedisStore(client *redis.Client, log *slog.Logger, ttl time.Duration) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
		ttl:    ttl,
	}
}

func (s *RedisStore) Load(ctx context.Context, phone string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(phone)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		s.log.Error("failed to get session from redis", "phone", phone, "error", err)
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCorrupt, err)
	}
	if sess.Phone == "" {
		sess.Phone = phone
	}

	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		s.log.Error("failed to encode session", "phone", sess.Phone, "error", err)
		return err
	}

	var expiration time.Duration
	if s.ttl > 0 {
		expiration = 2 * s.ttl
	}

	if err := s.client.Set(ctx, sessionKey(sess.Phone), data, expiration).Err(); err != nil {
		s.log.Error("failed to save session in redis", "phone", sess.Phone, "error", err)
		return err
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, sessionKey(phone)).Err(); err != nil {
		s.log.Error("failed to delete session", "phone", phone, "error", err)
		return err
	}

	return nil
}

// List scans session keys.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		phones []string
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionScanPattern, sessionScanBatch).Result()
		if err != nil {
			s.log.Error("failed to scan sessions", "error", err)
			return nil, err
		}

		for _, key := range keys {
			phones = append(phones, strings.TrimPrefix(key, sessionKeyPrefix))
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return phones, nil
}

func sessionKey(phone string) string {
	return sessionKeyPrefix + phone
}
