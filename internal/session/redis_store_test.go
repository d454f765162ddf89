package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/astro-bot/internal/domain"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore(client, testLogger(), time.Hour)
	ctx := context.Background()

	date := time.Date(1992, 2, 29, 0, 0, 0, 0, time.UTC)
	sess := &Session{
		Phone:        "15550001",
		Mode:         ModeOnboarding,
		Stage:        StageAskPlace,
		Draft:        Draft{BirthDate: &date, BirthTime: &domain.BirthTime{Hour: 12}},
		LastActivity: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Version:      3,
	}

	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Load(ctx, sess.Phone)
	require.NoError(t, err)
	if diff := cmp.Diff(sess, got); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}

	phones, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"15550001"}, phones)

	require.NoError(t, store.Delete(ctx, sess.Phone))
	_, err = store.Load(ctx, sess.Phone)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_CorruptRecord(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, testLogger(), time.Hour)

	require.NoError(t, mr.Set(sessionKey("1"), "{not json"))

	_, err := store.Load(context.Background(), "1")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRedisStore_SetsExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, testLogger(), time.Minute)

	require.NoError(t, store.Save(context.Background(), New("1", time.Now())))
	assert.Equal(t, 2*time.Minute, mr.TTL(sessionKey("1")))
}
