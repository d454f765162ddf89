package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/lib/pq"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/astro-bot/internal/domain"
	"github.com/Proton-105/astro-bot/pkg/logger"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func subscribed(phone string, expires time.Time) *domain.UserProfile {
	p := domain.NewUserProfile(phone, now)
	p.Subscription = domain.Subscription{Tier: domain.TierPremium, Status: domain.SubscriptionActive, ExpiresAt: &expires}
	return p
}

func exerciseRepository(t *testing.T, repo UserRepository) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Get(ctx, "+10000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	p := subscribed("+10000000001", now.Add(-time.Hour))
	p.Favorites = []string{"tarot"}
	require.NoError(t, repo.Save(ctx, p))
	require.NoError(t, repo.Save(ctx, subscribed("+10000000002", now.Add(time.Hour))))

	got, err := repo.Get(ctx, p.Phone)
	require.NoError(t, err)
	assert.Equal(t, []string{"tarot"}, got.Favorites)

	got.Favorites = append(got.Favorites, "runes")
	again, err := repo.Get(ctx, p.Phone)
	require.NoError(t, err)
	assert.Equal(t, []string{"tarot"}, again.Favorites, "returned profiles are copies")

	expired, err := repo.ListExpiredSubscriptions(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, p.Phone, expired[0].Phone)

	require.NoError(t, repo.Delete(ctx, p.Phone))
	_, err = repo.Get(ctx, p.Phone)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
}

func TestCachedRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := NewMemoryRepository()
	repo := NewCachedRepository(backing, client, time.Minute, logger.Nop())
	exerciseRepository(t, repo)

	ctx := context.Background()
	p := domain.NewUserProfile("+10000000003", now)
	p.Name = "Cached"
	require.NoError(t, repo.Save(ctx, p))
	assert.True(t, mr.Exists(cacheKey(p.Phone)))

	// A cache hit does not consult the backing store.
	require.NoError(t, backing.Delete(ctx, p.Phone))
	got, err := repo.Get(ctx, p.Phone)
	require.NoError(t, err)
	assert.Equal(t, "Cached", got.Name)

	require.NoError(t, mr.Set(cacheKey(p.Phone), "{not json"))
	_, err = repo.Get(ctx, p.Phone)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("ASTRO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ASTRO_TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`TRUNCATE user_profiles`)
	require.NoError(t, err)

	exerciseRepository(t, NewPostgresRepository(db, logger.Nop()))
}
