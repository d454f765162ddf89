package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/astro-bot/pkg/config"
)

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), config.RedisConfig{Addr: mr.Addr(), DB: 0})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "session:+1", "x", 0).Err())
	assert.True(t, mr.Exists("session:+1"))
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), config.RedisConfig{Addr: addr})
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestAsynqOpt(t *testing.T) {
	opt := AsynqOpt(config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2, PoolSize: 5})
	assert.Equal(t, "redis:6379", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, 5, opt.PoolSize)
}
