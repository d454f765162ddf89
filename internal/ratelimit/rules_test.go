package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/astro-bot/pkg/config"
)

func TestRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled:   true,
		Whitelist: []string{"+15550001111"},
		PerUser:   config.RateLimitRule{Limit: 20, Window: "1m"},
	})

	assert.True(t, rules.Enabled())
	assert.True(t, rules.IsWhitelisted("+15550001111"))
	assert.False(t, rules.IsWhitelisted("+15550002222"))

	limit, window, err := rules.GetPerUserLimit()
	require.NoError(t, err)
	assert.Equal(t, 20, limit)
	assert.Equal(t, time.Minute, window)

	rules.Reload(config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 5}})
	assert.False(t, rules.Enabled())
	_, _, err = rules.GetPerUserLimit()
	assert.Error(t, err)
}
