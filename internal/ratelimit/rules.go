package ratelimit

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/Proton-105/astro-bot/pkg/config"
)

// Rules holds the configured per-phone limit. It is safe to Reload while
// messages are being checked.
type Rules struct {
	mu     sync.RWMutex
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Reload swaps in new settings, typically after a config file change.
func (r *Rules) Reload(cfg config.RateLimitConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
}

// Enabled reports whether limits are enforced at all.
func (r *Rules) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Enabled
}

// IsWhitelisted returns true if the phone bypasses rate limits.
func (r *Rules) IsWhitelisted(phone string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.config.Whitelist, phone)
}

// GetPerUserLimit returns the per-phone rate limiting rule.
func (r *Rules) GetPerUserLimit() (int, time.Duration, error) {
	r.mu.RLock()
	rule := r.config.PerUser
	r.mu.RUnlock()
	return parseRule(rule)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}
