package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Proton-105/astro-bot/internal/domain"
)

// MemoryRepository keeps profiles in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*domain.UserProfile
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[string]*domain.UserProfile)}
}

func (r *MemoryRepository) Get(_ context.Context, phone string) (*domain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[phone]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, profile *domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles[profile.Phone] = profile.Clone()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.profiles, phone)
	return nil
}

func (r *MemoryRepository) ListExpiredSubscriptions(_ context.Context, now time.Time, limit int) ([]*domain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.UserProfile
	for _, p := range r.profiles {
		sub := p.Subscription
		if sub.Status == domain.SubscriptionActive && sub.ExpiresAt != nil && !sub.ExpiresAt.After(now) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Subscription.ExpiresAt.Before(*out[j].Subscription.ExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
