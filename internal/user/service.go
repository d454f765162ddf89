// Package user provides profile operations used by the flow engine.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/astro-bot/internal/domain"
	"github.com/Proton-105/astro-bot/internal/repository"
)

// Service provides business operations over user profiles.
type Service struct {
	repo repository.UserRepository
	log  *slog.Logger
	now  func() time.Time
	lock LockFunc
}

// LockFunc runs fn while holding the per-phone turn lock.
type LockFunc func(ctx context.Context, phone string, fn func(ctx context.Context) error) error

// NewService constructs a new Service instance. A nil clock uses time.Now.
func NewService(repo repository.UserRepository, log *slog.Logger, now func() time.Time) *Service {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, log: log, now: now}
}

// UseLock makes background writers take the same per-phone lock as turns, so
// a sweep never overwrites a profile a turn is about to save.
func (s *Service) UseLock(lock LockFunc) {
	s.lock = lock
}

// GetOrCreate fetches a profile by phone or returns a new, unsaved one for a
// first contact. The bool reports whether the profile is new.
func (s *Service) GetOrCreate(ctx context.Context, phone string) (*domain.UserProfile, bool, error) {
	if phone == "" {
		return nil, false, errors.New("phone is empty")
	}

	profile, err := s.repo.Get(ctx, phone)
	if err == nil {
		return profile, false, nil
	}

	if !errors.Is(err, repository.ErrNotFound) {
		s.logError("get_or_create.get", phone, err)
		return nil, false, fmt.Errorf("get profile: %w", err)
	}

	return domain.NewUserProfile(phone, s.now().UTC()), true, nil
}

// Save stamps UpdatedAt and LastActiveAt and persists the profile.
func (s *Service) Save(ctx context.Context, profile *domain.UserProfile) error {
	now := s.now().UTC()
	profile.UpdatedAt = now
	profile.LastActiveAt = now
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}

	if err := s.repo.Save(ctx, profile); err != nil {
		s.logError("save", profile.Phone, err)
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// Delete removes all stored data for phone.
func (s *Service) Delete(ctx context.Context, phone string) error {
	if err := s.repo.Delete(ctx, phone); err != nil {
		s.logError("delete", phone, err)
		return fmt.Errorf("delete profile: %w", err)
	}

	s.log.Info("profile deleted on request", slog.String("phone", phone))
	return nil
}

// ExpireSubscriptions downgrades subscriptions that ended before now and queues
// a notification for each affected user. It returns the number of profiles changed.
func (s *Service) ExpireSubscriptions(ctx context.Context, limit int, notify func(p *domain.UserProfile) domain.Notification) (int, error) {
	now := s.now().UTC()
	expired, err := s.repo.ListExpiredSubscriptions(ctx, now, limit)
	if err != nil {
		s.logError("expire_subscriptions.list", "", err)
		return 0, fmt.Errorf("list expired subscriptions: %w", err)
	}

	changed := 0
	for _, p := range expired {
		err := s.locked(ctx, p.Phone, func(ctx context.Context) error {
			// Re-read under the lock; a turn may have renewed the plan meanwhile.
			current, err := s.repo.Get(ctx, p.Phone)
			if err != nil {
				return err
			}
			if current.Subscription.Status != domain.SubscriptionActive ||
				current.Subscription.ExpiresAt == nil || current.Subscription.ExpiresAt.After(now) {
				return errNotExpired
			}
			current.Subscription.Status = domain.SubscriptionExpired
			if notify != nil {
				current.PendingNotifications = append(current.PendingNotifications, notify(current))
			}
			current.UpdatedAt = now
			return s.repo.Save(ctx, current)
		})
		switch {
		case errors.Is(err, errNotExpired), errors.Is(err, repository.ErrNotFound):
			continue
		case err != nil:
			s.logError("expire_subscriptions.save", p.Phone, err)
			continue
		}
		changed++
	}

	return changed, nil
}

var errNotExpired = errors.New("subscription no longer expired")

func (s *Service) locked(ctx context.Context, phone string, fn func(ctx context.Context) error) error {
	if s.lock == nil {
		return fn(ctx)
	}
	return s.lock(ctx, phone, fn)
}

func (s *Service) logError(operation, phone string, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.String("phone", phone),
		slog.Any("error", err),
	)
}
