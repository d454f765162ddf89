// Package repository persists user profiles.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/astro-bot/internal/domain"
)

// ErrNotFound is returned when no profile exists for a phone.
var ErrNotFound = errors.New("repository: profile not found")

// UserRepository defines persistence operations for user profiles.
type UserRepository interface {
	Get(ctx context.Context, phone string) (*domain.UserProfile, error)
	Save(ctx context.Context, profile *domain.UserProfile) error
	Delete(ctx context.Context, phone string) error
	ListExpiredSubscriptions(ctx context.Context, now time.Time, limit int) ([]*domain.UserProfile, error)
}

// PostgresRepository stores the profile document as JSONB next to the columns
// the subscription sweep filters on.
type PostgresRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPostgresRepository creates a new SQL-backed user repository.
func NewPostgresRepository(db *sql.DB, log *slog.Logger) *PostgresRepository {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresRepository{
		db:  db,
		log: log,
	}
}

// Get retrieves a profile by phone.
func (r *PostgresRepository) Get(ctx context.Context, phone string) (*domain.UserProfile, error) {
	const query = `
		SELECT profile
		FROM user_profiles
		WHERE phone = $1
	`

	var payload []byte
	if err := r.db.QueryRowContext(ctx, query, phone).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.log.Error("failed to fetch profile", slog.String("phone", phone), slog.Any("error", err))
		return nil, fmt.Errorf("select profile: %w", err)
	}

	var profile domain.UserProfile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	return &profile, nil
}

// Save upserts the profile.
func (r *PostgresRepository) Save(ctx context.Context, profile *domain.UserProfile) error {
	if profile == nil || profile.Phone == "" {
		return errors.New("save profile: phone is required")
	}

	const query = `
		INSERT INTO user_profiles (phone, profile, subscription_status, subscription_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (phone) DO UPDATE SET
			profile = EXCLUDED.profile,
			subscription_status = EXCLUDED.subscription_status,
			subscription_expires_at = EXCLUDED.subscription_expires_at,
			updated_at = EXCLUDED.updated_at
	`

	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	var expiresAt sql.NullTime
	if profile.Subscription.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *profile.Subscription.ExpiresAt, Valid: true}
	}

	if _, err := r.db.ExecContext(
		ctx,
		query,
		profile.Phone,
		payload,
		string(profile.Subscription.Status),
		expiresAt,
		profile.CreatedAt,
		profile.UpdatedAt,
	); err != nil {
		r.log.Error("failed to save profile", slog.String("phone", profile.Phone), slog.Any("error", err))
		return fmt.Errorf("upsert profile: %w", err)
	}

	return nil
}

// Delete removes the profile permanently.
func (r *PostgresRepository) Delete(ctx context.Context, phone string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE phone = $1`, phone); err != nil {
		r.log.Error("failed to delete profile", slog.String("phone", phone), slog.Any("error", err))
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// ListExpiredSubscriptions returns active subscriptions whose expiry is at or before now.
func (r *PostgresRepository) ListExpiredSubscriptions(ctx context.Context, now time.Time, limit int) ([]*domain.UserProfile, error) {
	const query = `
		SELECT profile
		FROM user_profiles
		WHERE subscription_status = $1 AND subscription_expires_at <= $2
		ORDER BY subscription_expires_at
		LIMIT $3
	`

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, query, string(domain.SubscriptionActive), now, limit)
	if err != nil {
		return nil, fmt.Errorf("select expired subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*domain.UserProfile
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan expired subscription: %w", err)
		}
		var profile domain.UserProfile
		if err := json.Unmarshal(payload, &profile); err != nil {
			r.log.Warn("skipping undecodable profile", slog.Any("error", err))
			continue
		}
		out = append(out, &profile)
	}

	return out, rows.Err()
}
