// Package domain holds the persisted user model.
package domain

import (
	"fmt"
	"time"
)

// Tier is a subscription plan level.
type Tier string

const (
	TierFree      Tier = "free"
	TierEssential Tier = "essential"
	TierPremium   Tier = "premium"
)

// Rank orders tiers so that a higher tier satisfies a lower requirement.
func (t Tier) Rank() int {
	switch t {
	case TierEssential:
		return 1
	case TierPremium:
		return 2
	default:
		return 0
	}
}

// SubscriptionStatus is the billing state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionNone    SubscriptionStatus = "none"
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// Subscription describes the user's paid plan.
type Subscription struct {
	Tier          Tier               `json:"tier"`
	Status        SubscriptionStatus `json:"status"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	TransactionID string             `json:"transaction_id,omitempty"`
}

// ActiveTier returns the tier currently in force at now, TierFree when nothing is active.
func (s Subscription) ActiveTier(now time.Time) Tier {
	if s.Status != SubscriptionActive {
		return TierFree
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return TierFree
	}
	if s.Tier == "" {
		return TierFree
	}
	return s.Tier
}

// BirthTime is a wall-clock birth time in the birth place's timezone.
type BirthTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

// String renders the time as HH:MM or HH:MM:SS.
func (t BirthTime) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Notification is a message queued for the user's next turn.
type Notification struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// UserProfile is the persistent record of a bot user, keyed by phone identity.
type UserProfile struct {
	Phone                string         `json:"phone"`
	Name                 string         `json:"name,omitempty"`
	BirthDate            *time.Time     `json:"birth_date,omitempty"`
	BirthTime            *BirthTime     `json:"birth_time,omitempty"`
	BirthTimeSkipped     bool           `json:"birth_time_skipped,omitempty"`
	BirthPlace           string         `json:"birth_place,omitempty"`
	Latitude             *float64       `json:"latitude,omitempty"`
	Longitude            *float64       `json:"longitude,omitempty"`
	Timezone             string         `json:"timezone,omitempty"`
	ConfirmedAt          *time.Time     `json:"confirmed_at,omitempty"`
	Subscription         Subscription   `json:"subscription"`
	Language             string         `json:"language,omitempty"`
	CompletedReadings    []string       `json:"completed_readings,omitempty"`
	Favorites            []string       `json:"favorites,omitempty"`
	RecentHistory        []string       `json:"recent_history,omitempty"`
	PendingNotifications []Notification `json:"pending_notifications,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	LastActiveAt         time.Time      `json:"last_active_at"`
}

// NewUserProfile returns an empty profile for a first contact.
func NewUserProfile(phone string, now time.Time) *UserProfile {
	return &UserProfile{
		Phone:        phone,
		Subscription: Subscription{Tier: TierFree, Status: SubscriptionNone},
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActiveAt: now,
	}
}

// ProfileComplete holds iff birth date, place and explicit confirmation are present.
// Birth time may be deliberately skipped.
func (p *UserProfile) ProfileComplete() bool {
	if p == nil {
		return false
	}
	return p.BirthDate != nil && p.BirthPlace != "" && p.ConfirmedAt != nil
}

// HasBirthTime reports whether an exact birth time is known.
func (p *UserProfile) HasBirthTime() bool {
	return p != nil && p.BirthTime != nil
}

// MarkCompleted records a finished reading kind once.
func (p *UserProfile) MarkCompleted(kind string) {
	for _, existing := range p.CompletedReadings {
		if existing == kind {
			return
		}
	}
	p.CompletedReadings = append(p.CompletedReadings, kind)
}

// PushRecent moves nodeID to the front of the recent history, keeping at most limit entries.
func (p *UserProfile) PushRecent(nodeID string, limit int) {
	next := make([]string, 0, len(p.RecentHistory)+1)
	next = append(next, nodeID)
	for _, id := range p.RecentHistory {
		if id != nodeID {
			next = append(next, id)
		}
	}
	if limit > 0 && len(next) > limit {
		next = next[:limit]
	}
	p.RecentHistory = next
}

// IsFavorite reports whether nodeID is among the favorites.
func (p *UserProfile) IsFavorite(nodeID string) bool {
	for _, id := range p.Favorites {
		if id == nodeID {
			return true
		}
	}
	return false
}

// DrainNotifications returns and clears the pending notifications.
func (p *UserProfile) DrainNotifications() []Notification {
	pending := p.PendingNotifications
	p.PendingNotifications = nil
	return pending
}

// Clone returns a deep copy of the profile.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}

	cp := *p
	if p.BirthDate != nil {
		d := *p.BirthDate
		cp.BirthDate = &d
	}
	if p.BirthTime != nil {
		t := *p.BirthTime
		cp.BirthTime = &t
	}
	if p.Latitude != nil {
		lat := *p.Latitude
		cp.Latitude = &lat
	}
	if p.Longitude != nil {
		lon := *p.Longitude
		cp.Longitude = &lon
	}
	if p.ConfirmedAt != nil {
		c := *p.ConfirmedAt
		cp.ConfirmedAt = &c
	}
	if p.Subscription.ExpiresAt != nil {
		e := *p.Subscription.ExpiresAt
		cp.Subscription.ExpiresAt = &e
	}
	cp.CompletedReadings = append([]string(nil), p.CompletedReadings...)
	cp.Favorites = append([]string(nil), p.Favorites...)
	cp.RecentHistory = append([]string(nil), p.RecentHistory...)
	cp.PendingNotifications = append([]Notification(nil), p.PendingNotifications...)
	return &cp
}
