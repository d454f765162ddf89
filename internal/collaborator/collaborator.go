// Package collaborator holds the contracts of the external services the flow
// engine calls, plus local adapters for them.
package collaborator

import (
	"context"
	"errors"
	"time"

	"github.com/Proton-105/astro-bot/internal/domain"
)

var (
	// ErrUnsupportedKind is returned for a content kind the service cannot render.
	ErrUnsupportedKind = errors.New("collaborator: unsupported content kind")
	// ErrDeclined is returned when the payment gateway refuses a charge.
	ErrDeclined = errors.New("collaborator: payment declined")
)

// Rendered is content produced for one reading.
type Rendered struct {
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ContentService renders astrology, divination and numerology readings.
type ContentService interface {
	Generate(ctx context.Context, kind string, profile *domain.UserProfile, params map[string]string) (*Rendered, error)
}

// Plan is a purchasable subscription.
type Plan struct {
	Tier     domain.Tier
	Amount   int64
	Currency string
	Period   time.Duration
}

// Receipt confirms a successful charge.
type Receipt struct {
	TransactionID string
	Plan          Plan
	ChargedAt     time.Time
	ExpiresAt     time.Time
}

// PaymentService charges a user for a plan.
type PaymentService interface {
	Charge(ctx context.Context, profile *domain.UserProfile, plan Plan) (*Receipt, error)
}
