package collaborator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/astro-bot/internal/domain"
)

// SandboxPayment approves every charge except for phones registered as
// declining. Transaction ids are random UUIDs.
type SandboxPayment struct {
	mu       sync.Mutex
	declined map[string]struct{}
	charges  []Receipt
	now      func() time.Time
}

func NewSandboxPayment(now func() time.Time) *SandboxPayment {
	if now == nil {
		now = time.Now
	}
	return &SandboxPayment{declined: make(map[string]struct{}), now: now}
}

// Decline makes every future charge for phone fail with ErrDeclined.
func (s *SandboxPayment) Decline(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declined[phone] = struct{}{}
}

func (s *SandboxPayment) Charge(ctx context.Context, profile *domain.UserProfile, plan Plan) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("charge: %w", ErrDeclined)
	}
	if plan.Amount <= 0 {
		return nil, fmt.Errorf("charge %s: invalid amount %d: %w", plan.Tier, plan.Amount, ErrDeclined)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.declined[profile.Phone]; ok {
		return nil, fmt.Errorf("charge %s: %w", plan.Tier, ErrDeclined)
	}

	now := s.now()
	receipt := Receipt{
		TransactionID: "sbx_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Plan:          plan,
		ChargedAt:     now,
		ExpiresAt:     now.Add(plan.Period),
	}
	s.charges = append(s.charges, receipt)
	return &receipt, nil
}

// Charges returns the receipts issued so far.
func (s *SandboxPayment) Charges() []Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Receipt(nil), s.charges...)
}

// PlanCatalog prices the purchasable tiers.
type PlanCatalog struct {
	Currency string
	Prices   map[domain.Tier]int64
	Period   time.Duration
}

// Plan looks up the plan for tier.
func (c PlanCatalog) Plan(tier domain.Tier) (Plan, bool) {
	price, ok := c.Prices[tier]
	if !ok {
		return Plan{}, false
	}
	return Plan{Tier: tier, Amount: price, Currency: c.Currency, Period: c.Period}, true
}
