package collaborator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/astro-bot/internal/domain"
	apperrors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/geo"
	"github.com/Proton-105/astro-bot/pkg/logger"
)

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func profileFixture() *domain.UserProfile {
	p := domain.NewUserProfile("+447700900123", fixedNow)
	date := time.Date(1992, 2, 29, 0, 0, 0, 0, time.UTC)
	p.Name = "Asha"
	p.BirthDate = &date
	p.BirthTime = &domain.BirthTime{Hour: 12}
	p.BirthPlace = "London"
	p.Timezone = "Europe/London"
	return p
}

func TestTemplateContent_Generate(t *testing.T) {
	content, err := NewTemplateContent(func() time.Time { return fixedNow })
	require.NoError(t, err)

	testCases := []struct {
		name     string
		kind     string
		params   map[string]string
		title    string
		contains []string
	}{
		{name: "birth chart", kind: "western_birth_chart", title: "Birth Chart", contains: []string{"Asha", "29 Feb 1992", "12:00", "Pisces"}},
		{name: "sign with arg", kind: "sign_profile:scorpio", title: "Scorpio", contains: []string{"water sign"}},
		{name: "life path", kind: "life_path", title: "Life Path Number", contains: []string{"life path number is 7"}},
		{name: "three card spread", kind: "tarot:three", title: "Tarot", contains: []string{"1. ", "2. ", "3. "}},
		{name: "name numerology", kind: "name_numerology", params: map[string]string{"name": "Ravi Kumar"}, contains: []string{"Ravi Kumar carries destiny number"}},
		{name: "compatibility", kind: "compatibility", params: map[string]string{"partner_name": "Sam", "partner_date": "1990-08-01"}, contains: []string{"Sam (Leo)", "Asha (Pisces)"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			r, err := content.Generate(context.Background(), tc.kind, profileFixture(), tc.params)
			require.NoError(t, err)
			if tc.title != "" {
				assert.Equal(t, tc.title, r.Title)
			}
			for _, want := range tc.contains {
				assert.Contains(t, r.Body, want)
			}
		})
	}

	_, err = content.Generate(context.Background(), "astral_projection", profileFixture(), nil)
	assert.ErrorIs(t, err, ErrUnsupportedKind)
	assert.True(t, content.Supports("tarot:single"))
	assert.False(t, content.Supports("astral_projection"))
}

func TestTemplateContent_DeterministicPerDay(t *testing.T) {
	content, err := NewTemplateContent(func() time.Time { return fixedNow })
	require.NoError(t, err)

	a, err := content.Generate(context.Background(), "tarot:celtic_cross", profileFixture(), nil)
	require.NoError(t, err)
	b, err := content.Generate(context.Background(), "tarot:celtic_cross", profileFixture(), nil)
	require.NoError(t, err)
	assert.Equal(t, a.Body, b.Body)
}

func TestSandboxPayment(t *testing.T) {
	pay := NewSandboxPayment(func() time.Time { return fixedNow })
	plans := PlanCatalog{Currency: "INR", Prices: map[domain.Tier]int64{domain.TierPremium: 49900}, Period: 30 * 24 * time.Hour}

	plan, ok := plans.Plan(domain.TierPremium)
	require.True(t, ok)
	_, ok = plans.Plan(domain.TierEssential)
	assert.False(t, ok)

	receipt, err := pay.Charge(context.Background(), profileFixture(), plan)
	require.NoError(t, err)
	assert.Contains(t, receipt.TransactionID, "sbx_")
	assert.Equal(t, fixedNow.Add(plan.Period), receipt.ExpiresAt)

	pay.Decline("+447700900123")
	_, err = pay.Charge(context.Background(), profileFixture(), plan)
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Len(t, pay.Charges(), 1)
}

type contentFunc func(ctx context.Context) (*Rendered, error)

func (f contentFunc) Generate(ctx context.Context, _ string, _ *domain.UserProfile, _ map[string]string) (*Rendered, error) {
	return f(ctx)
}

func TestGuardedContent_TimeoutIsUnavailable(t *testing.T) {
	slow := contentFunc(func(ctx context.Context) (*Rendered, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	var observed error
	g := NewGuardedContent(slow, GuardOptions{
		Timeout:  20 * time.Millisecond,
		Logger:   logger.Nop(),
		Observer: func(_ string, err error, _ time.Duration) { observed = err },
	})

	start := time.Now()
	_, err := g.Generate(context.Background(), "tarot:single", nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCollaboratorUnavailable, apperrors.KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, err, observed)
}

func TestGuardedContent_RetriesTransientFailure(t *testing.T) {
	var calls int32
	flaky := contentFunc(func(context.Context) (*Rendered, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("connection reset")
		}
		return &Rendered{Body: "ok"}, nil
	})

	g := NewGuardedContent(flaky, GuardOptions{
		Timeout: time.Second,
		Retry:   apperrors.RetryPolicy{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		Logger:  logger.Nop(),
	})

	r, err := g.Generate(context.Background(), "runes", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", r.Body)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGuardedContent_OpenBreakerIsUnavailable(t *testing.T) {
	breaker := apperrors.NewCircuitBreakerWithSettings(apperrors.BreakerSettings{MinRequests: 1, OpenTimeout: time.Hour})
	failing := contentFunc(func(context.Context) (*Rendered, error) { return nil, errors.New("down") })

	g := NewGuardedContent(failing, GuardOptions{
		Timeout: time.Second,
		Retry:   apperrors.RetryPolicy{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		Breaker: breaker,
		Logger:  logger.Nop(),
	})

	_, err := g.Generate(context.Background(), "runes", nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.StateOpen, breaker.State())

	_, err = g.Generate(context.Background(), "runes", nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)
	assert.Equal(t, apperrors.KindCollaboratorUnavailable, apperrors.KindOf(err))
}

func TestGuardedGeocoder_MissPassesThrough(t *testing.T) {
	g := NewGuardedGeocoder(geo.NewGazetteer(), GuardOptions{Timeout: time.Second, Logger: logger.Nop()})

	_, err := g.Resolve(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, geo.ErrNotFound)

	loc, err := g.Resolve(context.Background(), "London, UK")
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", loc.Timezone)
}

func TestGuardedPayment_DeclineIsNotUnavailable(t *testing.T) {
	pay := NewSandboxPayment(nil)
	pay.Decline("+447700900123")
	g := NewGuardedPayment(pay, GuardOptions{Timeout: time.Second, Logger: logger.Nop()})

	_, err := g.Charge(context.Background(), profileFixture(), Plan{Tier: domain.TierPremium, Amount: 1})
	assert.ErrorIs(t, err, ErrDeclined)
	assert.NotEqual(t, apperrors.KindCollaboratorUnavailable, apperrors.KindOf(err))
}
