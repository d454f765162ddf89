package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfileComplete(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	date := time.Date(1992, 2, 29, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name   string
		mutate func(p *UserProfile)
		want   bool
	}{
		{name: "empty", mutate: func(p *UserProfile) {}, want: false},
		{name: "date only", mutate: func(p *UserProfile) { p.BirthDate = &date }, want: false},
		{
			name: "date and place without confirmation",
			mutate: func(p *UserProfile) {
				p.BirthDate = &date
				p.BirthPlace = "London, UK"
			},
			want: false,
		},
		{
			name: "confirmed without birth time",
			mutate: func(p *UserProfile) {
				p.BirthDate = &date
				p.BirthPlace = "London, UK"
				p.BirthTimeSkipped = true
				p.ConfirmedAt = &now
			},
			want: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := NewUserProfile("15550001", now)
			tc.mutate(p)
			assert.Equal(t, tc.want, p.ProfileComplete())
		})
	}

	var nilProfile *UserProfile
	assert.False(t, nilProfile.ProfileComplete())
}

func TestSubscription_ActiveTier(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.Equal(t, TierFree, Subscription{}.ActiveTier(now))
	assert.Equal(t, TierPremium, Subscription{Tier: TierPremium, Status: SubscriptionActive, ExpiresAt: &future}.ActiveTier(now))
	assert.Equal(t, TierFree, Subscription{Tier: TierPremium, Status: SubscriptionActive, ExpiresAt: &past}.ActiveTier(now))
	assert.Equal(t, TierFree, Subscription{Tier: TierPremium, Status: SubscriptionExpired, ExpiresAt: &future}.ActiveTier(now))
	assert.True(t, TierPremium.Rank() > TierEssential.Rank())
}

func TestPushRecent_BoundedAndDeduplicated(t *testing.T) {
	p := NewUserProfile("1", time.Now())
	for _, id := range []string{"a", "b", "c", "a", "d"} {
		p.PushRecent(id, 3)
	}
	assert.Equal(t, []string{"d", "a", "c"}, p.RecentHistory)
}

func TestClone_IsDeep(t *testing.T) {
	date := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewUserProfile("1", time.Now())
	p.BirthDate = &date
	p.Favorites = []string{"birth_chart"}

	cp := p.Clone()
	cp.Favorites[0] = "tarot"
	*cp.BirthDate = date.AddDate(1, 0, 0)

	assert.Equal(t, "birth_chart", p.Favorites[0])
	assert.Equal(t, 1990, p.BirthDate.Year())
}

func TestBirthTimeString(t *testing.T) {
	assert.Equal(t, "07:05", BirthTime{Hour: 7, Minute: 5}.String())
	assert.Equal(t, "23:59:30", BirthTime{Hour: 23, Minute: 59, Second: 30}.String())
}
