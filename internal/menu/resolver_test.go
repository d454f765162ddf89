package menu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/astro-bot/internal/domain"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	guards := DefaultGuards()
	catalog, err := LoadDefault(guards)
	require.NoError(t, err)
	return NewResolver(catalog, guards, Options{
		DisplayThreshold: 10,
		MaxFavorites:     3,
		MaxStackDepth:    6,
		Now:              func() time.Time { return testNow },
	})
}

func completeProfile() *domain.UserProfile {
	date := time.Date(1992, 2, 29, 0, 0, 0, 0, time.UTC)
	p := domain.NewUserProfile("1", testNow)
	p.BirthDate = &date
	p.BirthTime = &domain.BirthTime{Hour: 12}
	p.BirthPlace = "London"
	p.ConfirmedAt = &testNow
	return p
}

func premiumProfile() *domain.UserProfile {
	p := completeProfile()
	exp := testNow.Add(24 * time.Hour)
	p.Subscription = domain.Subscription{Tier: domain.TierPremium, Status: domain.SubscriptionActive, ExpiresAt: &exp}
	return p
}

func TestDefaultCatalogLoads(t *testing.T) {
	r := newTestResolver(t)
	c := r.Catalog()

	assert.Equal(t, "root", c.Root())
	assert.True(t, c.Has("western_astrology"))
	assert.Equal(t, []string{"root", "divination", "tarot", "tarot_celtic_cross"}, c.PathTo("tarot_celtic_cross"))

	zodiac, _ := c.Get("zodiac_signs")
	assert.True(t, r.NeedsSearch(zodiac))
	western, _ := c.Get("western_astrology")
	assert.False(t, r.NeedsSearch(western))
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	guards := DefaultGuards()
	testCases := []struct {
		name string
		yaml string
	}{
		{name: "no root", yaml: "nodes: [{id: a, title: A, action: {kind: content, target: x}}]"},
		{name: "duplicate id", yaml: `root: r
nodes:
  - {id: r, title: R, action: {kind: submenu}, children: [a]}
  - {id: a, title: A, action: {kind: content, target: x}}
  - {id: a, title: B, action: {kind: content, target: y}}`},
		{name: "missing child", yaml: `root: r
nodes:
  - {id: r, title: R, action: {kind: submenu}, children: [ghost]}`},
		{name: "unknown guard", yaml: `root: r
nodes:
  - {id: r, title: R, action: {kind: submenu}, children: [a]}
  - {id: a, title: A, guards: [requires_moon], action: {kind: content, target: x}}`},
		{name: "second root", yaml: `root: r
nodes:
  - {id: r, title: R, action: {kind: submenu}, children: [a]}
  - {id: a, title: A, action: {kind: content, target: x}}
  - {id: b, title: B, action: {kind: content, target: y}}`},
		{name: "two parents", yaml: `root: r
nodes:
  - {id: r, title: R, action: {kind: submenu}, children: [s, a]}
  - {id: s, title: S, action: {kind: submenu}, children: [a]}
  - {id: a, title: A, action: {kind: content, target: x}}`},
		{name: "unknown action", yaml: `root: r
nodes:
  - {id: r, title: R, action: {kind: teleport}}`},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), guards)
			assert.Error(t, err)
		})
	}
}

func TestEnter(t *testing.T) {
	r := newTestResolver(t)

	stack, node, err := r.Enter([]string{"root"}, completeProfile(), "western_astrology")
	require.NoError(t, err)
	assert.Equal(t, "western_astrology", node.ID)
	assert.Equal(t, []string{"root", "western_astrology"}, stack)

	stack, _, err = r.Enter(stack, completeProfile(), "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, stack)

	_, _, err = r.Enter(stack, completeProfile(), "nope")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestEnter_PushesNodeAlreadyOnStack(t *testing.T) {
	r := newTestResolver(t)

	stack := []string{"root", "divination", "tarot"}
	got, _, err := r.Enter(stack, nil, "divination")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "divination", "tarot", "divination"}, got)
	assert.Equal(t, []string{"root", "divination", "tarot"}, stack, "input must not be mutated")

	back, err := r.Back(got)
	require.NoError(t, err)
	assert.Equal(t, stack, back)
}

func TestEnter_DepthBoundCollapsesToPath(t *testing.T) {
	r := newTestResolver(t)

	stack := []string{"root", "western_astrology", "vedic_astrology", "numerology", "relationships", "my_account"}
	got, _, err := r.Enter(stack, nil, "tarot")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "divination", "tarot"}, got)
}

func TestEnter_GuardViolationLeavesStackUnchanged(t *testing.T) {
	r := newTestResolver(t)

	free := completeProfile()
	noTime := completeProfile()
	noTime.BirthTime = nil
	noTime.BirthTimeSkipped = true
	incomplete := domain.NewUserProfile("2", testNow)

	testCases := []struct {
		name    string
		profile *domain.UserProfile
		node    string
		guard   string
	}{
		{name: "premium node on free tier", profile: free, node: "solar_return", guard: GuardRequiresPremium},
		{name: "essential node on free tier", profile: free, node: "tarot_three", guard: GuardRequiresEssential},
		{name: "birth time required", profile: noTime, node: "transits", guard: GuardRequiresBirthTime},
		{name: "profile required", profile: incomplete, node: "birth_chart", guard: GuardRequiresProfile},
		{name: "nil profile", profile: nil, node: "kundli", guard: GuardRequiresProfile},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			before := []string{"root", "western_astrology"}
			got, _, err := r.Enter(before, tc.profile, tc.node)

			var v *GuardViolation
			require.ErrorAs(t, err, &v)
			assert.Equal(t, tc.guard, v.Guard)
			assert.NotEmpty(t, v.Reason)
			assert.Equal(t, []string{"root", "western_astrology"}, got)
		})
	}

	_, _, err := r.Enter([]string{"root"}, premiumProfile(), "solar_return")
	assert.NoError(t, err)
}

func TestBackAfterEnterRestoresStack(t *testing.T) {
	r := newTestResolver(t)
	profile := premiumProfile()

	for _, n := range r.Catalog().Nodes() {
		n := n
		if n.ID == r.Catalog().Root() {
			continue
		}
		t.Run(n.ID, func(t *testing.T) {
			befores := [][]string{
				{"root", "my_account"},
				{"root", "western_astrology"},
				{"root", n.ID},
			}
			for _, before := range befores {
				entered, _, err := r.Enter(before, profile, n.ID)
				require.NoError(t, err)
				back, err := r.Back(entered)
				require.NoError(t, err)
				assert.Equal(t, before, back)
			}
		})
	}
}

func TestBack_AtRoot(t *testing.T) {
	r := newTestResolver(t)

	stack, err := r.Back([]string{"root"})
	assert.ErrorIs(t, err, ErrAtRoot)
	assert.Equal(t, []string{"root"}, stack)
}

func TestResolveByFreeText(t *testing.T) {
	r := newTestResolver(t)

	testCases := []struct {
		text string
		want string
	}{
		{text: "Western Astrology", want: "western_astrology"},
		{text: "  western   ASTROLOGY ", want: "western_astrology"},
		{text: "tarot", want: "tarot"},
		{text: "Vedic", want: "vedic_astrology"},
		{text: "celtic", want: "tarot_celtic_cross"},
		{text: "kundali", want: "kundli"},
		{text: "astrology", want: "western_astrology"},
		{text: "scorp", want: "sign_scorpio"},
		{text: "love", want: "love_forecast"},
		{text: "horoscope", want: "daily_horoscope"},
		{text: "premium", want: "subscribe_premium"},
		{text: "romance", want: "love_forecast"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.text, func(t *testing.T) {
			n, err := r.ResolveByFreeText(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, n.ID)
		})
	}

	_, err := r.ResolveByFreeText("qwertyuiop")
	assert.ErrorIs(t, err, ErrNoMatch)
	_, err = r.ResolveByFreeText("")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestRankingPrefersExactThenPrefixThenSubstring(t *testing.T) {
	guards := DefaultGuards()
	catalog, err := Parse([]byte(`root: r
nodes:
  - {id: r, title: R, action: {kind: submenu}, children: [sub, pre, exact, pre2]}
  - {id: sub, title: The Moon Phase, action: {kind: content, target: x}}
  - {id: pre, title: Moon Phase Calendar, action: {kind: content, target: x}}
  - {id: exact, title: Moon Phase, action: {kind: content, target: x}}
  - {id: pre2, title: Moon Phase Diary, action: {kind: content, target: x}}`), guards)
	require.NoError(t, err)
	r := NewResolver(catalog, guards, Options{})

	ranked := r.SearchChildren("r", "moon phase")
	ids := make([]string, len(ranked))
	for i, n := range ranked {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"exact", "pre", "pre2", "sub"}, ids)
}

func TestRankingPrefersTitleOverKeyword(t *testing.T) {
	guards := DefaultGuards()
	catalog, err := Parse([]byte(`root: r
nodes:
  - {id: r, title: R, action: {kind: submenu}, children: [kw, title]}
  - {id: kw, title: Relationships, keywords: [love], action: {kind: content, target: x}}
  - {id: title, title: Love Forecast, action: {kind: content, target: x}}`), guards)
	require.NoError(t, err)
	r := NewResolver(catalog, guards, Options{})

	n, err := r.ResolveByFreeText("love")
	require.NoError(t, err)
	assert.Equal(t, "title", n.ID)

	ranked := r.SearchChildren("r", "love")
	require.Len(t, ranked, 2)
	assert.Equal(t, "title", ranked[0].ID)
	assert.Equal(t, "kw", ranked[1].ID)
}

func TestSearchChildren(t *testing.T) {
	r := newTestResolver(t)

	got := r.SearchChildren("zodiac_signs", "scor")
	require.Len(t, got, 1)
	assert.Equal(t, "sign_scorpio", got[0].ID)

	got = r.SearchChildren("zodiac_signs", "fish")
	require.Len(t, got, 1)
	assert.Equal(t, "sign_pisces", got[0].ID)
}

func TestDisplayThresholdClampedToListRows(t *testing.T) {
	guards := DefaultGuards()
	catalog, err := LoadDefault(guards)
	require.NoError(t, err)

	testCases := []struct {
		name      string
		threshold int
		want      int
	}{
		{name: "default", threshold: 0, want: 10},
		{name: "within limit", threshold: 6, want: 6},
		{name: "above list limit", threshold: 25, want: 10},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			r := NewResolver(catalog, guards, Options{DisplayThreshold: tc.threshold})
			assert.Equal(t, tc.want, r.DisplayThreshold())
		})
	}

	r := NewResolver(catalog, guards, Options{DisplayThreshold: 25})
	signs, ok := catalog.Get("zodiac_signs")
	require.True(t, ok)
	assert.True(t, r.NeedsSearch(signs))
}

func TestBreadcrumbs(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, "Main Menu › Divination › Tarot", r.Breadcrumbs([]string{"root", "divination", "tarot"}))
	assert.Equal(t, "", r.Breadcrumbs(nil))
}

func TestFavorites(t *testing.T) {
	r := newTestResolver(t)

	favs, err := r.AddFavorite(nil, "tarot")
	require.NoError(t, err)
	favs, err = r.AddFavorite(favs, "tarot")
	require.NoError(t, err)
	assert.Equal(t, []string{"tarot"}, favs)

	favs, _ = r.AddFavorite(favs, "kundli")
	favs, _ = r.AddFavorite(favs, "runes")
	_, err = r.AddFavorite(favs, "i_ching")
	assert.ErrorIs(t, err, ErrFavoritesFull)

	_, err = r.AddFavorite(favs, "root")
	assert.ErrorIs(t, err, ErrNotFavoritable)
	_, err = r.AddFavorite(favs, "missing")
	assert.ErrorIs(t, err, ErrUnknownNode)

	favs = r.RemoveFavorite(favs, "kundli")
	assert.Equal(t, []string{"tarot", "runes"}, favs)

	// Favorites go through the same guards as normal entry.
	_, _, err = r.Enter([]string{"root"}, completeProfile(), "tarot_celtic_cross")
	var v *GuardViolation
	assert.ErrorAs(t, err, &v)
}
