package menu

import (
	"fmt"
	"sort"
	"time"

	"github.com/Proton-105/astro-bot/internal/domain"
)

// Guard names used by the catalog.
const (
	GuardRequiresProfile   = "requires_profile"
	GuardRequiresBirthTime = "requires_birth_time"
	GuardRequiresEssential = "requires_essential"
	GuardRequiresPremium   = "requires_premium"
)

// GuardFunc returns false with a reason key when the profile may not enter.
type GuardFunc func(p *domain.UserProfile, now time.Time) (reason string, ok bool)

// GuardViolation is returned when a guard predicate fails.
type GuardViolation struct {
	NodeID string
	Guard  string
	// Reason is the i18n key of the user-facing explanation.
	Reason string
}

func (v *GuardViolation) Error() string {
	return fmt.Sprintf("menu: guard %s denied entry to %s", v.Guard, v.NodeID)
}

// GuardRegistry maps guard names to predicates.
type GuardRegistry struct {
	guards map[string]GuardFunc
}

// NewGuardRegistry returns an empty registry.
func NewGuardRegistry() *GuardRegistry {
	return &GuardRegistry{guards: make(map[string]GuardFunc)}
}

// DefaultGuards returns the registry with the built-in profile and tier guards.
func DefaultGuards() *GuardRegistry {
	r := NewGuardRegistry()
	r.Register(GuardRequiresProfile, func(p *domain.UserProfile, _ time.Time) (string, bool) {
		return "guard.requires_profile", p.ProfileComplete()
	})
	r.Register(GuardRequiresBirthTime, func(p *domain.UserProfile, _ time.Time) (string, bool) {
		return "guard.requires_birth_time", p.HasBirthTime()
	})
	r.Register(GuardRequiresEssential, tierGuard(domain.TierEssential, "guard.requires_essential"))
	r.Register(GuardRequiresPremium, tierGuard(domain.TierPremium, "guard.requires_premium"))
	return r
}

func tierGuard(minTier domain.Tier, reason string) GuardFunc {
	return func(p *domain.UserProfile, now time.Time) (string, bool) {
		if p == nil {
			return reason, false
		}
		return reason, p.Subscription.ActiveTier(now).Rank() >= minTier.Rank()
	}
}

// Register adds or replaces a guard.
func (r *GuardRegistry) Register(name string, fn GuardFunc) {
	r.guards[name] = fn
}

// Has reports whether name is registered.
func (r *GuardRegistry) Has(name string) bool {
	_, ok := r.guards[name]
	return ok
}

// Names lists registered guards.
func (r *GuardRegistry) Names() []string {
	names := make([]string, 0, len(r.guards))
	for name := range r.guards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check evaluates the node's guards in declaration order and returns the first violation.
func (r *GuardRegistry) Check(n *Node, p *domain.UserProfile, now time.Time) *GuardViolation {
	for _, name := range n.Guards {
		fn, ok := r.guards[name]
		if !ok {
			return &GuardViolation{NodeID: n.ID, Guard: name, Reason: "guard.unavailable"}
		}
		if reason, allowed := fn(p, now); !allowed {
			return &GuardViolation{NodeID: n.ID, Guard: name, Reason: reason}
		}
	}
	return nil
}
