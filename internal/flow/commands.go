package flow

import (
	"errors"

	"github.com/Proton-105/astro-bot/internal/collaborator"
	"github.com/Proton-105/astro-bot/internal/domain"
	"github.com/Proton-105/astro-bot/internal/menu"
	"github.com/Proton-105/astro-bot/internal/message"
)

// Command names used by catalog command nodes.
const (
	CmdViewProfile        = "view_profile"
	CmdUpdateBirthData    = "update_birth_data"
	CmdSubscribe          = "subscribe"
	CmdSubscriptionStatus = "subscription_status"
	CmdLanguage           = "language"
)

const expiryLayout = "02 Jan 2006"

type commandFunc func(t *turn, arg string) error

func defaultCommands() map[string]commandFunc {
	return map[string]commandFunc{
		message.CmdBack:        (*turn).back,
		message.CmdHome:        (*turn).home,
		message.CmdRestart:     (*turn).home,
		message.CmdHelp:        (*turn).help,
		message.CmdFavorites:   (*turn).favorites,
		message.CmdFavAdd:      (*turn).addFavorite,
		message.CmdFavRemove:   (*turn).removeFavorite,
		message.CmdCancel:      (*turn).cancel,
		message.CmdSearchAgain: (*turn).searchAgain,
		CmdViewProfile:         (*turn).viewProfile,
		CmdUpdateBirthData:     (*turn).updateBirthData,
		CmdSubscribe:           (*turn).subscribe,
		CmdSubscriptionStatus:  (*turn).subscriptionStatus,
		CmdLanguage:            (*turn).language,
	}
}

func (t *turn) command(name, arg string) error {
	fn, ok := t.e.commands[name]
	if !ok {
		return t.unrecognized("command " + name)
	}
	return fn(t, arg)
}

func (t *turn) back(string) error {
	stack, err := t.e.resolver.Back(t.stack())
	if errors.Is(err, menu.ErrAtRoot) {
		t.say("menu.at_root")
	}
	t.sess.SetStack(stack)
	t.sess.EndSearch()
	return t.menu()
}

func (t *turn) home(string) error {
	t.sess.SetStack(t.e.resolver.Home())
	t.sess.EndSearch()
	return t.menu()
}

func (t *turn) help(string) error {
	t.say("help.idle")
	return t.menu()
}

func (t *turn) favorites(string) error {
	nodes := t.e.resolver.ValidFavorites(t.profile.Favorites)
	if len(nodes) != len(t.profile.Favorites) {
		ids := make([]string, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		t.profile.Favorites = ids
		t.profileDirty = true
	}

	if len(nodes) == 0 {
		t.say("favorites.empty")
		return t.menu()
	}

	t.resp.Add(message.Payload{
		Type:     message.PayloadList,
		Header:   t.tr.T("favorites.title"),
		Body:     t.tr.T("menu.choose"),
		Button:   t.tr.T("menu.choose"),
		Sections: []message.Section{{Rows: nodeRows(nodes)}},
	})
	return nil
}

// addFavorite saves arg, or the current menu when arg is empty.
func (t *turn) addFavorite(arg string) error {
	id := arg
	if id == "" {
		id = t.sess.CurrentMenu
	}

	favs, err := t.e.resolver.AddFavorite(t.profile.Favorites, id)
	switch {
	case errors.Is(err, menu.ErrFavoritesFull):
		t.say("favorites.full")
	case err != nil:
		t.say("favorites.invalid")
	default:
		t.profile.Favorites = favs
		t.profileDirty = true
		n, _ := t.e.resolver.Catalog().Get(id)
		t.sayf("favorites.added", "title", n.Title)
	}
	return t.menu()
}

func (t *turn) removeFavorite(arg string) error {
	if !t.profile.IsFavorite(arg) {
		t.say("favorites.invalid")
		return t.favorites("")
	}
	t.profile.Favorites = t.e.resolver.RemoveFavorite(t.profile.Favorites, arg)
	t.profileDirty = true

	title := arg
	if n, ok := t.e.resolver.Catalog().Get(arg); ok {
		title = n.Title
	}
	t.sayf("favorites.removed", "title", title)
	return t.favorites("")
}

func (t *turn) cancel(string) error {
	if t.sess.SearchNode == "" {
		t.say("command.nothing_to_cancel")
		return t.menu()
	}
	t.sess.EndSearch()
	t.say("flow.cancelled")
	return t.back("")
}

func (t *turn) searchAgain(string) error {
	if n, ok := t.e.resolver.Catalog().Get(t.sess.CurrentMenu); ok && t.e.resolver.NeedsSearch(n) {
		t.sess.BeginSearch()
	}
	return t.menu()
}

func (t *turn) viewProfile(string) error {
	p := t.profile
	if !p.ProfileComplete() {
		t.say("profile.incomplete")
		return t.menu()
	}
	t.sayf("profile.summary",
		"date", formatDate(p.BirthDate),
		"time", t.formatTime(p.BirthTime),
		"place", p.BirthPlace,
		"timezone", p.Timezone,
		"tier", string(p.Subscription.ActiveTier(t.now)),
	)
	return t.menu()
}

func (t *turn) updateBirthData(string) error {
	if err := t.sess.StartOnboarding(); err != nil {
		return internal(err)
	}
	t.say("onboarding.update_intro")
	return t.prompt()
}

// subscribe charges the plan for arg. Charges are never retried, so a decline
// or outage leaves the subscription unchanged.
func (t *turn) subscribe(arg string) error {
	tier := domain.Tier(arg)
	plan, ok := t.e.plans.Plan(tier)
	if !ok {
		t.say("subscription.unknown_plan")
		return t.menu()
	}

	if t.profile.Subscription.ActiveTier(t.now).Rank() >= tier.Rank() {
		t.sayf("subscription.already", "tier", string(tier))
		return t.menu()
	}

	receipt, err := t.e.payments.Charge(t.ctx, t.profile, plan)
	switch {
	case errors.Is(err, collaborator.ErrDeclined):
		t.say("subscription.declined")
		return t.menu()
	case err != nil:
		return unavailable("payment", err)
	}

	expires := receipt.ExpiresAt
	t.profile.Subscription = domain.Subscription{
		Tier:          plan.Tier,
		Status:        domain.SubscriptionActive,
		ExpiresAt:     &expires,
		TransactionID: receipt.TransactionID,
	}
	t.profileDirty = true

	t.sayf("subscription.success",
		"tier", string(plan.Tier),
		"expires", expires.Format(expiryLayout),
		"transaction", receipt.TransactionID,
	)
	return t.menu()
}

func (t *turn) subscriptionStatus(string) error {
	sub := t.profile.Subscription
	tier := sub.ActiveTier(t.now)
	if tier == domain.TierFree {
		t.say("subscription.status_free")
		return t.menu()
	}

	expires := ""
	if sub.ExpiresAt != nil {
		expires = sub.ExpiresAt.Format(expiryLayout)
	}
	t.sayf("subscription.status", "tier", string(tier), "expires", expires)
	return t.menu()
}

func (t *turn) language(arg string) error {
	if !t.e.i18n.Supports(arg) {
		t.say("language.unsupported")
		return t.menu()
	}
	t.profile.Language = arg
	t.profileDirty = true
	t.tr = t.e.i18n.Translator(arg)
	t.say("language.changed")
	return t.menu()
}
