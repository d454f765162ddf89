package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Proton-105/astro-bot/internal/collaborator"
	"github.com/Proton-105/astro-bot/internal/domain"
	apperrors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/flow"
	"github.com/Proton-105/astro-bot/internal/geo"
	"github.com/Proton-105/astro-bot/internal/i18n"
	"github.com/Proton-105/astro-bot/internal/idempotency"
	"github.com/Proton-105/astro-bot/internal/menu"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/middleware"
	"github.com/Proton-105/astro-bot/internal/ratelimit"
	"github.com/Proton-105/astro-bot/internal/repository"
	"github.com/Proton-105/astro-bot/internal/session"
	"github.com/Proton-105/astro-bot/internal/user"
	"github.com/Proton-105/astro-bot/internal/validation"
	"github.com/Proton-105/astro-bot/pkg/config"
	"github.com/Proton-105/astro-bot/pkg/logger"
)

const phone = "+919800000001"

var epoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type delivery struct {
	channel string
	to      string
	resp    *message.Response
}

type recorder struct {
	mu  sync.Mutex
	out []delivery
}

func (r *recorder) Deliver(_ context.Context, channel, to string, resp *message.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, delivery{channel: channel, to: to, resp: resp})
	return nil
}

func (r *recorder) all() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.out...)
}

type world struct {
	engine *flow.Engine
	store  *session.MemoryStore
	tr     *i18n.Manager
}

func newWorld(t *testing.T) *world {
	t.Helper()

	now := func() time.Time { return epoch }
	log := logger.Nop()

	guards := menu.DefaultGuards()
	catalog := menu.MustLoadDefault(guards)
	store := session.NewMemoryStore()
	sessions := session.NewManager(store, session.Options{
		TTL:           30 * time.Minute,
		MaxStackDepth: 12,
		KnownNode:     catalog.Has,
		Logger:        log,
		Now:           now,
	})

	content, err := collaborator.NewTemplateContent(now)
	require.NoError(t, err)
	tr, err := i18n.Load("en")
	require.NoError(t, err)

	engine := flow.New(flow.Deps{
		Sessions:   sessions,
		Users:      user.NewService(repository.NewMemoryRepository(), log, now),
		Resolver:   menu.NewResolver(catalog, guards, menu.Options{Now: now}),
		Validators: validation.NewPipeline(geo.NewGazetteer(), now),
		Content:    content,
		Payments:   collaborator.NewSandboxPayment(now),
		Plans: collaborator.PlanCatalog{
			Currency: "INR",
			Prices:   map[domain.Tier]int64{domain.TierEssential: 19900, domain.TierPremium: 49900},
			Period:   30 * 24 * time.Hour,
		},
		I18n:   tr,
		Errors: apperrors.NewHandler(log, false),
		Logger: log,
	}, flow.Options{Now: now})

	return &world{engine: engine, store: store, tr: tr}
}

func (w *world) session(t *testing.T) *session.Session {
	t.Helper()
	s, err := w.store.Load(context.Background(), phone)
	require.NoError(t, err)
	return s
}

func (w *world) onboard() {
	for i, in := range []string{"hi", "29021992", "1200", "London, UK", "Yes"} {
		env := message.NewTextEnvelope(fmt.Sprintf("onboard.%d", i), phone, in)
		w.engine.Handle(context.Background(), phone, message.Normalize(env))
	}
}

func (w *world) bot(out Deliverer, extra Deps) *Bot {
	extra.Engine = w.engine
	extra.Output = out
	extra.I18n = w.tr
	extra.Logger = logger.Nop()
	return New(extra, Options{TurnTimeout: 5 * time.Second})
}

func TestBot_RapidMessagesMatchSequentialProcessing(t *testing.T) {
	defer goleak.VerifyNone(t)

	inputs := []string{"Main Menu", "Western Astrology"}

	sequential := newWorld(t)
	sequential.onboard()
	var want []string
	for i, in := range inputs {
		env := message.NewTextEnvelope(fmt.Sprintf("wamid.%d", i), phone, in)
		resp := sequential.engine.Handle(context.Background(), phone, message.Normalize(env))
		want = append(want, resp.PlainText())
	}

	rapid := newWorld(t)
	rapid.onboard()
	out := &recorder{}
	b := rapid.bot(out, Deps{Dedupe: idempotency.NewManager(idempotency.NewMemoryStore(), logger.Nop())})
	for i, in := range inputs {
		require.NoError(t, b.Submit(message.NewTextEnvelope(fmt.Sprintf("wamid.%d", i), phone, in)))
	}
	require.NoError(t, b.Stop(context.Background()))

	if diff := cmp.Diff(sequential.session(t), rapid.session(t)); diff != "" {
		t.Fatalf("session mismatch (-sequential +rapid):\n%s", diff)
	}
	assert.Equal(t, []string{"root", "western_astrology"}, rapid.session(t).NavStack)

	got := out.all()
	require.Len(t, got, len(inputs))
	for i, d := range got {
		assert.Equal(t, phone, d.to)
		assert.Equal(t, want[i], d.resp.PlainText())
	}
}

func TestBot_RedeliveredMessageAppliesOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newWorld(t)
	out := &recorder{}
	b := w.bot(out, Deps{Dedupe: idempotency.NewManager(idempotency.NewMemoryStore(), logger.Nop())})

	env := message.NewTextEnvelope("wamid.same", phone, "hi")
	require.NoError(t, b.Submit(env))
	require.NoError(t, b.Submit(env))
	require.NoError(t, b.Stop(context.Background()))

	assert.EqualValues(t, 1, w.session(t).Version)
	assert.Len(t, out.all(), 1)
}

func TestBot_RateLimitedMessageGetsReply(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newWorld(t)
	out := &recorder{}
	rules := ratelimit.NewRules(config.RateLimitConfig{
		Enabled: true,
		PerUser: config.RateLimitRule{Limit: 1, Window: "1m"},
	})
	limiter := ratelimit.NewMemoryLimiter(logger.Nop(), func() time.Time { return epoch })
	b := w.bot(out, Deps{RateLimit: middleware.NewRateLimitMiddleware(limiter, rules, logger.Nop())})

	require.NoError(t, b.Submit(message.NewTextEnvelope("m1", phone, "hi")))
	require.NoError(t, b.Submit(message.NewTextEnvelope("m2", phone, "29021992")))
	require.NoError(t, b.Stop(context.Background()))

	got := out.all()
	require.Len(t, got, 2)
	assert.Contains(t, got[1].resp.PlainText(), "too quickly")
	// The rejected message never reached the engine.
	assert.EqualValues(t, 1, w.session(t).Version)
}

type panicEngine struct{}

func (panicEngine) Handle(context.Context, string, message.Intent) *message.Response {
	panic("engine exploded")
}

func TestBot_PanicBecomesApology(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr, err := i18n.Load("en")
	require.NoError(t, err)
	out := &recorder{}
	b := New(Deps{Engine: panicEngine{}, Output: out, I18n: tr, Logger: logger.Nop()}, Options{})

	require.NoError(t, b.Submit(message.NewTextEnvelope("m1", phone, "hi")))
	require.NoError(t, b.Stop(context.Background()))

	got := out.all()
	require.Len(t, got, 1)
	assert.Contains(t, got[0].resp.PlainText(), "something went wrong")
}

func TestRouter_NoReplyForSilentTurn(t *testing.T) {
	out := &recorder{}
	r := NewRouter(func(context.Context, *message.Envelope) (*message.Response, error) {
		return nil, nil
	}, out, logger.Nop())

	require.NoError(t, r.Route(context.Background(), message.NewTextEnvelope("m1", phone, "hi")))
	assert.Empty(t, out.all())
}
