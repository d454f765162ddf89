// Package flow is the per-turn orchestrator. It decides whether a turn continues
// onboarding, navigates the menu, runs a guided flow or calls a collaborator,
// and always produces a reply.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Proton-105/astro-bot/internal/collaborator"
	"github.com/Proton-105/astro-bot/internal/domain"
	apperrors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/i18n"
	"github.com/Proton-105/astro-bot/internal/menu"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/session"
	"github.com/Proton-105/astro-bot/internal/user"
	"github.com/Proton-105/astro-bot/internal/validation"
)

const (
	defaultMaxRecent = 10
	// touchInterval bounds how stale LastActiveAt may get before an otherwise
	// read-only turn writes the profile.
	touchInterval = time.Hour
)

// Deps are the collaborators the engine orchestrates.
type Deps struct {
	Sessions   *session.Manager
	Users      *user.Service
	Resolver   *menu.Resolver
	Validators *validation.Pipeline
	Content    collaborator.ContentService
	Payments   collaborator.PaymentService
	Plans      collaborator.PlanCatalog
	I18n       *i18n.Manager
	Errors     *apperrors.Handler
	Logger     *slog.Logger
}

type Options struct {
	MaxRecent int
	Now       func() time.Time
}

// Engine handles one turn at a time per phone; serialization is provided by the
// session manager.
type Engine struct {
	sessions   *session.Manager
	users      *user.Service
	resolver   *menu.Resolver
	validators *validation.Pipeline
	content    collaborator.ContentService
	payments   collaborator.PaymentService
	plans      collaborator.PlanCatalog
	i18n       *i18n.Manager
	errors     *apperrors.Handler
	log        *slog.Logger

	maxRecent int
	now       func() time.Time

	commands map[string]commandFunc
	flows    map[string]*guidedFlow
}

func New(deps Deps, opts Options) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Errors == nil {
		deps.Errors = apperrors.NewHandler(deps.Logger, false)
	}
	if opts.MaxRecent <= 0 {
		opts.MaxRecent = defaultMaxRecent
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		sessions:   deps.Sessions,
		users:      deps.Users,
		resolver:   deps.Resolver,
		validators: deps.Validators,
		content:    deps.Content,
		payments:   deps.Payments,
		plans:      deps.Plans,
		i18n:       deps.I18n,
		errors:     deps.Errors,
		log:        deps.Logger,
		maxRecent:  opts.MaxRecent,
		now:        opts.Now,
	}
	e.commands = defaultCommands()
	e.flows = defaultFlows()
	return e
}

// Handle runs one turn for phone and returns the reply. It never fails: every
// error is resolved to a user-visible message.
func (e *Engine) Handle(ctx context.Context, phone string, in message.Intent) *message.Response {
	var t *turn
	var from string

	sess, err := e.sessions.Update(ctx, phone, func(s *session.Session) error {
		from = s.Label()

		profile, created, err := e.users.GetOrCreate(ctx, phone)
		if err != nil {
			return apperrors.NewInternalError(err)
		}

		t = e.newTurn(ctx, s, profile)
		t.profileDirty = created || t.now.Sub(profile.LastActiveAt) > touchInterval

		before := s.Clone()
		if err := t.run(in); err != nil {
			if apperrors.KindOf(err) != apperrors.KindInternal {
				return err
			}
			// Keep the failed turn's Error mode so the next turn recovers.
			*s = *before
			s.Fail()
			t.fail(err)
			return nil
		}
		return t.commit()
	})
	if err != nil {
		return e.failure(ctx, t, err)
	}

	if t.deleted {
		if err := e.sessions.Delete(ctx, phone); err != nil {
			e.log.Warn("failed to delete session after data deletion", "phone", phone, "error", err)
		}
	}

	e.log.DebugContext(ctx, "turn handled",
		slog.String("phone", phone),
		slog.String("intent", in.String()),
		slog.String("from", from),
		slog.String("to", sess.Label()),
	)
	return t.resp
}

// failure builds the reply for a turn whose state was left untouched.
func (e *Engine) failure(ctx context.Context, t *turn, err error) *message.Response {
	switch {
	case errors.Is(err, session.ErrLockTimeout):
		err = apperrors.NewCollaboratorUnavailable("session_lock", err)
	case errors.Is(err, context.DeadlineExceeded):
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			err = apperrors.NewCollaboratorUnavailable("session_store", err)
		}
	}

	tr := e.i18n.Translator("")
	if t != nil {
		tr = t.tr
	}

	key, _ := e.errors.Handle(ctx, err)
	resp := &message.Response{}
	resp.Text(tr.T(key))
	return resp
}

func (e *Engine) newTurn(ctx context.Context, s *session.Session, profile *domain.UserProfile) *turn {
	return &turn{
		e:       e,
		ctx:     ctx,
		sess:    s,
		profile: profile,
		tr:      e.i18n.Translator(profile.Language),
		resp:    &message.Response{},
		now:     e.now().UTC(),
	}
}
