package flow

import (
	"context"
	"errors"
	"time"

	"github.com/Proton-105/astro-bot/internal/domain"
	apperrors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/i18n"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/session"
	"github.com/Proton-105/astro-bot/internal/validation"
)

// turn is the working state of one Handle call. It lives inside the session
// manager's critical section and is discarded afterwards.
type turn struct {
	e       *Engine
	ctx     context.Context
	sess    *session.Session
	profile *domain.UserProfile
	tr      i18n.Translator
	resp    *message.Response
	now     time.Time

	profileDirty bool
	deleted      bool
}

// run dispatches on the session mode. Only collaborator outages and internal
// failures are returned; every other outcome is already a reply.
func (t *turn) run(in message.Intent) error {
	switch t.sess.Mode {
	case session.ModeFresh:
		return t.fresh(in)
	case session.ModeError:
		return t.resume()
	case session.ModeOnboarding:
		return t.onboarding(in)
	case session.ModeAwaitingInput:
		return t.guided(in)
	default:
		return t.idle(in)
	}
}

// fresh starts a new session: onboarding for unknown users, the root menu for
// users whose profile is already complete.
func (t *turn) fresh(in message.Intent) error {
	if !t.profile.ProfileComplete() {
		if err := t.sess.StartOnboarding(); err != nil {
			return apperrors.NewInternalError(err)
		}
		t.say("onboarding.welcome")
		return t.prompt()
	}

	if err := t.sess.EnterIdle(t.e.resolver.Home()); err != nil {
		return apperrors.NewInternalError(err)
	}
	if in.Kind == message.IntentFreeText {
		if _, err := t.e.resolver.ResolveByFreeText(in.Text); err != nil {
			t.say("onboarding.welcome_back")
			return t.menu()
		}
	}
	return t.idle(in)
}

func (t *turn) resume() error {
	t.say("error.recovered")
	if t.profile.ProfileComplete() {
		if err := t.sess.EnterIdle(t.e.resolver.Home()); err != nil {
			return apperrors.NewInternalError(err)
		}
		return t.menu()
	}
	if err := t.sess.StartOnboarding(); err != nil {
		return apperrors.NewInternalError(err)
	}
	return t.prompt()
}

// commit flushes queued notifications and persists the profile when it changed.
func (t *turn) commit() error {
	if t.deleted {
		return nil
	}

	if t.sess.Mode == session.ModeIdle && len(t.profile.PendingNotifications) > 0 {
		pending := t.profile.DrainNotifications()
		notes := make([]message.Payload, 0, len(pending))
		for _, n := range pending {
			notes = append(notes, message.Payload{
				Type: message.PayloadText,
				Body: t.tr.Tf("notification.prefix", "text", n.Text),
			})
		}
		t.resp.Prepend(notes...)
		t.profileDirty = true
	}

	if !t.profileDirty {
		return nil
	}
	if err := t.e.users.Save(t.ctx, t.profile); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// fail replaces the reply after an internal error.
func (t *turn) fail(err error) {
	key, _ := t.e.errors.Handle(t.ctx, err)
	t.resp = &message.Response{}
	t.say(key)
}

func (t *turn) say(key string) {
	t.resp.Text(t.tr.T(key))
}

func (t *turn) sayf(key string, pairs ...string) {
	t.resp.Text(t.tr.Tf(key, pairs...))
}

// report logs err through the error handler and says its user message.
func (t *turn) report(err error, pairs ...string) {
	key, _ := t.e.errors.Handle(t.ctx, err)
	t.sayf(key, pairs...)
}

// invalid turns a field error into the correction prompt; the stage is unchanged.
func (t *turn) invalid(verr *validation.ValidationError) error {
	key, _ := t.e.errors.Handle(t.ctx, apperrors.NewValidationError(verr.Error(), verr.MessageKey()))
	msg := t.tr.Tf(key, "input", verr.Input)
	if verr.Suggestion != "" {
		msg += "\n" + t.tr.Tf("validation.suggestion", "suggestion", verr.Suggestion)
	}
	t.resp.Text(msg)
	return nil
}

// unrecognized answers input the current state cannot interpret, with the menu as a reminder.
func (t *turn) unrecognized(detail string) error {
	t.report(apperrors.NewUnrecognizedInput(detail))
	return t.menu()
}

// unavailable wraps a collaborator failure that is not already classified.
func unavailable(name string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewCollaboratorUnavailable(name, err)
}

func internal(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.NewInternalError(err)
}
