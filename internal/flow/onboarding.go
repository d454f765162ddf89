package flow

import (
	"time"

	"github.com/Proton-105/astro-bot/internal/domain"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/session"
)

const dateLayout = "02 Jan 2006"

func (t *turn) onboarding(in message.Intent) error {
	switch in.Kind {
	case message.IntentCommand:
		return t.onboardingCommand(in.Name)
	case message.IntentMenuSelection:
		t.say("onboarding.finish_first")
		return t.prompt()
	}

	switch t.sess.Stage {
	case session.StageAskDate:
		return t.askDate(in.Text)
	case session.StageAskTime:
		return t.askTime(in.Text)
	case session.StageAskPlace:
		return t.askPlace(in.Text)
	case session.StageConfirm:
		return t.confirm(in.Text)
	}
	return internal(session.ErrCorrupt)
}

func (t *turn) onboardingCommand(name string) error {
	switch name {
	case message.CmdHelp:
		t.say("onboarding.help")
		return t.prompt()
	case message.CmdRestart:
		if err := t.sess.StartOnboarding(); err != nil {
			return internal(err)
		}
		t.say("onboarding.restart")
		return t.prompt()
	case message.CmdCancel:
		// Only an update of existing details can be abandoned.
		if t.profile.ProfileComplete() {
			if err := t.sess.EnterIdle(t.e.resolver.Home()); err != nil {
				return internal(err)
			}
			t.say("onboarding.cancelled")
			return t.menu()
		}
	}
	t.say("onboarding.finish_first")
	return t.prompt()
}

func (t *turn) askDate(text string) error {
	date, verr := t.e.validators.Date.Validate(text)
	if verr != nil {
		return t.invalid(verr)
	}
	if err := t.sess.Advance(session.StageAskTime); err != nil {
		return internal(err)
	}
	t.sess.Draft.BirthDate = &date
	return t.prompt()
}

func (t *turn) askTime(text string) error {
	res, verr := t.e.validators.Time.Validate(text)
	if verr != nil {
		return t.invalid(verr)
	}
	if err := t.sess.Advance(session.StageAskPlace); err != nil {
		return internal(err)
	}
	t.sess.Draft.BirthTime = res.Time
	t.sess.Draft.TimeSkipped = res.Skipped
	return t.prompt()
}

func (t *turn) askPlace(text string) error {
	loc, verr, err := t.e.validators.Place.Validate(t.ctx, text)
	if err != nil {
		return unavailable("geocoder", err)
	}
	if verr != nil {
		return t.invalid(verr)
	}
	if err := t.sess.Advance(session.StageConfirm); err != nil {
		return internal(err)
	}

	place := loc.Name
	if loc.Country != "" {
		place += ", " + loc.Country
	}
	lat, lon := loc.Latitude, loc.Longitude
	t.sess.Draft.PlaceName = place
	t.sess.Draft.Latitude = &lat
	t.sess.Draft.Longitude = &lon
	t.sess.Draft.Timezone = loc.Timezone
	return t.prompt()
}

func (t *turn) confirm(text string) error {
	yes, verr := t.e.validators.Confirm.Validate(text)
	if verr != nil {
		return t.invalid(verr)
	}

	if !yes {
		if err := t.sess.StartOnboarding(); err != nil {
			return internal(err)
		}
		t.say("onboarding.restart")
		return t.prompt()
	}

	// A confirmed draft with a missing field restarts collection instead of
	// saving a partial profile.
	if !draftComplete(t.sess.Draft) {
		if err := t.sess.StartOnboarding(); err != nil {
			return internal(err)
		}
		t.say("onboarding.start_over")
		return t.prompt()
	}

	t.commitDraft()
	if err := t.sess.EnterIdle(t.e.resolver.Home()); err != nil {
		return internal(err)
	}
	t.say("onboarding.complete")
	return t.menu()
}

func draftComplete(d session.Draft) bool {
	return d.BirthDate != nil && d.PlaceName != "" && (d.BirthTime != nil || d.TimeSkipped)
}

func (t *turn) commitDraft() {
	d := t.sess.Draft
	p := t.profile

	date := *d.BirthDate
	p.BirthDate = &date
	p.BirthTime = nil
	if d.BirthTime != nil {
		bt := *d.BirthTime
		p.BirthTime = &bt
	}
	p.BirthTimeSkipped = d.TimeSkipped
	p.BirthPlace = d.PlaceName
	p.Latitude = d.Latitude
	p.Longitude = d.Longitude
	p.Timezone = d.Timezone
	confirmed := t.now
	p.ConfirmedAt = &confirmed

	t.sess.Draft = session.Draft{}
	t.profileDirty = true
}

// prompt asks for the current onboarding stage's field.
func (t *turn) prompt() error {
	d := t.sess.Draft
	switch t.sess.Stage {
	case session.StageAskTime:
		t.resp.Add(message.Payload{
			Type:    message.PayloadButton,
			Body:    t.tr.Tf("onboarding.ask_time", "date", formatDate(d.BirthDate)),
			Buttons: []message.Button{{ID: message.TextID("skip"), Title: t.tr.T("button.skip")}},
		})
	case session.StageAskPlace:
		t.say("onboarding.ask_place")
	case session.StageConfirm:
		t.resp.Add(message.Payload{
			Type: message.PayloadButton,
			Body: t.tr.Tf("onboarding.confirm",
				"date", formatDate(d.BirthDate),
				"time", t.formatTime(d.BirthTime),
				"place", d.PlaceName,
				"timezone", d.Timezone,
			),
			Buttons: t.yesNo(),
		})
	default:
		t.say("onboarding.ask_date")
	}
	return nil
}

func (t *turn) yesNo() []message.Button {
	return []message.Button{
		{ID: message.TextID("yes"), Title: t.tr.T("button.yes")},
		{ID: message.TextID("no"), Title: t.tr.T("button.no")},
	}
}

func formatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(dateLayout)
}

func (t *turn) formatTime(bt *domain.BirthTime) string {
	if bt == nil {
		return t.tr.T("onboarding.time_unknown")
	}
	return bt.String()
}
