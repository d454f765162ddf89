package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/astro-bot/internal/domain"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/repository"
	"github.com/Proton-105/astro-bot/internal/session"
)

func TestCompatibilityFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.onboard(t, phone)

	h.text(phone, "Relationships")
	resp := h.text(phone, "Compatibility")
	assert.Contains(t, resp.PlainText(), "Essential plan")
	assert.Equal(t, []string{"root", "relationships"}, h.session(t, phone).NavStack)

	h.setTier(t, phone, domain.TierEssential)

	resp = h.text(phone, "Compatibility")
	assert.Contains(t, resp.PlainText(), "partner's first name")
	sess := h.session(t, phone)
	require.Equal(t, session.ModeAwaitingInput, sess.Mode)
	assert.Equal(t, FlowCompatibility, sess.Flow.ID)
	assert.Equal(t, 0, sess.Flow.Step)

	resp = h.text(phone, "Priya")
	assert.Contains(t, resp.PlainText(), "Priya's date of birth")

	resp = h.text(phone, "31021993")
	assert.Contains(t, resp.PlainText(), "day")
	assert.Equal(t, 1, h.session(t, phone).Flow.Step)

	resp = h.text(phone, "15081993")
	assert.Contains(t, resp.PlainText(), "Priya's time of birth")

	resp = h.text(phone, "skip")
	assert.Contains(t, resp.PlainText(), "Priya")

	sess = h.session(t, phone)
	assert.Equal(t, session.ModeIdle, sess.Mode)
	assert.Nil(t, sess.Flow)
	assert.Equal(t, []string{"root", "relationships"}, sess.NavStack)
	assert.Equal(t, []string{"compatibility"}, h.profile(t, phone).RecentHistory)
}

func TestNameNumerologyFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.onboard(t, phone)

	h.text(phone, "Numerology")
	resp := h.text(phone, "Name Numerology")
	assert.Contains(t, resp.PlainText(), "full name")

	resp = h.text(phone, "R2-D2")
	assert.Contains(t, resp.PlainText(), "only contain letters")
	assert.Equal(t, session.ModeAwaitingInput, h.session(t, phone).Mode)

	resp = h.text(phone, "  Asha   Rao ")
	assert.Contains(t, resp.PlainText(), "Asha Rao")
	assert.Equal(t, session.ModeIdle, h.session(t, phone).Mode)
	assert.Equal(t, []string{"root", "numerology"}, h.session(t, phone).NavStack)
}

func TestGuidedFlow_Exits(t *testing.T) {
	testCases := []struct {
		name      string
		intent    message.Intent
		wantStack []string
		wantText  string
	}{
		{name: "cancel", intent: message.Command(message.CmdCancel, ""), wantStack: []string{"root", "numerology"}, wantText: "Cancelled"},
		{name: "back", intent: message.Command(message.CmdBack, ""), wantStack: []string{"root", "numerology"}, wantText: "Cancelled"},
		{name: "home", intent: message.Command(message.CmdHome, ""), wantStack: []string{"root"}, wantText: "Main Menu"},
		{name: "menu selection", intent: message.MenuSelection("divination"), wantStack: []string{"root", "numerology", "divination"}, wantText: "Divination"},
		{name: "help stays", intent: message.Command(message.CmdHelp, ""), wantText: "full name"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.onboard(t, phone)
			h.text(phone, "Numerology")
			h.text(phone, "Name Numerology")

			resp := h.intent(phone, tc.intent)
			assert.Contains(t, resp.PlainText(), tc.wantText)

			sess := h.session(t, phone)
			if tc.wantStack == nil {
				assert.Equal(t, session.ModeAwaitingInput, sess.Mode)
				return
			}
			assert.Equal(t, session.ModeIdle, sess.Mode)
			assert.Equal(t, tc.wantStack, sess.NavStack)
		})
	}
}

func TestDeleteDataFlow(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		h := newHarness(t, nil)
		h.onboard(t, phone)
		h.text(phone, "My Account")
		h.text(phone, "Delete My Data")

		resp := h.text(phone, "yes")
		assert.Contains(t, resp.PlainText(), "has been deleted")

		_, err := h.repo.Get(context.Background(), phone)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = h.store.Load(context.Background(), phone)
		assert.ErrorIs(t, err, session.ErrNotFound)

		resp = h.text(phone, "hi")
		assert.Contains(t, resp.PlainText(), "date of birth")
	})

	t.Run("kept", func(t *testing.T) {
		h := newHarness(t, nil)
		h.onboard(t, phone)
		h.text(phone, "My Account")
		h.text(phone, "Delete My Data")

		resp := h.text(phone, "no")
		assert.Contains(t, resp.PlainText(), "has been kept")
		assert.True(t, h.profile(t, phone).ProfileComplete())
		assert.Equal(t, []string{"root", "my_account"}, h.session(t, phone).NavStack)
	})
}
