package output

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/pkg/logger"
)

func TestWhatsAppSender_Send(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	t.Cleanup(srv.Close)

	s := NewWhatsAppSender(WhatsAppConfig{APIURL: srv.URL + "/v19.0", PhoneNumberID: "123", AccessToken: "tok"}, logger.Nop())
	p := message.Payload{
		Type:    message.PayloadButton,
		Body:    "Is this correct?",
		Buttons: []message.Button{{ID: message.TextID("yes"), Title: "Yes"}, {ID: message.TextID("no"), Title: "No"}},
	}

	require.NoError(t, s.Send(context.Background(), "+919800000001", p))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/v19.0/123/messages", gotPath)
	assert.Equal(t, "919800000001", gotBody["to"])
	assert.Equal(t, "interactive", gotBody["type"])

	interactive := gotBody["interactive"].(map[string]any)
	assert.Equal(t, "button", interactive["type"])
	buttons := interactive["action"].(map[string]any)["buttons"].([]any)
	require.Len(t, buttons, 2)
	assert.Equal(t, "txt:yes", buttons[0].(map[string]any)["reply"].(map[string]any)["id"])
}

func TestWhatsAppSender_EncodeList(t *testing.T) {
	s := NewWhatsAppSender(WhatsAppConfig{APIURL: "http://x", PhoneNumberID: "1"}, logger.Nop())
	msg := s.encode("+1", message.Payload{
		Type:   message.PayloadList,
		Header: "Main Menu",
		Body:   "Pick one",
		Footer: "Type back any time",
		Button: "Choose",
		Sections: []message.Section{{Rows: []message.Row{
			{ID: message.NavID("numerology"), Title: "Numerology", Description: "Numbers"},
		}}},
	})

	require.NotNil(t, msg.Interactive)
	assert.Equal(t, "list", msg.Interactive.Type)
	assert.Equal(t, "Main Menu", msg.Interactive.Header.Text)
	assert.Equal(t, "Choose", msg.Interactive.Action.Button)
	assert.Equal(t, "nav:numerology", msg.Interactive.Action.Sections[0].Rows[0].ID)

	text := s.encode("+1", message.Payload{Type: message.PayloadText, Body: "hi"})
	assert.Equal(t, "text", text.Type)
	assert.Nil(t, text.Interactive)
}

func TestWhatsAppSender_ErrorClassification(t *testing.T) {
	testCases := []struct {
		name          string
		status        int
		wantPermanent bool
	}{
		{name: "bad request", status: http.StatusBadRequest, wantPermanent: true},
		{name: "unauthorized", status: http.StatusUnauthorized, wantPermanent: true},
		{name: "throttled", status: http.StatusTooManyRequests},
		{name: "server error", status: http.StatusBadGateway},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","code":100}}`))
			}))
			t.Cleanup(srv.Close)

			s := NewWhatsAppSender(WhatsAppConfig{APIURL: srv.URL, PhoneNumberID: "1", AccessToken: "t"}, logger.Nop())
			err := s.Send(context.Background(), "+1", message.Payload{Type: message.PayloadText, Body: "x"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "nope")
			assert.Equal(t, tc.wantPermanent, IsPermanent(err))
		})
	}
}
