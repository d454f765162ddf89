package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/output"
	"github.com/Proton-105/astro-bot/pkg/logger"
)

// fakeAPI records Bot API calls and answers with canned bodies.
type fakeAPI struct {
	mu     sync.Mutex
	calls  map[string][]map[string]string
	status map[string]string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{calls: map[string][]map[string]string{}, status: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		params := map[string]string{}
		_ = json.NewDecoder(r.Body).Decode(&params)

		api.mu.Lock()
		api.calls[method] = append(api.calls[method], params)
		body, ok := api.status[method]
		api.mu.Unlock()

		if !ok {
			body = `{"ok":true,"result":{"message_id":1,"chat":{"id":42}}}`
			if method == "answerCallbackQuery" {
				body = `{"ok":true,"result":true}`
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) sent(method string) []map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[method]
}

func offlineBot(t *testing.T, url string) *telebot.Bot {
	t.Helper()
	tb, err := telebot.NewBot(telebot.Settings{Token: "test", URL: url, Offline: true, Synchronous: true})
	require.NoError(t, err)
	return tb
}

type submitted struct {
	mu  sync.Mutex
	got []*message.Envelope
}

func (s *submitted) Submit(env *message.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, env)
	return nil
}

func TestChannel_UpdatesBecomeEnvelopes(t *testing.T) {
	api, srv := newFakeAPI(t)
	sub := &submitted{}
	ch := newChannel(offlineBot(t, srv.URL), sub, logger.Nop())

	ch.Telebot().ProcessUpdate(telebot.Update{ID: 1, Message: &telebot.Message{
		ID: 7, Chat: &telebot.Chat{ID: 42}, Sender: &telebot.User{ID: 42}, Text: " Main Menu ", Unixtime: 1772359200,
	}})
	ch.Telebot().ProcessUpdate(telebot.Update{ID: 2, Callback: &telebot.Callback{
		ID: "cb1", Data: "nav:western_astrology", Sender: &telebot.User{ID: 42},
		Message: &telebot.Message{ID: 8, Chat: &telebot.Chat{ID: 42}},
	}})

	require.Len(t, sub.got, 2)

	text := sub.got[0]
	assert.Equal(t, "42:7", text.MessageID)
	assert.Equal(t, "tg:42", text.From)
	assert.Equal(t, ChannelName, text.Channel)
	assert.Equal(t, message.Command(message.CmdHome, ""), message.Normalize(text))

	cb := sub.got[1]
	assert.Equal(t, "cb:cb1", cb.MessageID)
	assert.Equal(t, message.MenuSelection("western_astrology"), message.Normalize(cb))
	assert.Len(t, api.sent("answerCallbackQuery"), 1)
}

func TestSender_Send(t *testing.T) {
	api, srv := newFakeAPI(t)
	s := NewSender(offlineBot(t, srv.URL))

	p := message.Payload{
		Type:    message.PayloadButton,
		Header:  "Western Astrology",
		Body:    "Pick one",
		Buttons: []message.Button{{ID: "nav:sun_sign", Title: "Sun Sign"}, {ID: "cmd:home", Title: "Main Menu"}},
	}
	require.NoError(t, s.Send(context.Background(), "tg:42", p))

	calls := api.sent("sendMessage")
	require.Len(t, calls, 1)
	assert.Equal(t, "42", calls[0]["chat_id"])
	assert.Equal(t, "Western Astrology\n\nPick one", calls[0]["text"])

	var markup telebot.ReplyMarkup
	require.NoError(t, json.Unmarshal([]byte(calls[0]["reply_markup"]), &markup))
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "nav:sun_sign", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "Main Menu", markup.InlineKeyboard[0][1].Text)
}

func TestSender_Errors(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.status["sendMessage"] = `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`
	s := NewSender(offlineBot(t, srv.URL))

	err := s.Send(context.Background(), "tg:42", message.Payload{Type: message.PayloadText, Body: "hi"})
	assert.True(t, output.IsPermanent(err))

	err = s.Send(context.Background(), "+919800000001", message.Payload{Type: message.PayloadText, Body: "hi"})
	assert.True(t, output.IsPermanent(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "tg:42", message.Payload{Body: "hi"}), context.Canceled)
}

func TestMarkup(t *testing.T) {
	testCases := []struct {
		name     string
		payload  message.Payload
		wantRows int
	}{
		{name: "text has none", payload: message.Payload{Type: message.PayloadText, Body: "hi"}},
		{
			name: "list row per option",
			payload: message.Payload{Type: message.PayloadList, Sections: []message.Section{
				{Title: "Readings", Rows: []message.Row{{ID: "nav:a", Title: "A"}, {ID: "nav:b", Title: "B"}}},
				{Title: "More", Rows: []message.Row{{ID: "cmd:back", Title: "Back"}}},
			}},
			wantRows: 3,
		},
		{
			name:    "oversized callback data dropped",
			payload: message.Payload{Type: message.PayloadButton, Buttons: []message.Button{{ID: "nav:" + strings.Repeat("x", 80), Title: "Long"}}},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m := Markup(tc.payload)
			if tc.wantRows == 0 {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Len(t, m.InlineKeyboard, tc.wantRows)
		})
	}
}

func TestIdentity(t *testing.T) {
	id, err := ChatID(Identity(-100123))
	require.NoError(t, err)
	assert.EqualValues(t, -100123, id)

	_, err = ChatID("+919800000001")
	assert.Error(t, err)
}
