package telegram

import (
	"context"
	stdErrors "errors"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/output"
)

// Sender delivers payloads to Telegram chats. It implements output.Sender.
type Sender struct {
	bot *telebot.Bot
}

func NewSender(bot *telebot.Bot) *Sender {
	return &Sender{bot: bot}
}

// Send posts p to the chat behind the identity. Bad requests and blocked
// chats are permanent; flood waits and transport errors may be retried.
func (s *Sender) Send(ctx context.Context, to string, p message.Payload) error {
	chatID, err := ChatID(to)
	if err != nil {
		return &output.PermanentError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := []interface{}{&telebot.SendOptions{DisableWebPagePreview: true}}
	if markup := Markup(p); markup != nil {
		opts = append(opts, markup)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(&telebot.Chat{ID: chatID}, text(p), opts...)
		done <- err
	}()

	select {
	case err := <-done:
		return classify(err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var flood telebot.FloodError
	if stdErrors.As(err, &flood) {
		return err
	}
	var apiErr *telebot.Error
	if stdErrors.As(err, &apiErr) && (apiErr.Code == 400 || apiErr.Code == 403) {
		return &output.PermanentError{Status: apiErr.Code, Err: err}
	}
	return err
}

// text renders everything but the options. Header and footer frame the body.
func text(p message.Payload) string {
	if p.Type != message.PayloadList && p.Type != message.PayloadButton {
		return p.Body
	}
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Header, p.Body, p.Footer} {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Markup builds inline keyboards: buttons share one row, list rows get a row each.
func Markup(p message.Payload) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()
	switch p.Type {
	case message.PayloadButton:
		row := make([]InlineButton, 0, len(p.Buttons))
		for _, b := range p.Buttons {
			row = append(row, InlineButton{Text: b.Title, Data: b.ID})
		}
		kb.AddRow(row...)
	case message.PayloadList:
		for _, sec := range p.Sections {
			for _, r := range sec.Rows {
				kb.AddRow(InlineButton{Text: r.Title, Data: r.ID})
			}
		}
	default:
		return nil
	}
	if kb.Empty() {
		return nil
	}
	return kb.Build()
}
