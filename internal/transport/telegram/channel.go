// Package telegram runs the optional Telegram channel: updates become
// envelopes for the dispatcher, replies become messages with inline keyboards.
package telegram

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/pkg/config"
)

// ChannelName labels envelopes and the output sender of this channel.
const ChannelName = "telegram"

// identityPrefix keeps Telegram chats apart from phone identities.
const identityPrefix = "tg:"

// Submitter accepts inbound envelopes for asynchronous processing.
type Submitter interface {
	Submit(env *message.Envelope) error
}

// Channel owns the telebot instance.
type Channel struct {
	bot *telebot.Bot
	sub Submitter
	log *slog.Logger
}

// New connects to the Bot API and registers the update handlers.
func New(cfg config.TelegramConfig, sub Submitter, log *slog.Logger) (*Channel, error) {
	settings := telebot.Settings{Token: cfg.Token}
	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{Listen: cfg.Listen}
	} else {
		settings.Poller = &telebot.LongPoller{Timeout: cfg.Timeout}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return newChannel(tb, sub, log), nil
}

func newChannel(tb *telebot.Bot, sub Submitter, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	c := &Channel{bot: tb, sub: sub, log: log}
	tb.Handle(telebot.OnText, c.onText)
	tb.Handle(telebot.OnCallback, c.onCallback)
	return c
}

// Start runs the poller; it blocks until Stop.
func (c *Channel) Start() {
	c.log.Info("telegram channel started")
	c.bot.Start()
}

// Stop stops the poller. Queued turns are drained by the dispatcher.
func (c *Channel) Stop() {
	c.log.Info("stopping telegram channel...")
	c.bot.Stop()
}

// Telebot exposes the underlying bot for the sender and health checks.
func (c *Channel) Telebot() *telebot.Bot {
	return c.bot
}

func (c *Channel) onText(ctx telebot.Context) error {
	m := ctx.Message()
	if m == nil || ctx.Chat() == nil {
		return nil
	}

	return c.submit(&message.Envelope{
		MessageID: fmt.Sprintf("%d:%d", ctx.Chat().ID, m.ID),
		From:      Identity(ctx.Chat().ID),
		Channel:   ChannelName,
		Type:      message.TypeText,
		Text:      &message.TextBody{Body: strings.TrimSpace(ctx.Text())},
		Timestamp: timestamp(m.Unixtime),
	})
}

func (c *Channel) onCallback(ctx telebot.Context) error {
	cb := ctx.Callback()
	if cb == nil || ctx.Chat() == nil {
		return nil
	}
	// Stops the client spinner; the answer arrives as a new message.
	if err := ctx.Respond(); err != nil {
		c.log.Debug("callback answer failed", slog.Any("error", err))
	}

	return c.submit(&message.Envelope{
		MessageID: "cb:" + cb.ID,
		From:      Identity(ctx.Chat().ID),
		Channel:   ChannelName,
		Type:      message.TypeInteractive,
		Interactive: &message.Interactive{
			Type:        message.InteractiveButtonReply,
			ButtonReply: &message.ReplyRef{ID: strings.TrimPrefix(cb.Data, "\f")},
		},
		Timestamp: time.Now().UTC(),
	})
}

func (c *Channel) submit(env *message.Envelope) error {
	if err := c.sub.Submit(env); err != nil {
		c.log.Warn("dropping telegram update",
			slog.String("from", env.From),
			slog.String("message_id", env.MessageID),
			slog.Any("error", err),
		)
	}
	return nil
}

// Identity is the session key of a Telegram chat.
func Identity(chatID int64) string {
	return identityPrefix + strconv.FormatInt(chatID, 10)
}

// ChatID parses an identity produced by Identity.
func ChatID(identity string) (int64, error) {
	raw, ok := strings.CutPrefix(identity, identityPrefix)
	if !ok {
		return 0, fmt.Errorf("not a telegram identity: %q", identity)
	}
	return strconv.ParseInt(raw, 10, 64)
}

func timestamp(unix int64) time.Time {
	if unix <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(unix, 0).UTC()
}
