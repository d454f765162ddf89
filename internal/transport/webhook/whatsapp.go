package webhook

import (
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/output"
)

// Cloud API notification shapes. Only the fields the bot reads are declared.
type notification struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID      string   `json:"id"`
	Changes []change `json:"changes"`
}

type change struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	MessagingProduct string      `json:"messaging_product"`
	Messages         []waMessage `json:"messages"`
	Statuses         []waStatus  `json:"statuses"`
}

type waMessage struct {
	ID          string         `json:"id"`
	From        string         `json:"from"`
	Timestamp   string         `json:"timestamp"`
	Type        string         `json:"type"`
	Text        *waText        `json:"text,omitempty"`
	Interactive *waInteractive `json:"interactive,omitempty"`
	Button      *waButton      `json:"button,omitempty"`
}

type waText struct {
	Body string `json:"body"`
}

type waInteractive struct {
	Type        string   `json:"type"`
	ButtonReply *waReply `json:"button_reply,omitempty"`
	ListReply   *waReply `json:"list_reply,omitempty"`
}

type waReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type waButton struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type waStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// envelopes flattens a notification into inbound envelopes in delivery order.
// Status callbacks for outbound messages are skipped.
func (n notification) envelopes() []*message.Envelope {
	var out []*message.Envelope
	for _, e := range n.Entry {
		for _, c := range e.Changes {
			if c.Field != "" && c.Field != "messages" {
				continue
			}
			for _, m := range c.Value.Messages {
				if env := toEnvelope(m); env != nil {
					out = append(out, env)
				}
			}
		}
	}
	return out
}

func toEnvelope(m waMessage) *message.Envelope {
	if m.ID == "" || m.From == "" {
		return nil
	}

	env := &message.Envelope{
		MessageID: m.ID,
		From:      phoneOf(m.From),
		Channel:   output.ChannelWhatsApp,
		Type:      m.Type,
		Timestamp: parseTimestamp(m.Timestamp),
	}

	switch m.Type {
	case "text":
		if m.Text != nil {
			env.Text = &message.TextBody{Body: m.Text.Body}
		}
	case "interactive":
		if m.Interactive == nil {
			break
		}
		env.Interactive = &message.Interactive{
			Type:        m.Interactive.Type,
			ButtonReply: refOf(m.Interactive.ButtonReply),
			ListReply:   refOf(m.Interactive.ListReply),
		}
	case "button":
		// Quick-reply buttons of template messages.
		if m.Button == nil {
			break
		}
		env.Type = message.TypeInteractive
		env.Interactive = &message.Interactive{
			Type:        message.InteractiveButtonReply,
			ButtonReply: &message.ReplyRef{ID: m.Button.Payload, Title: m.Button.Text},
		}
	}

	return env
}

func refOf(r *waReply) *message.ReplyRef {
	if r == nil {
		return nil
	}
	return &message.ReplyRef{ID: r.ID, Title: r.Title, Description: r.Description}
}

// phoneOf turns the Cloud API wa_id into the E.164 identity used for sessions.
func phoneOf(waID string) string {
	waID = strings.TrimSpace(waID)
	if strings.HasPrefix(waID, "+") {
		return waID
	}
	return "+" + waID
}

func parseTimestamp(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}
