// Package message defines inbound envelopes, normalized intents and outbound responses.
package message

import "time"

// Envelope types.
const (
	TypeText        = "text"
	TypeInteractive = "interactive"
)

// Interactive reply types.
const (
	InteractiveButtonReply = "button_reply"
	InteractiveListReply   = "list_reply"
)

// Envelope is a channel-agnostic inbound message.
type Envelope struct {
	MessageID   string       `json:"message_id"`
	From        string       `json:"from"`
	Channel     string       `json:"channel,omitempty"`
	Type        string       `json:"type"`
	Text        *TextBody    `json:"text,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// TextBody carries a plain text message.
type TextBody struct {
	Body string `json:"body"`
}

// Interactive carries a reply to a list or button message.
type Interactive struct {
	Type        string    `json:"type"`
	ButtonReply *ReplyRef `json:"button_reply,omitempty"`
	ListReply   *ReplyRef `json:"list_reply,omitempty"`
}

// ReplyRef identifies the chosen option.
type ReplyRef struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// NewTextEnvelope builds a text envelope, mostly for tests and channel adapters.
func NewTextEnvelope(id, from, body string) *Envelope {
	return &Envelope{
		MessageID: id,
		From:      from,
		Type:      TypeText,
		Text:      &TextBody{Body: body},
		Timestamp: time.Now().UTC(),
	}
}

// NewButtonEnvelope builds an interactive button reply envelope.
func NewButtonEnvelope(id, from, replyID, title string) *Envelope {
	return &Envelope{
		MessageID: id,
		From:      from,
		Type:      TypeInteractive,
		Interactive: &Interactive{
			Type:        InteractiveButtonReply,
			ButtonReply: &ReplyRef{ID: replyID, Title: title},
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewListEnvelope builds an interactive list reply envelope.
func NewListEnvelope(id, from, replyID, title string) *Envelope {
	return &Envelope{
		MessageID: id,
		From:      from,
		Type:      TypeInteractive,
		Interactive: &Interactive{
			Type:      InteractiveListReply,
			ListReply: &ReplyRef{ID: replyID, Title: title},
		},
		Timestamp: time.Now().UTC(),
	}
}
