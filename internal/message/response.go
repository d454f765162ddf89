package message

import (
	"strconv"
	"strings"
)

// Payload types.
const (
	PayloadText   = "text"
	PayloadList   = "list"
	PayloadButton = "button"
)

// Channel limits shared by the renderers.
const (
	MaxButtons     = 3
	MaxListRows    = 10
	MaxTitleRunes  = 24
	MaxButtonRunes = 20
)

// Payload is one outbound message: plain text or a list/button structure.
type Payload struct {
	Type     string    `json:"type"`
	Header   string    `json:"header,omitempty"`
	Body     string    `json:"body"`
	Footer   string    `json:"footer,omitempty"`
	Button   string    `json:"button,omitempty"`
	Sections []Section `json:"sections,omitempty"`
	Buttons  []Button  `json:"buttons,omitempty"`
}

type Section struct {
	Title string `json:"title,omitempty"`
	Rows  []Row  `json:"rows"`
}

type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Response is the ordered set of payloads produced for a turn.
type Response struct {
	Messages []Payload `json:"messages"`
}

// Text appends a plain text payload. Empty bodies are skipped.
func (r *Response) Text(body string) *Response {
	if strings.TrimSpace(body) == "" {
		return r
	}
	r.Messages = append(r.Messages, Payload{Type: PayloadText, Body: body})
	return r
}

// Add appends a prepared payload.
func (r *Response) Add(p Payload) *Response {
	r.Messages = append(r.Messages, p)
	return r
}

// Prepend inserts payloads in front of the existing messages.
func (r *Response) Prepend(ps ...Payload) *Response {
	if len(ps) == 0 {
		return r
	}
	r.Messages = append(append([]Payload(nil), ps...), r.Messages...)
	return r
}

// Empty reports whether nothing would be delivered.
func (r *Response) Empty() bool {
	return r == nil || len(r.Messages) == 0
}

// PlainText flattens the response, used by logs, tests and text-only channels.
func (r *Response) PlainText() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		parts = append(parts, m.PlainText())
	}
	return strings.Join(parts, "\n\n")
}

// PlainText renders the payload without interactive elements.
func (p Payload) PlainText() string {
	var b strings.Builder
	if p.Header != "" {
		b.WriteString(p.Header)
		b.WriteString("\n")
	}
	b.WriteString(p.Body)
	n := 1
	for _, s := range p.Sections {
		for _, row := range s.Rows {
			b.WriteString("\n")
			b.WriteString(strconv.Itoa(n))
			b.WriteString(". ")
			b.WriteString(row.Title)
			n++
		}
	}
	for _, btn := range p.Buttons {
		b.WriteString("\n[")
		b.WriteString(btn.Title)
		b.WriteString("]")
	}
	if p.Footer != "" {
		b.WriteString("\n")
		b.WriteString(p.Footer)
	}
	return b.String()
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
