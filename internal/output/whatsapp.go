package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Proton-105/astro-bot/internal/message"
)

// ChannelWhatsApp is the channel name of the Cloud API.
const ChannelWhatsApp = "whatsapp"

// WhatsAppConfig holds Cloud API credentials.
type WhatsAppConfig struct {
	APIURL        string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
}

// WhatsAppSender posts messages to the WhatsApp Cloud API.
type WhatsAppSender struct {
	endpoint string
	token    string
	client   *http.Client
	log      *slog.Logger
}

// NewWhatsAppSender builds a sender for the configured business number.
func NewWhatsAppSender(cfg WhatsAppConfig, log *slog.Logger) *WhatsAppSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &WhatsAppSender{
		endpoint: strings.TrimRight(cfg.APIURL, "/") + "/" + cfg.PhoneNumberID + "/messages",
		token:    cfg.AccessToken,
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}
}

type waText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type waTextObject struct {
	Text string `json:"text"`
}

type waHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type waReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type waButton struct {
	Type  string  `json:"type"`
	Reply waReply `json:"reply"`
}

type waRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type waSection struct {
	Title string  `json:"title,omitempty"`
	Rows  []waRow `json:"rows"`
}

type waAction struct {
	Button   string      `json:"button,omitempty"`
	Buttons  []waButton  `json:"buttons,omitempty"`
	Sections []waSection `json:"sections,omitempty"`
}

type waInteractive struct {
	Type   string        `json:"type"`
	Header *waHeader     `json:"header,omitempty"`
	Body   waTextObject  `json:"body"`
	Footer *waTextObject `json:"footer,omitempty"`
	Action waAction      `json:"action"`
}

type waMessage struct {
	MessagingProduct string         `json:"messaging_product"`
	RecipientType    string         `json:"recipient_type"`
	To               string         `json:"to"`
	Type             string         `json:"type"`
	Text             *waText        `json:"text,omitempty"`
	Interactive      *waInteractive `json:"interactive,omitempty"`
}

type waError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// encode builds the Cloud API request body for p.
func (s *WhatsAppSender) encode(to string, p message.Payload) waMessage {
	msg := waMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               strings.TrimPrefix(to, "+"),
	}

	if p.Type != message.PayloadList && p.Type != message.PayloadButton {
		msg.Type = "text"
		msg.Text = &waText{Body: p.Body}
		return msg
	}

	in := &waInteractive{Type: p.Type, Body: waTextObject{Text: p.Body}}
	if p.Header != "" {
		in.Header = &waHeader{Type: "text", Text: p.Header}
	}
	if p.Footer != "" {
		in.Footer = &waTextObject{Text: p.Footer}
	}

	if p.Type == message.PayloadButton {
		for _, b := range p.Buttons {
			in.Action.Buttons = append(in.Action.Buttons, waButton{Type: "reply", Reply: waReply{ID: b.ID, Title: b.Title}})
		}
	} else {
		in.Action.Button = p.Button
		for _, sec := range p.Sections {
			ws := waSection{Title: sec.Title}
			for _, r := range sec.Rows {
				ws.Rows = append(ws.Rows, waRow{ID: r.ID, Title: r.Title, Description: r.Description})
			}
			in.Action.Sections = append(in.Action.Sections, ws)
		}
	}

	msg.Type = "interactive"
	msg.Interactive = in
	return msg
}

// Send implements Sender. Client errors other than throttling are permanent.
func (s *WhatsAppSender) Send(ctx context.Context, to string, p message.Payload) error {
	body, err := json.Marshal(s.encode(to, p))
	if err != nil {
		return &PermanentError{Err: fmt.Errorf("encode message: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return &PermanentError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var apiErr waError
	detail := string(raw)
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		detail = apiErr.Error.Message
	}
	s.log.WarnContext(ctx, "whatsapp api rejected message",
		slog.Int("status", resp.StatusCode),
		slog.String("detail", detail),
	)

	err = fmt.Errorf("whatsapp: status %d: %s", resp.StatusCode, detail)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return &PermanentError{Status: resp.StatusCode, Err: err}
	}
	return err
}
