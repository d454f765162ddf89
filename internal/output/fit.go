package output

import (
	"strings"

	"github.com/Proton-105/astro-bot/internal/message"
)

// Interactive message limits of the Cloud API.
const (
	maxBodyRunes    = 4096
	maxHeaderRunes  = 60
	maxFooterRunes  = 60
	maxDescRunes    = 72
	maxSectionRunes = 24
)

// FitAll applies Fit to every payload.
func FitAll(ps []message.Payload) []message.Payload {
	out := make([]message.Payload, 0, len(ps))
	for _, p := range ps {
		out = append(out, Fit(p))
	}
	return out
}

// Fit makes p acceptable to the strictest channel: titles are truncated,
// surplus rows and buttons are dropped, and a button message with too many
// buttons becomes a list. An interactive payload without options degrades to text.
func Fit(p message.Payload) message.Payload {
	p.Body = message.Truncate(p.Body, maxBodyRunes)

	switch p.Type {
	case message.PayloadButton:
		if len(p.Buttons) == 0 {
			return textOnly(p)
		}
		if len(p.Buttons) > message.MaxButtons {
			return Fit(buttonsToList(p))
		}
		buttons := make([]message.Button, len(p.Buttons))
		for i, b := range p.Buttons {
			buttons[i] = message.Button{ID: b.ID, Title: message.Truncate(b.Title, message.MaxButtonRunes)}
		}
		p.Buttons = buttons
		p.Header = message.Truncate(p.Header, maxHeaderRunes)
		p.Footer = message.Truncate(p.Footer, maxFooterRunes)
		p.Sections = nil
		return p

	case message.PayloadList:
		sections := fitSections(p.Sections)
		if len(sections) == 0 {
			return textOnly(p)
		}
		p.Sections = sections
		p.Header = message.Truncate(p.Header, maxHeaderRunes)
		p.Footer = message.Truncate(p.Footer, maxFooterRunes)
		p.Button = message.Truncate(p.Button, message.MaxButtonRunes)
		if strings.TrimSpace(p.Button) == "" {
			p.Button = "Choose"
		}
		p.Buttons = nil
		return p
	}

	return textOnly(p)
}

func fitSections(in []message.Section) []message.Section {
	budget := message.MaxListRows
	out := make([]message.Section, 0, len(in))
	for _, s := range in {
		if budget == 0 {
			break
		}
		rows := s.Rows
		if len(rows) > budget {
			rows = rows[:budget]
		}
		if len(rows) == 0 {
			continue
		}
		fitted := make([]message.Row, len(rows))
		for i, r := range rows {
			fitted[i] = message.Row{
				ID:          r.ID,
				Title:       message.Truncate(r.Title, message.MaxTitleRunes),
				Description: message.Truncate(r.Description, maxDescRunes),
			}
		}
		budget -= len(fitted)
		out = append(out, message.Section{Title: message.Truncate(s.Title, maxSectionRunes), Rows: fitted})
	}
	// Titles are required once a list has more than one section.
	if len(out) > 1 {
		for i := range out {
			if out[i].Title == "" {
				out[i].Title = "Options"
			}
		}
	}
	return out
}

func buttonsToList(p message.Payload) message.Payload {
	rows := make([]message.Row, len(p.Buttons))
	for i, b := range p.Buttons {
		rows[i] = message.Row{ID: b.ID, Title: b.Title}
	}
	p.Type = message.PayloadList
	p.Sections = []message.Section{{Rows: rows}}
	p.Buttons = nil
	return p
}

func textOnly(p message.Payload) message.Payload {
	return message.Payload{Type: message.PayloadText, Body: message.Truncate(p.PlainText(), maxBodyRunes)}
}
