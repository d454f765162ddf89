package telegram

import (
	telebot "gopkg.in/telebot.v3"
)

// Telegram rejects callback data longer than this many bytes.
const maxCallbackBytes = 64

// InlineButton is one option of an inline keyboard. Data is the reply id the
// normalizer understands (nav:, cmd:, txt:).
type InlineButton struct {
	Text string
	Data string
}

// InlineKeyboardBuilder accumulates rows of buttons before rendering telebot markup.
type InlineKeyboardBuilder struct {
	rows [][]InlineButton
}

func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{rows: make([][]InlineButton, 0)}
}

// AddRow appends a row; buttons with oversized data are dropped.
func (b *InlineKeyboardBuilder) AddRow(buttons ...InlineButton) *InlineKeyboardBuilder {
	row := make([]InlineButton, 0, len(buttons))
	for _, btn := range buttons {
		if btn.Data == "" || len(btn.Data) > maxCallbackBytes {
			continue
		}
		row = append(row, btn)
	}
	if len(row) > 0 {
		b.rows = append(b.rows, row)
	}
	return b
}

// Empty reports whether no row was added.
func (b *InlineKeyboardBuilder) Empty() bool {
	return len(b.rows) == 0
}

// Build renders the inline markup.
func (b *InlineKeyboardBuilder) Build() *telebot.ReplyMarkup {
	keyboard := make([][]telebot.InlineButton, len(b.rows))
	for i, row := range b.rows {
		keyboard[i] = make([]telebot.InlineButton, len(row))
		for j, btn := range row {
			keyboard[i][j] = telebot.InlineButton{Text: btn.Text, Data: btn.Data}
		}
	}
	return &telebot.ReplyMarkup{InlineKeyboard: keyboard}
}
