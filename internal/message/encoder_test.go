package message_test

import (
	"strings"
	"testing"

	"github.com/Proton-105/astro-bot/internal/message"
)

func TestEncodeReplyID(t *testing.T) {
	tests := []struct {
		name      string
		unique    string
		data      string
		want      string
		wantError bool
	}{
		{
			name:   "with data",
			unique: "nav",
			data:   "western_astrology",
			want:   "nav:western_astrology",
		},
		{
			name:   "without data",
			unique: "tarot",
			data:   "",
			want:   "tarot",
		},
		{
			name:      "exceeds limit",
			unique:    strings.Repeat("x", message.ReplyIDLimitBytes+1),
			data:      "",
			wantError: true,
		},
		{
			name:      "payload exceeds limit",
			unique:    "nav",
			data:      strings.Repeat("y", message.ReplyIDLimitBytes),
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := message.EncodeReplyID(tt.unique, tt.data)
			if tt.wantError {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Errorf("EncodeReplyID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeReplyID(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantUnique string
		wantData   string
		wantErr    bool
	}{
		{
			name:       "unique and data",
			input:      "nav:tarot",
			wantUnique: "nav",
			wantData:   "tarot",
		},
		{
			name:       "only unique",
			input:      "tarot",
			wantUnique: "tarot",
		},
		{
			name:       "multiple separators",
			input:      "cmd:fav_add:tarot",
			wantUnique: "cmd",
			wantData:   "fav_add:tarot",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unique, data, err := message.DecodeReplyID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if unique != tt.wantUnique || data != tt.wantData {
				t.Errorf("DecodeReplyID() = (%q, %q), want (%q, %q)", unique, data, tt.wantUnique, tt.wantData)
			}
		})
	}
}
