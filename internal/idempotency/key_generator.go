package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateKey builds a deterministic key using all provided parts.
func GenerateKey(parts ...interface{}) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v:", part)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// MessageKey identifies an inbound delivery. Providers only guarantee message id
// uniqueness per channel, so the channel is part of the key.
func MessageKey(channel, messageID string) string {
	return GenerateKey("message", channel, messageID)
}
