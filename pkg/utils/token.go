package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateURLToken returns n random bytes as unpadded base64url.
// The alphabet (A-Z a-z 0-9 - _) is what Telegram accepts for webhook secret tokens.
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = 24
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateWebhookSecret returns a secret for setWebhook's secret_token (max 256 chars).
func GenerateWebhookSecret() (string, error) {
	return GenerateURLToken(32)
}
