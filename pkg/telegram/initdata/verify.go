package initdata

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"tgspace-backend/pkg/logging"
)

const webAppDataKey = "WebAppData"

// CheckString builds the data-check-string: every pair except `hash`,
// stable-sorted by key, rendered as key=value and joined with newlines.
func CheckString(pairs []Pair) string {
	kept := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Key != "hash" {
			kept = append(kept, p)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Key < kept[j].Key })

	lines := make([]string, len(kept))
	for i, p := range kept {
		lines[i] = p.Key + "=" + p.Value
	}
	return strings.Join(lines, "\n")
}

// Sign returns the hex signature Telegram would attach to pairs.
func Sign(pairs []Pair, botToken string) string {
	secret := hmac.New(sha256.New, []byte(webAppDataKey))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(CheckString(pairs)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier checks initData signatures against a bot token.
//
// With an empty BotToken verification is skipped: it passes outside
// production and fails in production.
type Verifier struct {
	BotToken   string
	Production bool
	Logger     logging.Logger
}

// Verify reports whether raw carries a valid signature.
func (v Verifier) Verify(ctx context.Context, raw string) bool {
	if v.BotToken == "" {
		if v.Logger != nil {
			v.Logger.Warn(ctx, "bot token not configured, skipping initData signature check",
				"production", v.Production)
		}
		return !v.Production
	}

	pairs := SplitPairs(raw)
	var got string
	for _, p := range pairs {
		if p.Key == "hash" {
			got = p.Value
			break
		}
	}
	if got == "" {
		return false
	}

	want := Sign(pairs, v.BotToken)
	return hmac.Equal([]byte(got), []byte(want))
}
