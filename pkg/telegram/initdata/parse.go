// Package initdata parses and verifies the signed launch payload Telegram
// passes to a Mini App (window.Telegram.WebApp.initData).
package initdata

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed is returned when the payload contains no key/value pairs.
var ErrMalformed = errors.New("initdata: malformed payload")

// Pair is a decoded key/value pair in payload order.
type Pair struct {
	Key   string
	Value string
}

// WebAppUser is the `user` field.
type WebAppUser struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot,omitempty"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// WebAppChat is the `chat` field, present when the app is opened from a group.
type WebAppChat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// InitData is the parsed payload. For repeated keys the first value wins.
type InitData struct {
	Pairs []Pair

	User    *WebAppUser
	RawUser string
	Chat    *WebAppChat
	RawChat string

	QueryID      string
	ChatType     string
	ChatInstance string
	StartParam   string
	// AuthDate is unix seconds; 0 when absent or not a number.
	AuthDate int64
	Hash     string

	Extra map[string]string
}

// AuthTime returns AuthDate as a time.
func (d *InitData) AuthTime() time.Time {
	return time.Unix(d.AuthDate, 0)
}

// Parse decodes raw. Undecodable user/chat JSON leaves the typed field nil and
// keeps the raw text.
func Parse(raw string) (*InitData, error) {
	pairs := SplitPairs(raw)
	if len(pairs) == 0 {
		return nil, ErrMalformed
	}

	d := &InitData{Pairs: pairs, Extra: map[string]string{}}
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if seen[p.Key] {
			continue
		}
		seen[p.Key] = true

		switch p.Key {
		case "user":
			d.RawUser = p.Value
			var u WebAppUser
			if err := json.Unmarshal([]byte(p.Value), &u); err == nil {
				d.User = &u
			}
		case "chat":
			d.RawChat = p.Value
			var c WebAppChat
			if err := json.Unmarshal([]byte(p.Value), &c); err == nil {
				d.Chat = &c
			}
		case "query_id":
			d.QueryID = p.Value
		case "chat_type":
			d.ChatType = p.Value
		case "chat_instance":
			d.ChatInstance = p.Value
		case "start_param":
			d.StartParam = p.Value
		case "auth_date":
			if n, err := strconv.ParseInt(strings.TrimSpace(p.Value), 10, 64); err == nil {
				d.AuthDate = n
			}
		case "hash":
			d.Hash = p.Value
		default:
			d.Extra[p.Key] = p.Value
		}
	}
	return d, nil
}

// SplitPairs tokenises a query string into ordered, decoded pairs. Duplicate
// keys are preserved. A component with a bad escape is kept verbatim.
func SplitPairs(raw string) []Pair {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "?")
	var out []Pair
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		out = append(out, Pair{Key: unescape(k), Value: unescape(v)})
	}
	return out
}

func unescape(s string) string {
	u, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return u
}

// Encode renders pairs back into a query string.
func Encode(pairs []Pair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}
