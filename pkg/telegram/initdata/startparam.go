package initdata

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

const sectionMarker = "_section_"

var chatIDPattern = regexp.MustCompile(`^-?\d+$`)

// ErrBadStartParam is returned when the chat prefix of a start param is not an integer.
var ErrBadStartParam = errors.New("initdata: start param does not name a chat")

// DeepLink is the decoded form of `<chatId>` or `<chatId>_section_<sectionId>`.
type DeepLink struct {
	ChatID int64
	// SectionID is nil when the link has no section suffix or it is not a number.
	SectionID *int64
}

// ParseStartParam decodes a deep-link start parameter. Only the chat prefix is
// validated; the section suffix is advisory.
func ParseStartParam(s string) (DeepLink, error) {
	prefix, rest, hasSection := strings.Cut(s, sectionMarker)
	if !chatIDPattern.MatchString(prefix) {
		return DeepLink{}, ErrBadStartParam
	}
	chatID, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return DeepLink{}, ErrBadStartParam
	}

	link := DeepLink{ChatID: chatID}
	if hasSection {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
			link.SectionID = &id
		}
	}
	return link, nil
}

// FormatStartParam builds the start parameter for a chat and optional section.
func FormatStartParam(chatID int64, sectionID *int64) string {
	s := strconv.FormatInt(chatID, 10)
	if sectionID != nil {
		s += sectionMarker + strconv.FormatInt(*sectionID, 10)
	}
	return s
}

// AppLink returns the t.me link that opens the Mini App with the given start param.
func AppLink(botUsername, startParam string) string {
	return "https://t.me/" + botUsername + "/app?startapp=" + startParam
}
