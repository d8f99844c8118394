// Package notify posts activity messages to the group that owns a space.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/metrics"
	"tgspace-backend/pkg/models"
	"tgspace-backend/pkg/telegram"
	"tgspace-backend/pkg/telegram/initdata"
)

const pathSeparator = " → "

// Sender delivers an HTML message with an optional URL button.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, button *telegram.Button) error
}

// SpaceLookup resolves a space to its chat.
type SpaceLookup interface {
	GetSpaceByID(ctx context.Context, id int64) (*models.Space, error)
}

type Notifier struct {
	spaces      SpaceLookup
	sender      Sender
	botUsername string
	logger      logging.Logger
	metrics     *metrics.Metrics
}

func New(spaces SpaceLookup, sender Sender, botUsername string, logger logging.Logger, m *metrics.Metrics) *Notifier {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Notifier{spaces: spaces, sender: sender, botUsername: botUsername, logger: logger, metrics: m}
}

// Notify sends text to the group of spaceID. Failures are logged and counted,
// never returned.
func (n *Notifier) Notify(ctx context.Context, spaceID int64, text string, sectionID *int64) {
	if n == nil || n.sender == nil {
		return
	}
	space, err := n.spaces.GetSpaceByID(ctx, spaceID)
	if err != nil {
		n.logger.Warn(ctx, "notification skipped, space lookup failed", "space_id", spaceID, "error", err)
		n.metrics.RecordNotification("skipped")
		return
	}

	if err := n.sender.SendMessage(ctx, space.ChatID, text, n.OpenButton(space.ChatID, sectionID, "📂 Open")); err != nil {
		n.logger.Warn(ctx, "group notification failed", "chat_id", space.ChatID, "error", err)
		n.metrics.RecordNotification("failed")
		return
	}
	n.metrics.RecordNotification("sent")
}

// OpenButton links to the Mini App at sectionID, or returns nil when the bot
// username is unknown.
func (n *Notifier) OpenButton(chatID int64, sectionID *int64, text string) *telegram.Button {
	if n == nil || n.botUsername == "" {
		return nil
	}
	return &telegram.Button{
		Text: text,
		URL:  initdata.AppLink(n.botUsername, initdata.FormatStartParam(chatID, sectionID)),
	}
}

// FormatPath joins escaped section titles root first.
func FormatPath(titles []string) string {
	escaped := make([]string, len(titles))
	for i, t := range titles {
		escaped[i] = html.EscapeString(t)
	}
	return strings.Join(escaped, pathSeparator)
}

// SectionCreated is the message for a new section.
func SectionCreated(author string, path []string) string {
	return fmt.Sprintf("📁 <b>%s</b> created section:\n%s", html.EscapeString(author), FormatPath(path))
}

// ItemAdded is the message for a new text or link item.
func ItemAdded(author string, it *models.Item, path []string) string {
	icon, noun := "📝", "note"
	if it.Type == models.ItemLink {
		icon, noun = "🔗", "link"
	}
	title := it.Title
	if title == "" {
		if it.Type == models.ItemLink {
			title = it.Content
		} else {
			title = "Note"
		}
	}
	return fmt.Sprintf("%s <b>%s</b> added %s:\n<b>%s</b>\n📁 %s",
		icon, html.EscapeString(author), noun, html.EscapeString(title), FormatPath(path))
}

// UploadCaption is the caption of a file posted to the group.
func UploadCaption(title string, path []string) string {
	if title == "" {
		return "📁 " + FormatPath(path)
	}
	return "📎 " + html.EscapeString(title) + "\n📁 " + FormatPath(path)
}
