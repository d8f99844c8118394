package handlers

import (
	"context"
	"encoding/json"
	"html"
	"net/http"
	"strings"

	tgmodels "github.com/go-telegram/bot/models"

	"tgspace-backend/pkg/config"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/metrics"
	"tgspace-backend/pkg/models"
	"tgspace-backend/pkg/telegram"
	"tgspace-backend/pkg/telegram/initdata"
	"tgspace-backend/pkg/utils"
)

const (
	defaultGroupTitle = "Group"
	openAppButton     = "📱 Open app"
)

// BotMessenger is the outgoing side of the bot used by the webhook.
type BotMessenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, button *telegram.Button) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// WebhookStore is what webhook updates change.
type WebhookStore interface {
	UpsertUser(ctx context.Context, p models.TelegramProfile) (*models.User, error)
	FindOrCreateSpace(ctx context.Context, chatID int64, title string) (*models.Space, error)
	DeleteSpaceByChatID(ctx context.Context, chatID int64) (bool, error)
}

// WebhookHandler 处理Telegram webhook更新
type WebhookHandler struct {
	config  *config.Config
	db      WebhookStore
	bot     BotMessenger
	logger  logging.Logger
	metrics *metrics.Metrics
}

// NewWebhookHandler 创建新的webhook处理器
func NewWebhookHandler(cfg *config.Config, db WebhookStore, bot BotMessenger, logger logging.Logger, m *metrics.Metrics) *WebhookHandler {
	return &WebhookHandler{config: cfg, db: db, bot: bot, logger: logger, metrics: m}
}

// HandleTelegramWebhook POST /api/telegram/webhook
//
// Once the update decodes the answer is always {"ok":true}; processing
// failures are logged so Telegram does not redeliver.
func (h *WebhookHandler) HandleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgmodels.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid update")
		return
	}
	ctx := r.Context()
	h.logger.Debug(ctx, "telegram update", "update_id", update.ID)

	switch {
	case update.MyChatMember != nil:
		h.metrics.RecordWebhookUpdate("my_chat_member")
		h.handleMyChatMember(ctx, update.MyChatMember)
	case update.CallbackQuery != nil:
		h.metrics.RecordWebhookUpdate("callback_query")
		if err := h.bot.AnswerCallback(ctx, update.CallbackQuery.ID); err != nil {
			h.logger.Warn(ctx, "answerCallbackQuery failed", "error", err)
		}
	case update.Message != nil && update.Message.From != nil:
		h.metrics.RecordWebhookUpdate("message")
		if len(update.Message.NewChatMembers) > 0 {
			h.handleNewChatMembers(ctx, update.Message)
		} else {
			h.handleMessage(ctx, update.Message)
		}
	default:
		h.metrics.RecordWebhookUpdate("other")
	}

	utils.WriteTelegramAck(w)
}

func isGroup(chat tgmodels.Chat) bool {
	return chat.Type == tgmodels.ChatTypeGroup || chat.Type == tgmodels.ChatTypeSupergroup
}

// appButton opens the Mini App bound to chatID, or nil without a bot username.
func (h *WebhookHandler) appButton(chatID int64) *telegram.Button {
	if h.config.BotUsername == "" {
		return nil
	}
	return &telegram.Button{
		Text: openAppButton,
		URL:  initdata.AppLink(h.config.BotUsername, initdata.FormatStartParam(chatID, nil)),
	}
}

func (h *WebhookHandler) send(ctx context.Context, chatID int64, text string, button *telegram.Button) {
	if err := h.bot.SendMessage(ctx, chatID, text, button); err != nil {
		h.logger.Warn(ctx, "bot reply failed", "chat_id", chatID, "error", err)
	}
}

// handleMyChatMember 机器人被加入或移出群组
func (h *WebhookHandler) handleMyChatMember(ctx context.Context, upd *tgmodels.ChatMemberUpdated) {
	if !isGroup(upd.Chat) {
		return
	}
	chatID := upd.Chat.ID
	oldStatus := models.Role(upd.OldChatMember.Type)
	newStatus := models.Role(upd.NewChatMember.Type)
	h.logger.Info(ctx, "bot status changed", "chat_id", chatID, "old", string(oldStatus), "new", string(newStatus))

	joined := newStatus == models.RoleMember || newStatus == models.RoleAdministrator
	wasOut := oldStatus == "" || oldStatus == models.RoleLeft || oldStatus == models.RoleKicked
	if joined && wasOut {
		title := upd.Chat.Title
		if title == "" {
			title = defaultGroupTitle
		}
		if _, err := h.db.FindOrCreateSpace(ctx, chatID, title); err != nil {
			h.logger.Error(ctx, "create space failed", "chat_id", chatID, "error", err)
			return
		}
		h.send(ctx, chatID, welcomeText, h.appButton(chatID))
		return
	}

	if newStatus == models.RoleLeft || newStatus == models.RoleKicked {
		deleted, err := h.db.DeleteSpaceByChatID(ctx, chatID)
		if err != nil {
			h.logger.Error(ctx, "delete space failed", "chat_id", chatID, "error", err)
			return
		}
		h.logger.Info(ctx, "space removed with the bot", "chat_id", chatID, "deleted", deleted)
	}
}

// handleNewChatMembers 欢迎新成员
func (h *WebhookHandler) handleNewChatMembers(ctx context.Context, msg *tgmodels.Message) {
	if !isGroup(msg.Chat) || h.config.BotUsername == "" {
		return
	}
	var names []string
	for _, m := range msg.NewChatMembers {
		if !m.IsBot {
			names = append(names, html.EscapeString(m.FirstName))
		}
	}
	if len(names) == 0 {
		return
	}
	text := "Hi, " + strings.Join(names, ", ") + "! 👋\n\n" + introText
	h.send(ctx, msg.Chat.ID, text, h.appButton(msg.Chat.ID))
}

// handleMessage 记录发送者并处理命令
func (h *WebhookHandler) handleMessage(ctx context.Context, msg *tgmodels.Message) {
	from := msg.From
	if _, err := h.db.UpsertUser(ctx, models.TelegramProfile{
		TelegramID: from.ID,
		Username:   from.Username,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	}); err != nil {
		h.logger.Warn(ctx, "upsert sender failed", "telegram_id", from.ID, "error", err)
	}

	text := strings.TrimSpace(msg.Text)
	if isGroup(msg.Chat) && strings.HasPrefix(text, "/") {
		switch commandName(text) {
		case "/start":
			if h.config.BotUsername == "" {
				h.send(ctx, msg.Chat.ID, "Mini App is not configured. Contact an administrator.", nil)
				return
			}
			h.send(ctx, msg.Chat.ID, "📚 Tap the button below to open the app:", h.appButton(msg.Chat.ID))
		case "/help":
			h.send(ctx, msg.Chat.ID, helpText, nil)
		}
		return
	}

	if msg.Chat.Type == tgmodels.ChatTypePrivate {
		h.send(ctx, msg.Chat.ID, "This bot works in groups.\n\nAdd me to a group to start using it.", nil)
	}
}

// commandName strips arguments and the @botname suffix: "/Start@my_bot x" -> "/start".
func commandName(text string) string {
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}

const welcomeText = "Hi! 👋\n\nI help keep this group's information organised.\n\n" +
	"Use the button below or the /start command to open the app."

const introText = `📚 <b>Content Manager</b> organises the information of this group.

<b>What you can do:</b>
• Create sections and subsections
• Add notes, links, images and files
• Search across all content
• Edit and delete entries

Tap the button below to open the app:`

const helpText = `📚 <b>Content Manager help</b>

<b>What you can do:</b>
• Create sections and subsections, nested without limit
• Add notes, links, images and files
• Search across all content
• Edit and delete entries

<b>Access:</b>
• Group owner and administrators manage everything
• Members add content and delete their own
• Restricted members can only read

<b>Commands:</b>
/start open the app
/help show this help

New content is announced in the group with a link to it.`
