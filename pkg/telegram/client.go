// Package telegram wraps the Bot API calls the service makes: membership
// lookups, group messages, file uploads and webhook registration.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/models"
)

// ErrNotConfigured is returned by every call when no bot token is set.
var ErrNotConfigured = errors.New("telegram bot token is not configured")

// BotClient is the subset of *bot.Bot the client uses.
type BotClient interface {
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*tgmodels.ChatMember, error)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*tgmodels.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*tgmodels.Message, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*tgmodels.File, error)
	FileDownloadLink(f *tgmodels.File) string
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Options configures New.
type Options struct {
	Token   string
	APIURL  string
	Timeout time.Duration
	Logger  logging.Logger
}

// Client talks to the Bot API. A Client built without a token answers
// ErrNotConfigured.
type Client struct {
	api     BotClient
	timeout time.Duration
	logger  logging.Logger
}

// New builds a Client. An empty token yields an unconfigured client, not an error.
func New(opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	c := &Client{timeout: opts.Timeout, logger: opts.Logger}
	if strings.TrimSpace(opts.Token) == "" {
		return c, nil
	}

	botOpts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(opts.Timeout, &http.Client{Timeout: opts.Timeout}),
	}
	if opts.APIURL != "" {
		botOpts = append(botOpts, bot.WithServerURL(opts.APIURL))
	}
	b, err := bot.New(opts.Token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	c.api = b
	return c, nil
}

// NewWithBot wraps an existing BotClient.
func NewWithBot(api BotClient, timeout time.Duration, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{api: api, timeout: timeout, logger: logger}
}

// Configured reports whether the client has a bot token.
func (c *Client) Configured() bool {
	return c != nil && c.api != nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// ResolveMembership returns the user's status in the chat as reported by getChatMember.
func (c *Client) ResolveMembership(ctx context.Context, chatID, userID int64) (models.Role, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	member, err := c.api.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: chatID, UserID: userID})
	if err != nil {
		return "", fmt.Errorf("getChatMember: %w", err)
	}
	if member == nil || member.Type == "" {
		return "", errors.New("getChatMember: empty status")
	}
	return models.Role(member.Type), nil
}

// Button is a single URL button rendered under a message.
type Button struct {
	Text string
	URL  string
}

func keyboard(b *Button) tgmodels.ReplyMarkup {
	if b == nil || b.URL == "" {
		return nil
	}
	return &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgmodels.InlineKeyboardButton{{{Text: b.Text, URL: b.URL}}},
	}
}

// SendMessage posts an HTML message to chatID with an optional URL button.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, button *Button) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   tgmodels.ParseModeHTML,
		ReplyMarkup: keyboard(button),
	})
	if err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}

// Upload is a file posted to a group so Telegram stores it.
type Upload struct {
	ChatID   int64
	FileName string
	MimeType string
	Data     io.Reader
	Caption  string
	Button   *Button
}

// IsImage reports whether the upload is sent as a photo.
func (u Upload) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(u.MimeType), "image/")
}

// StoredFile is Telegram's reference to an uploaded file.
type StoredFile struct {
	FileID   string
	FileSize int64
	IsImage  bool
}

// SendFile uploads u as a photo for image/* types and as a document otherwise.
// For photos the largest rendition's file id is returned.
func (c *Client) SendFile(ctx context.Context, u Upload) (*StoredFile, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	// Uploads get twice the normal budget.
	ctx, cancel := context.WithTimeout(ctx, 2*c.timeout)
	defer cancel()

	input := &tgmodels.InputFileUpload{Filename: u.FileName, Data: u.Data}

	if u.IsImage() {
		msg, err := c.api.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:      u.ChatID,
			Photo:       input,
			Caption:     u.Caption,
			ParseMode:   tgmodels.ParseModeHTML,
			ReplyMarkup: keyboard(u.Button),
		})
		if err != nil {
			return nil, fmt.Errorf("sendPhoto: %w", err)
		}
		if msg == nil || len(msg.Photo) == 0 {
			return nil, errors.New("sendPhoto: no photo in response")
		}
		largest := msg.Photo[len(msg.Photo)-1]
		return &StoredFile{FileID: largest.FileID, FileSize: int64(largest.FileSize), IsImage: true}, nil
	}

	msg, err := c.api.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:      u.ChatID,
		Document:    input,
		Caption:     u.Caption,
		ParseMode:   tgmodels.ParseModeHTML,
		ReplyMarkup: keyboard(u.Button),
	})
	if err != nil {
		return nil, fmt.Errorf("sendDocument: %w", err)
	}
	if msg == nil || msg.Document == nil {
		return nil, errors.New("sendDocument: no document in response")
	}
	return &StoredFile{FileID: msg.Document.FileID, FileSize: msg.Document.FileSize}, nil
}

// FileURL resolves a file id to a temporary download URL.
func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	f, err := c.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("getFile: %w", err)
	}
	if f == nil || f.FilePath == "" {
		return "", errors.New("getFile: file path not available")
	}
	return c.api.FileDownloadLink(f), nil
}

// WebhookUpdates lists the update types the webhook handler understands.
var WebhookUpdates = []string{"message", "my_chat_member", "callback_query"}

// SetWebhook registers url with Telegram, pinning secret as the
// X-Telegram-Bot-Api-Secret-Token header value.
func (c *Client) SetWebhook(ctx context.Context, url, secret string, dropPending bool) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	ok, err := c.api.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:                url,
		SecretToken:        secret,
		AllowedUpdates:     WebhookUpdates,
		DropPendingUpdates: dropPending,
	})
	if err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	if !ok {
		return errors.New("setWebhook: rejected")
	}
	return nil
}

// AnswerCallback acknowledges a callback query so the client stops its spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: callbackID}); err != nil {
		return fmt.Errorf("answerCallbackQuery: %w", err)
	}
	return nil
}
