package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgspace-backend/pkg/config"
	"tgspace-backend/pkg/database"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/metrics"
	"tgspace-backend/pkg/models"
	"tgspace-backend/pkg/telegram"
)

type botReply struct {
	chatID int64
	text   string
	button *telegram.Button
}

type fakeBot struct {
	replies   []botReply
	callbacks []string
}

func (f *fakeBot) SendMessage(_ context.Context, chatID int64, text string, button *telegram.Button) error {
	f.replies = append(f.replies, botReply{chatID, text, button})
	return nil
}

func (f *fakeBot) AnswerCallback(_ context.Context, id string) error {
	f.callbacks = append(f.callbacks, id)
	return nil
}

type webhookEnv struct {
	db      *database.LocalDatabase
	bot     *fakeBot
	metrics *metrics.Metrics
	h       *WebhookHandler
}

func newWebhookEnv(t *testing.T, botUsername string) *webhookEnv {
	t.Helper()
	db, err := database.NewLocalDatabase("")
	require.NoError(t, err)
	w := &webhookEnv{db: db, bot: &fakeBot{}, metrics: metrics.New()}
	w.h = NewWebhookHandler(&config.Config{BotUsername: botUsername}, db, w.bot, logging.Nop(), w.metrics)
	return w
}

func (w *webhookEnv) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	w.h.HandleTelegramWebhook(rec, httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(body)))
	return rec
}

const botAdded = `{"update_id":1,"my_chat_member":{
	"chat":{"id":-100900,"type":"supergroup","title":"Design"},
	"from":{"id":42,"is_bot":false,"first_name":"Ann"},
	"date":1700000000,
	"old_chat_member":{"status":"left","user":{"id":7,"is_bot":true,"first_name":"Bot"}},
	"new_chat_member":{"status":"administrator","user":{"id":7,"is_bot":true,"first_name":"Bot"}}}}`

const botRemoved = `{"update_id":2,"my_chat_member":{
	"chat":{"id":-100900,"type":"supergroup","title":"Design"},
	"from":{"id":42,"is_bot":false,"first_name":"Ann"},
	"date":1700000100,
	"old_chat_member":{"status":"member","user":{"id":7,"is_bot":true,"first_name":"Bot"}},
	"new_chat_member":{"status":"kicked","user":{"id":7,"is_bot":true,"first_name":"Bot"},"until_date":0}}}`

func TestWebhook_BotAddedAndRemoved(t *testing.T) {
	w := newWebhookEnv(t, "tgspace_bot")
	ctx := context.Background()

	rec := w.post(t, botAdded)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	space, err := w.db.FindOrCreateSpace(ctx, -100900, "")
	require.NoError(t, err)
	assert.Equal(t, "Design", space.Title)

	require.Len(t, w.bot.replies, 1)
	assert.Equal(t, int64(-100900), w.bot.replies[0].chatID)
	assert.Contains(t, w.bot.replies[0].text, "/start")
	require.NotNil(t, w.bot.replies[0].button)
	assert.Equal(t, "https://t.me/tgspace_bot/app?startapp=-100900", w.bot.replies[0].button.URL)

	rec = w.post(t, botRemoved)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = w.db.GetSpaceByID(ctx, space.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	assert.Equal(t, 2.0, testutil.ToFloat64(w.metrics.WebhookUpdates.WithLabelValues("my_chat_member")))
}

func TestWebhook_IgnoresPrivateChatMemberUpdates(t *testing.T) {
	w := newWebhookEnv(t, "tgspace_bot")
	body := strings.Replace(botAdded, `"type":"supergroup"`, `"type":"private"`, 1)

	rec := w.post(t, body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, w.bot.replies)
}

func TestWebhook_Commands(t *testing.T) {
	message := func(chatType, text string) string {
		return `{"update_id":3,"message":{"message_id":10,"date":1700000000,
			"chat":{"id":-100555,"type":"` + chatType + `","title":"Team"},
			"from":{"id":42,"is_bot":false,"first_name":"Ann","username":"ann"},
			"text":"` + text + `"}}`
	}

	t.Run("start with bot suffix", func(t *testing.T) {
		w := newWebhookEnv(t, "tgspace_bot")
		w.post(t, message("group", "/Start@tgspace_bot now"))
		require.Len(t, w.bot.replies, 1)
		assert.Equal(t, "📚 Tap the button below to open the app:", w.bot.replies[0].text)
		require.NotNil(t, w.bot.replies[0].button)
		assert.Equal(t, "https://t.me/tgspace_bot/app?startapp=-100555", w.bot.replies[0].button.URL)

		u, err := w.db.UpsertUser(context.Background(), models.TelegramProfile{TelegramID: 42})
		require.NoError(t, err)
		assert.Equal(t, "ann", u.Username)
	})

	t.Run("start without bot username", func(t *testing.T) {
		w := newWebhookEnv(t, "")
		w.post(t, message("supergroup", "/start"))
		require.Len(t, w.bot.replies, 1)
		assert.Equal(t, "Mini App is not configured. Contact an administrator.", w.bot.replies[0].text)
	})

	t.Run("help", func(t *testing.T) {
		w := newWebhookEnv(t, "tgspace_bot")
		w.post(t, message("group", "/help"))
		require.Len(t, w.bot.replies, 1)
		assert.Contains(t, w.bot.replies[0].text, "<b>Commands:</b>")
		assert.Nil(t, w.bot.replies[0].button)
	})

	t.Run("plain group chatter", func(t *testing.T) {
		w := newWebhookEnv(t, "tgspace_bot")
		w.post(t, message("group", "hello"))
		assert.Empty(t, w.bot.replies)
	})

	t.Run("private chat", func(t *testing.T) {
		w := newWebhookEnv(t, "tgspace_bot")
		w.post(t, message("private", "/start"))
		require.Len(t, w.bot.replies, 1)
		assert.Equal(t, "This bot works in groups.\n\nAdd me to a group to start using it.", w.bot.replies[0].text)
	})
}

func TestWebhook_GreetsHumans(t *testing.T) {
	w := newWebhookEnv(t, "tgspace_bot")
	body := `{"update_id":4,"message":{"message_id":11,"date":1700000000,
		"chat":{"id":-100555,"type":"supergroup","title":"Team"},
		"from":{"id":42,"is_bot":false,"first_name":"Ann"},
		"new_chat_members":[
			{"id":50,"is_bot":false,"first_name":"Zoë <3"},
			{"id":51,"is_bot":true,"first_name":"Helper"},
			{"id":52,"is_bot":false,"first_name":"Max"}]}}`

	w.post(t, body)
	require.Len(t, w.bot.replies, 1)
	assert.True(t, strings.HasPrefix(w.bot.replies[0].text, "Hi, Zoë &lt;3, Max! 👋"))
	assert.NotContains(t, w.bot.replies[0].text, "Helper")

	bots := `{"update_id":5,"message":{"message_id":12,"date":1700000000,
		"chat":{"id":-100555,"type":"supergroup"},
		"from":{"id":42,"is_bot":false,"first_name":"Ann"},
		"new_chat_members":[{"id":51,"is_bot":true,"first_name":"Helper"}]}}`
	w.post(t, bots)
	assert.Len(t, w.bot.replies, 1)
}

func TestWebhook_CallbackAndMalformed(t *testing.T) {
	w := newWebhookEnv(t, "tgspace_bot")

	rec := w.post(t, `{"update_id":6,"callback_query":{"id":"cb-1","from":{"id":42,"is_bot":false,"first_name":"Ann"},"chat_instance":"ci","data":"open"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"cb-1"}, w.bot.callbacks)

	rec = w.post(t, `{"update_id":7}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(w.metrics.WebhookUpdates.WithLabelValues("other")))

	rec = w.post(t, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	db, err := database.NewLocalDatabase("")
	require.NoError(t, err)
	h := NewHealthHandler(db, "development", logging.Nop())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
}
