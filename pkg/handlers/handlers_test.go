package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"tgspace-backend/pkg/config"
	"tgspace-backend/pkg/database"
	"tgspace-backend/pkg/items"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/middleware"
	"tgspace-backend/pkg/models"
	"tgspace-backend/pkg/permissions"
	"tgspace-backend/pkg/search"
	"tgspace-backend/pkg/sections"
	"tgspace-backend/pkg/telegram"
)

type notification struct {
	spaceID   int64
	text      string
	sectionID *int64
}

type fakeNotifier struct {
	sent []notification
}

func (f *fakeNotifier) Notify(_ context.Context, spaceID int64, text string, sectionID *int64) {
	f.sent = append(f.sent, notification{spaceID, text, sectionID})
}

func (f *fakeNotifier) OpenButton(chatID int64, sectionID *int64, text string) *telegram.Button {
	return &telegram.Button{Text: text, URL: "https://t.me/bot/app"}
}

type fakeFiles struct {
	uploads []telegram.Upload
	body    []byte
	stored  *telegram.StoredFile
	err     error
}

func (f *fakeFiles) SendFile(_ context.Context, u telegram.Upload) (*telegram.StoredFile, error) {
	f.uploads = append(f.uploads, u)
	f.body, _ = io.ReadAll(u.Data)
	return f.stored, f.err
}

func (f *fakeFiles) FileURL(_ context.Context, fileID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://api.telegram.org/file/bot123/" + fileID, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total int    `json:"total"`
		Query string `json:"query"`
	} `json:"meta"`
}

type testEnv struct {
	t        *testing.T
	db       *database.LocalDatabase
	tree     *sections.Tree
	notifier *fakeNotifier
	files    *fakeFiles
	router   chi.Router

	space *models.Space
	other *models.Space
	ann   *models.User
	bob   *models.User
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewLocalDatabase("")
	require.NoError(t, err)

	e := &testEnv{t: t, db: db, tree: sections.NewTree(db), notifier: &fakeNotifier{}, files: &fakeFiles{}}
	e.space, err = db.FindOrCreateSpace(ctx, -100555, "Team")
	require.NoError(t, err)
	e.other, err = db.FindOrCreateSpace(ctx, -100777, "Other")
	require.NoError(t, err)
	e.ann, err = db.UpsertUser(ctx, models.TelegramProfile{TelegramID: 42, FirstName: "Ann"})
	require.NoError(t, err)
	e.bob, err = db.UpsertUser(ctx, models.TelegramProfile{TelegramID: 43, FirstName: "Bob"})
	require.NoError(t, err)

	cfg := &config.Config{Environment: "test"}
	logger := logging.Nop()
	sh := NewSectionsHandler(cfg, db, e.tree, e.notifier, logger)
	ih := NewItemsHandler(cfg, db, e.tree, items.NewService(db), e.files, e.notifier, logger)
	srch := NewSearchHandler(search.NewService(db, e.tree), logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/sections", sh.ListRoots)
		r.Post("/sections", sh.Create)
		r.Get("/sections/{id}", sh.Get)
		r.Patch("/sections/{id}", sh.Update)
		r.Delete("/sections/{id}", sh.Delete)
		r.Get("/sections/{id}/children", sh.Children)
		r.Post("/sections/{id}/move", sh.Move)
		r.Get("/sections/{id}/items", ih.List)
		r.Post("/sections/{id}/items", ih.Create)
		r.Post("/sections/{id}/items/reorder", ih.Reorder)
		r.Post("/sections/{id}/items/upload", ih.Upload)
		r.Get("/items/{id}", ih.Get)
		r.Patch("/items/{id}", ih.Update)
		r.Delete("/items/{id}", ih.Delete)
		r.Post("/items/{id}/move", ih.Move)
		r.Get("/files/{fileId}", ih.FileURL)
		r.Get("/search", srch.Search)
		r.Get("/search/quick", srch.Quick)
	})
	e.router = r
	return e
}

func (e *testEnv) as(user *models.User, space *models.Space, role models.Role) middleware.Principal {
	return middleware.Principal{
		UserID:      user.ID,
		TelegramID:  user.TelegramID,
		SpaceID:     space.ID,
		ChatID:      space.ChatID,
		Role:        role,
		Permissions: permissions.ForRole(role),
	}
}

func (e *testEnv) doRequest(req *http.Request, p *middleware.Principal) (int, envelope) {
	e.t.Helper()
	if p != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), *p))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (e *testEnv) do(method, path string, body any, p middleware.Principal) (int, envelope) {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	return e.doRequest(req, &p)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (e *testEnv) section(title string, parent *int64, creator *models.User) *models.Section {
	e.t.Helper()
	s, err := e.tree.Create(context.Background(), e.space.ID, parent, title, &creator.ID)
	require.NoError(e.t, err)
	return s
}

func (e *testEnv) item(sectionID int64, in items.Input, creator *models.User) *models.Item {
	e.t.Helper()
	it, err := items.NewService(e.db).Create(context.Background(), sectionID, e.space.ID, in, &creator.ID)
	require.NoError(e.t, err)
	return it
}

func decodeJSON(body string, v any) error {
	return json.Unmarshal([]byte(body), v)
}
