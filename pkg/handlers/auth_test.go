package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgspace-backend/pkg/auth"
	"tgspace-backend/pkg/config"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/middleware"
	"tgspace-backend/pkg/models"
	"tgspace-backend/pkg/permissions"
)

type fakeAuthenticator struct {
	sess *auth.Session
	err  error
	raw  string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, raw string) (*auth.Session, error) {
	f.raw = raw
	return f.sess, f.err
}

type fixedOracle struct {
	role models.Role
	err  error
}

func (o fixedOracle) ResolveMembership(context.Context, int64, int64) (models.Role, error) {
	return o.role, o.err
}

func newAuthRouter(e *testEnv, authn Authenticator, oracle permissions.MembershipOracle) chi.Router {
	h := NewAuthHandler(&config.Config{}, authn, e.db, permissions.NewRefresher(oracle), logging.Nop())
	r := chi.NewRouter()
	r.Post("/api/auth/telegram", h.TelegramLogin)
	r.Get("/api/me", h.Me)
	return r
}

func serve(t *testing.T, r http.Handler, req *http.Request) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, decodeJSON(rec.Body.String(), &env), rec.Body.String())
	return rec.Code, env
}

func TestTelegramLogin(t *testing.T) {
	e := newEnv(t)
	authn := &fakeAuthenticator{sess: &auth.Session{
		AccessToken: "tok",
		User:        e.ann,
		Space:       e.space,
		Role:        models.RoleMember,
		Permissions: permissions.ForRole(models.RoleMember),
	}}
	r := newAuthRouter(e, authn, fixedOracle{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/telegram", strings.NewReader(`{"initData":"user=%7B%7D&hash=ab"}`))
	code, env := serve(t, r, req)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "user=%7B%7D&hash=ab", authn.raw)

	sess := decode[map[string]any](t, env)
	assert.Equal(t, "tok", sess["accessToken"])
	assert.Equal(t, "member", sess["role"])
	assert.Equal(t, "-100555", sess["space"].(map[string]any)["chatId"])
	assert.Equal(t, true, sess["permissions"].(map[string]any)["canWrite"])
}

func TestTelegramLogin_Errors(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name    string
		body    string
		err     error
		code    int
		message string
	}{
		{"not member", `{"initData":"x"}`, auth.ErrNotMember, http.StatusUnauthorized, "You are not a member of this group"},
		{"expired", `{"initData":"x"}`, auth.ErrExpired, http.StatusUnauthorized, "Authentication expired"},
		{"store failure", `{"initData":"x"}`, errors.New("db down"), http.StatusInternalServerError, "Internal server error occurred"},
		{"missing initData", `{}`, nil, http.StatusBadRequest, "initData is required"},
		{"bad json", `{`, nil, http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthRouter(e, &fakeAuthenticator{err: tt.err}, fixedOracle{})
			code, env := serve(t, r, httptest.NewRequest(http.MethodPost, "/api/auth/telegram", strings.NewReader(tt.body)))
			assert.Equal(t, tt.code, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.message, env.Error.Message)
		})
	}
}

func TestMe(t *testing.T) {
	e := newEnv(t)
	r := newAuthRouter(e, &fakeAuthenticator{}, fixedOracle{role: models.RoleLeft})
	p := e.as(e.ann, e.space, models.RoleAdministrator)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	code, env := serve(t, r, req.WithContext(middleware.WithPrincipal(req.Context(), p)))
	require.Equal(t, http.StatusOK, code)
	me := decode[meResponse](t, env)
	assert.Equal(t, "Ann", me.User.FirstName)
	assert.Equal(t, "Team", me.Space.Title)
	assert.Equal(t, models.RoleAdministrator, me.Role)
	assert.True(t, me.Permissions.CanManage)
	assert.Nil(t, me.FreshPermissions)

	req = httptest.NewRequest(http.MethodGet, "/api/me?fresh=true", nil)
	code, env = serve(t, r, req.WithContext(middleware.WithPrincipal(req.Context(), p)))
	require.Equal(t, http.StatusOK, code)
	me = decode[meResponse](t, env)
	assert.Equal(t, models.RoleAdministrator, me.Role)
	assert.Equal(t, models.RoleLeft, me.FreshRole)
	require.NotNil(t, me.FreshPermissions)
	assert.False(t, me.FreshPermissions.CanRead)

	code, _ = serve(t, r, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, code)
}
