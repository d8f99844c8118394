package middleware

import (
	"context"
	"net/http"
	"strings"

	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/models"
	"tgspace-backend/pkg/permissions"
	"tgspace-backend/pkg/utils"
)

// ContextKey 用于在context中存储认证信息的键
type ContextKey string

const (
	PrincipalContextKey ContextKey = "principal"
)

// Principal is the authenticated caller. Permissions come from the role
// snapshot stored in the token.
type Principal struct {
	UserID      int64
	TelegramID  int64
	SpaceID     int64
	ChatID      int64
	Role        models.Role
	Permissions permissions.Permissions
}

// TokenValidator parses session tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.SessionClaims, error)
}

// AuthMiddleware JWT认证中间件
func AuthMiddleware(tokens TokenValidator, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 从Authorization头获取token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || tokenString == "" {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			claims, err := tokens.ValidateToken(tokenString)
			if err != nil {
				logger.Debug(r.Context(), "rejected session token", "error", err)
				utils.WriteUnauthorizedResponse(w, "Invalid or expired token")
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				utils.WriteUnauthorizedResponse(w, "Invalid token claims")
				return
			}

			p := Principal{
				UserID:      userID,
				TelegramID:  claims.TelegramID,
				SpaceID:     claims.SpaceID,
				ChatID:      claims.ChatID,
				Role:        claims.Role,
				Permissions: permissions.ForRole(claims.Role),
			}
			if sink, ok := r.Context().Value(principalSinkKey).(*principalSink); ok {
				sink.p = &p
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequirePermission answers 403 unless allow accepts the caller's permissions.
func RequirePermission(allow func(permissions.Permissions) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				utils.WriteUnauthorizedResponse(w, "Not authenticated")
				return
			}
			if !allow(p.Permissions) {
				utils.WriteForbiddenResponse(w, "You cannot perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CanRead is the baseline for every content route.
func CanRead(p permissions.Permissions) bool { return p.CanRead }

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// PrincipalFrom 从context中获取认证信息
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(Principal)
	return p, ok
}
