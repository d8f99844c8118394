package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tgspace-backend/pkg/auth"
	"tgspace-backend/pkg/config"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/models"
	"tgspace-backend/pkg/permissions"
	"tgspace-backend/pkg/utils"
)

// Authenticator exchanges initData for a session.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.Session, error)
}

// AccountStore loads the records behind a principal.
type AccountStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetSpaceByID(ctx context.Context, id int64) (*models.Space, error)
}

// AuthHandler 认证处理器
type AuthHandler struct {
	config    *config.Config
	auth      Authenticator
	db        AccountStore
	refresher *permissions.Refresher
	logger    logging.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, authn Authenticator, db AccountStore, refresher *permissions.Refresher, logger logging.Logger) *AuthHandler {
	return &AuthHandler{
		config:    cfg,
		auth:      authn,
		db:        db,
		refresher: refresher,
		logger:    logger,
	}
}

// TelegramLogin POST /api/auth/telegram
func (h *AuthHandler) TelegramLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitData string `json:"initData"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.InitData) == "" {
		utils.WriteValidationErrorResponse(w, "initData is required", "")
		return
	}

	sess, err := h.auth.Authenticate(r.Context(), req.InitData)
	if err != nil {
		var authErr *auth.Error
		if errors.As(err, &authErr) {
			utils.WriteUnauthorizedResponse(w, authErr.Message)
			return
		}
		h.logger.Error(r.Context(), "telegram login failed", "error", err)
		utils.WriteInternalServerErrorResponse(w, msgStoreFailed)
		return
	}

	h.logger.Info(r.Context(), "telegram login",
		"user_id", sess.User.ID, "space_id", sess.Space.ID, "role", string(sess.Role))
	utils.WriteSuccessResponse(w, sess)
}

type meResponse struct {
	User             *models.User             `json:"user"`
	Space            *models.Space            `json:"space"`
	Role             models.Role              `json:"role"`
	Permissions      permissions.Permissions  `json:"permissions"`
	FreshRole        models.Role              `json:"freshRole,omitempty"`
	FreshPermissions *permissions.Permissions `json:"freshPermissions,omitempty"`
}

// Me GET /api/me[?fresh=true]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	user, err := h.db.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, h.logger, err, "User not found")
		return
	}
	space, err := h.db.GetSpaceByID(r.Context(), p.SpaceID)
	if err != nil {
		writeError(w, r, h.logger, err, "Space not found")
		return
	}

	resp := meResponse{User: user, Space: space, Role: p.Role, Permissions: p.Permissions}
	if r.URL.Query().Get("fresh") == "true" {
		role, perms := h.refresher.Refresh(r.Context(), p.ChatID, p.TelegramID)
		resp.FreshRole = role
		resp.FreshPermissions = &perms
	}
	utils.WriteSuccessResponse(w, resp)
}
