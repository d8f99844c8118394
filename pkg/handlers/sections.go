package handlers

import (
	"context"
	"net/http"
	"strings"

	"tgspace-backend/pkg/config"
	"tgspace-backend/pkg/database"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/models"
	"tgspace-backend/pkg/notify"
	"tgspace-backend/pkg/permissions"
	"tgspace-backend/pkg/sections"
	"tgspace-backend/pkg/telegram"
	"tgspace-backend/pkg/utils"
)

// GroupNotifier announces activity in the space's group.
type GroupNotifier interface {
	Notify(ctx context.Context, spaceID int64, text string, sectionID *int64)
	OpenButton(chatID int64, sectionID *int64, text string) *telegram.Button
}

type SectionsHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	tree     *sections.Tree
	notifier GroupNotifier
	logger   logging.Logger
}

func NewSectionsHandler(cfg *config.Config, db database.DatabaseInterface, tree *sections.Tree, notifier GroupNotifier, logger logging.Logger) *SectionsHandler {
	return &SectionsHandler{config: cfg, db: db, tree: tree, notifier: notifier, logger: logger}
}

// authorName resolves the display name used in notifications.
func authorName(ctx context.Context, db database.DatabaseInterface, userID int64) string {
	u, err := db.GetUserByID(ctx, userID)
	if err != nil {
		return (*models.User)(nil).DisplayName()
	}
	return u.DisplayName()
}

// GET /api/sections
func (h *SectionsHandler) ListRoots(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	list, err := h.db.ListSections(r.Context(), p.SpaceID, nil)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	utils.WriteSuccessResponse(w, list)
}

// GET /api/sections/{id}
func (h *SectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.tree.Lookup(ctx, id, p.SpaceID); err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}

	sec, err := h.db.GetSection(ctx, id)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	children, err := h.db.ListSections(ctx, p.SpaceID, &id)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	list, err := h.db.ListItems(ctx, id)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	path, err := h.tree.PathToRoot(ctx, id)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}

	utils.WriteSuccessResponse(w, models.SectionDetails{
		Section:  *sec,
		Children: children,
		Items:    list,
		Path:     path,
	})
}

// GET /api/sections/{id}/children
func (h *SectionsHandler) Children(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.tree.Lookup(r.Context(), id, p.SpaceID); err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	list, err := h.db.ListSections(r.Context(), p.SpaceID, &id)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	utils.WriteSuccessResponse(w, list)
}

// POST /api/sections
func (h *SectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !p.Permissions.CanWrite {
		forbidden(w)
		return
	}
	var req struct {
		Title    string `json:"title"`
		ParentID *int64 `json:"parentId"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	ctx := r.Context()
	if req.ParentID != nil {
		if _, err := h.tree.Lookup(ctx, *req.ParentID, p.SpaceID); err != nil {
			writeError(w, r, h.logger, err, "Parent section not found")
			return
		}
	}

	creator := p.UserID
	sec, err := h.tree.Create(ctx, p.SpaceID, req.ParentID, req.Title, &creator)
	if err != nil {
		writeError(w, r, h.logger, err, "Parent section not found")
		return
	}

	if path, err := h.tree.PathTitles(ctx, sec.ID); err == nil {
		h.notifier.Notify(ctx, p.SpaceID, notify.SectionCreated(authorName(ctx, h.db, p.UserID), path), &sec.ID)
	}
	utils.WriteCreatedResponse(w, sec)
}

// PATCH /api/sections/{id}
func (h *SectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	node, err := h.tree.Lookup(ctx, id, p.SpaceID)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	owner := node.CreatedByID != nil && *node.CreatedByID == p.UserID
	if !permissions.CanEdit(p.Permissions, owner) {
		forbidden(w)
		return
	}

	var patch models.SectionPatch
	if err := utils.ParseJSONBody(r, &patch); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			utils.WriteValidationErrorResponse(w, sections.ErrEmptyTitle.Error(), "")
			return
		}
		patch.Title = &title
	}
	if patch.Order != nil && *patch.Order < 0 {
		utils.WriteValidationErrorResponse(w, "order must not be negative", "")
		return
	}

	sec, err := h.db.UpdateSection(ctx, id, patch)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	utils.WriteSuccessResponse(w, sec)
}

// DELETE /api/sections/{id}
func (h *SectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	node, err := h.tree.Lookup(ctx, id, p.SpaceID)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	owner := node.CreatedByID != nil && *node.CreatedByID == p.UserID
	if !permissions.CanDelete(p.Permissions, owner) {
		forbidden(w)
		return
	}

	if err := h.tree.Delete(ctx, id); err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	h.logger.Info(ctx, "section deleted", "section_id", id, "user_id", p.UserID)
	utils.WriteSuccessResponse(w, map[string]int64{"id": id})
}

// POST /api/sections/{id}/move
func (h *SectionsHandler) Move(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !permissions.CanMove(p.Permissions) {
		forbidden(w)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		ParentID *int64 `json:"parentId"`
	}
	if r.ContentLength != 0 {
		if err := utils.ParseJSONBody(r, &req); err != nil {
			utils.WriteBadRequestResponse(w, "Invalid request body")
			return
		}
	}

	ctx := r.Context()
	if _, err := h.tree.Lookup(ctx, id, p.SpaceID); err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	if req.ParentID != nil {
		if _, err := h.tree.Lookup(ctx, *req.ParentID, p.SpaceID); err != nil {
			writeError(w, r, h.logger, err, "Target parent section not found")
			return
		}
	}

	sec, err := h.tree.Move(ctx, id, req.ParentID)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	utils.WriteSuccessResponse(w, sec)
}
