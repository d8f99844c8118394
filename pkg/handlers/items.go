package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tgspace-backend/pkg/config"
	"tgspace-backend/pkg/database"
	"tgspace-backend/pkg/items"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/models"
	"tgspace-backend/pkg/notify"
	"tgspace-backend/pkg/permissions"
	"tgspace-backend/pkg/sections"
	"tgspace-backend/pkg/telegram"
	"tgspace-backend/pkg/utils"
)

// MaxUploadSize bounds multipart uploads.
const MaxUploadSize = 50 << 20

// FileStore keeps uploaded files in Telegram.
type FileStore interface {
	SendFile(ctx context.Context, u telegram.Upload) (*telegram.StoredFile, error)
	FileURL(ctx context.Context, fileID string) (string, error)
}

type ItemsHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	tree     *sections.Tree
	items    *items.Service
	files    FileStore
	notifier GroupNotifier
	logger   logging.Logger
}

func NewItemsHandler(cfg *config.Config, db database.DatabaseInterface, tree *sections.Tree, svc *items.Service, files FileStore, notifier GroupNotifier, logger logging.Logger) *ItemsHandler {
	return &ItemsHandler{
		config:   cfg,
		db:       db,
		tree:     tree,
		items:    svc,
		files:    files,
		notifier: notifier,
		logger:   logger,
	}
}

// GET /api/items/{id}
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	it, err := h.items.Lookup(r.Context(), id, p.SpaceID)
	if err != nil {
		writeError(w, r, h.logger, err, "Item not found")
		return
	}
	utils.WriteSuccessResponse(w, it)
}

// GET /api/sections/{id}/items
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	sectionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.tree.Lookup(r.Context(), sectionID, p.SpaceID); err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	list, err := h.items.List(r.Context(), sectionID)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	utils.WriteSuccessResponse(w, list)
}

// POST /api/sections/{id}/items
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !p.Permissions.CanWrite {
		forbidden(w)
		return
	}
	sectionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in items.Input
	if err := utils.ParseJSONBody(r, &in); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	ctx := r.Context()
	if _, err := h.tree.Lookup(ctx, sectionID, p.SpaceID); err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	creator := p.UserID
	it, err := h.items.Create(ctx, sectionID, p.SpaceID, in, &creator)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}

	if items.NotifyOnCreate(it.Type) {
		if path, err := h.tree.PathTitles(ctx, sectionID); err == nil {
			h.notifier.Notify(ctx, p.SpaceID, notify.ItemAdded(authorName(ctx, h.db, p.UserID), it, path), &sectionID)
		}
	}
	utils.WriteCreatedResponse(w, it)
}

// PATCH /api/items/{id}
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	it, err := h.items.Lookup(ctx, id, p.SpaceID)
	if err != nil {
		writeError(w, r, h.logger, err, "Item not found")
		return
	}
	if !permissions.CanEdit(p.Permissions, items.IsOwner(it, p.UserID)) {
		forbidden(w)
		return
	}

	var patch models.ItemPatch
	if err := utils.ParseJSONBody(r, &patch); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	updated, err := h.items.Update(ctx, it, patch)
	if err != nil {
		writeError(w, r, h.logger, err, "Item not found")
		return
	}
	utils.WriteSuccessResponse(w, updated)
}

// DELETE /api/items/{id}
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	it, err := h.items.Lookup(ctx, id, p.SpaceID)
	if err != nil {
		writeError(w, r, h.logger, err, "Item not found")
		return
	}
	if !permissions.CanDelete(p.Permissions, items.IsOwner(it, p.UserID)) {
		forbidden(w)
		return
	}
	if err := h.items.Delete(ctx, id); err != nil {
		writeError(w, r, h.logger, err, "Item not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]int64{"id": id})
}

// POST /api/items/{id}/move
func (h *ItemsHandler) Move(w http.ResponseWriter, r *http.Request) {
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
		SectionID int64 `json:"sectionId"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || req.SectionID <= 0 {
		utils.WriteBadRequestResponse(w, "sectionId is required")
		return
	}

	ctx := r.Context()
	if _, err := h.items.Lookup(ctx, id, p.SpaceID); err != nil {
		writeError(w, r, h.logger, err, "Item not found")
		return
	}
	if _, err := h.tree.Lookup(ctx, req.SectionID, p.SpaceID); err != nil {
		writeError(w, r, h.logger, err, "Target section not found")
		return
	}
	it, err := h.items.Move(ctx, id, req.SectionID)
	if err != nil {
		writeError(w, r, h.logger, err, "Item not found")
		return
	}
	utils.WriteSuccessResponse(w, it)
}

// POST /api/sections/{id}/items/reorder
func (h *ItemsHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !permissions.CanMove(p.Permissions) {
		forbidden(w)
		return
	}
	sectionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		ItemIDs []int64 `json:"itemIds"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	ctx := r.Context()
	if _, err := h.tree.Lookup(ctx, sectionID, p.SpaceID); err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	err := h.items.Reorder(ctx, sectionID, req.ItemIDs)
	if errors.Is(err, database.ErrNotFound) {
		utils.WriteValidationErrorResponse(w, "All items must belong to the section", "")
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	list, err := h.items.List(ctx, sectionID)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	utils.WriteSuccessResponse(w, list)
}

// POST /api/sections/{id}/items/upload
func (h *ItemsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !p.Permissions.CanWrite {
		forbidden(w)
		return
	}
	sectionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			utils.WriteErrorResponseWithCode(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds 50 MB", "")
			return
		}
		utils.WriteBadRequestResponse(w, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteBadRequestResponse(w, "file is required")
		return
	}
	defer file.Close()
	title := strings.TrimSpace(r.FormValue("title"))

	ctx := r.Context()
	if _, err := h.tree.Lookup(ctx, sectionID, p.SpaceID); err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	space, err := h.db.GetSpaceByID(ctx, p.SpaceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteBadRequestResponse(w, "Space chat not found")
			return
		}
		writeError(w, r, h.logger, err, "Space chat not found")
		return
	}
	path, err := h.tree.PathTitles(ctx, sectionID)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	upload := telegram.Upload{
		ChatID:   space.ChatID,
		FileName: header.Filename,
		MimeType: mimeType,
		Data:     file,
		Caption:  notify.UploadCaption(title, path),
		Button:   h.notifier.OpenButton(space.ChatID, &sectionID, "📂 Open in app"),
	}
	stored, err := h.files.SendFile(ctx, upload)
	if err != nil {
		h.logger.Error(ctx, "telegram upload failed", "chat_id", space.ChatID, "file", header.Filename, "error", err)
		if errors.Is(err, telegram.ErrNotConfigured) {
			utils.WriteErrorResponseWithCode(w, http.StatusServiceUnavailable, "TELEGRAM_UNAVAILABLE", "File storage is not configured", "")
			return
		}
		utils.WriteErrorResponseWithCode(w, http.StatusBadGateway, "TELEGRAM_ERROR", "Failed to upload file to Telegram", "")
		return
	}

	in := items.Input{
		Type:     models.ItemFile,
		Title:    title,
		FileID:   stored.FileID,
		FileName: header.Filename,
		FileSize: stored.FileSize,
		MimeType: mimeType,
	}
	if stored.IsImage {
		in.Type = models.ItemImage
	}
	if in.FileSize == 0 {
		in.FileSize = header.Size
	}
	creator := p.UserID
	it, err := h.items.Create(ctx, sectionID, p.SpaceID, in, &creator)
	if err != nil {
		writeError(w, r, h.logger, err, "Section not found")
		return
	}
	utils.WriteCreatedResponse(w, it)
}

// GET /api/files/{fileId}
func (h *ItemsHandler) FileURL(w http.ResponseWriter, r *http.Request) {
	if _, ok := requirePrincipal(w, r); !ok {
		return
	}
	fileID := strings.TrimSpace(chiURLParam(r, "fileId"))
	if fileID == "" {
		utils.WriteBadRequestResponse(w, "Invalid fileId")
		return
	}
	url, err := h.files.FileURL(r.Context(), fileID)
	if err != nil {
		h.logger.Warn(r.Context(), "getFile failed", "file_id", fileID, "error", err)
		if errors.Is(err, telegram.ErrNotConfigured) {
			utils.WriteErrorResponseWithCode(w, http.StatusServiceUnavailable, "TELEGRAM_UNAVAILABLE", "File storage is not configured", "")
			return
		}
		utils.WriteNotFoundResponse(w, "File not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"url": url})
}
