package handlers

import (
	"errors"
	"net/http"

	chiRoute "github.com/go-chi/chi/v5"

	"tgspace-backend/pkg/database"
	"tgspace-backend/pkg/items"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/middleware"
	"tgspace-backend/pkg/sections"
	"tgspace-backend/pkg/utils"
)

const (
	msgForbidden   = "You cannot perform this action"
	msgBadMove     = "Cannot move section here"
	msgStoreFailed = "Internal server error occurred"
)

// requirePrincipal 获取当前认证用户，缺失时写入401
func requirePrincipal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
	}
	return p, ok
}

// pathID parses a positive id URL parameter, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := utils.ParseIDParam(chiRoute.URLParam(r, name))
	if err != nil {
		utils.WriteBadRequestResponse(w, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// writeError maps domain errors onto the response envelope. notFound is the
// message used for database.ErrNotFound.
func writeError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error, notFound string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		utils.WriteNotFoundResponse(w, notFound)
	case errors.Is(err, sections.ErrCycle), errors.Is(err, sections.ErrSelfParent):
		utils.WriteConflictResponse(w, msgBadMove)
	case errors.Is(err, sections.ErrEmptyTitle), errors.Is(err, items.ErrValidation):
		utils.WriteValidationErrorResponse(w, err.Error(), "")
	default:
		logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		utils.WriteInternalServerErrorResponse(w, msgStoreFailed)
	}
}

func chiURLParam(r *http.Request, name string) string {
	return chiRoute.URLParam(r, name)
}

func forbidden(w http.ResponseWriter) {
	utils.WriteForbiddenResponse(w, msgForbidden)
}
