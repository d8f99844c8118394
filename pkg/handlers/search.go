package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/search"
	"tgspace-backend/pkg/utils"
)

type SearchHandler struct {
	search *search.Service
	logger logging.Logger
}

func NewSearchHandler(svc *search.Service, logger logging.Logger) *SearchHandler {
	return &SearchHandler{search: svc, logger: logger}
}

// GET /api/search?q=&limit=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := search.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			utils.WriteBadRequestResponse(w, "Invalid limit")
			return
		}
		limit = search.ClampLimit(n)
	}

	hits, err := h.search.Search(r.Context(), p.SpaceID, q, limit)
	if err != nil {
		writeError(w, r, h.logger, err, "Not found")
		return
	}
	utils.WriteListResponse(w, hits, len(hits), q)
}

// GET /api/search/quick?q=
func (h *SearchHandler) Quick(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	hits, err := h.search.Quick(r.Context(), p.SpaceID, q)
	if err != nil {
		writeError(w, r, h.logger, err, "Not found")
		return
	}
	utils.WriteListResponse(w, hits, len(hits), q)
}
