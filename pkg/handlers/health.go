package handlers

import (
	"context"
	"net/http"
	"time"

	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/utils"
)

// Pinger reports store health.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db          Pinger
	environment string
	logger      logging.Logger
}

func NewHealthHandler(db Pinger, environment string, logger logging.Logger) *HealthHandler {
	return &HealthHandler{db: db, environment: environment, logger: logger}
}

// HealthCheck GET /
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := map[string]interface{}{
		"status":      "ok",
		"environment": h.environment,
		"time":        time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "health check failed", "error", err)
		utils.WriteErrorResponseWithCode(w, http.StatusServiceUnavailable, "UNHEALTHY", "Database unavailable", "")
		return
	}
	status["database"] = "ok"
	utils.WriteSuccessResponse(w, status)
}
