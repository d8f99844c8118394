package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"tgspace-backend/pkg/config"
)

// CORS 创建CORS中间件
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}

	// Bearer tokens travel in headers, so credentials stay off; with a
	// wildcard origin they would be rejected by browsers anyway.
	if len(opts.AllowedOrigins) == 0 {
		if cfg.IsProduction() {
			opts.AllowedOrigins = []string{"https://web.telegram.org"}
		} else {
			opts.AllowedOrigins = []string{"*"}
		}
	}

	return cors.Handler(opts)
}
