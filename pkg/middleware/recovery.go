package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"tgspace-backend/pkg/config"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/utils"
)

// Recovery 恢复中间件，处理panic并返回500
func Recovery(cfg *config.Config, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := debug.Stack()
				logger.Error(r.Context(), "panic recovered",
					"panic", fmt.Sprint(rec),
					"path", r.URL.Path,
					"stack", string(stack),
				)

				if cfg.IsDevelopment() {
					// 开发环境：返回详细错误信息
					utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError,
						"INTERNAL_SERVER_ERROR",
						fmt.Sprintf("Internal server error: %v", rec),
						string(stack))
					return
				}
				utils.WriteInternalServerErrorResponse(w, "Internal server error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
