package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/metrics"
)

const principalSinkKey ContextKey = "principal_sink"

type principalSink struct {
	p *Principal
}

// RequestLogger 结构化访问日志
func RequestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// AuthMiddleware runs further down the chain and fills the sink.
			sink := &principalSink{}
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), principalSinkKey, sink)))

			status := statusOf(ww)
			args := []any{
				"method", r.Method,
				"route", routePattern(r),
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
				"ip", getClientIP(r),
			}
			if sink.p != nil {
				args = append(args, "user_id", sink.p.UserID, "space_id", sink.p.SpaceID)
			}

			switch {
			case status >= 500:
				logger.Error(r.Context(), "request", args...)
			case status >= 400:
				logger.Warn(r.Context(), "request", args...)
			default:
				logger.Info(r.Context(), "request", args...)
			}
		})
	}
}

// Metrics records request latency by chi route pattern.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			m.RecordHTTPRequest(r.Method, routePattern(r), strconv.Itoa(statusOf(ww)), time.Since(start))
		})
	}
}

// statusOf treats a handler that wrote nothing as 200.
func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// getClientIP 获取客户端IP地址
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
