package middleware

import (
	"net/http"
	"time"

	"vcf-drop/pkg/logger"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// AccessLog writes one structured line per request, at warn for 4xx and
// error for 5xx. Query strings are not logged.
func AccessLog(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log := logger.WithFields(map[string]interface{}{
				"request_id":  GetRequestID(r.Context()),
				"method":      r.Method,
				"path":        routePattern(r),
				"remote_ip":   r.RemoteAddr,
				"status":      status,
				"bytes_out":   ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			})

			switch {
			case status >= 500:
				log.Error("request")
			case status >= 400:
				log.Warn("request")
			default:
				log.Debug("request")
			}
		})
	}
}
