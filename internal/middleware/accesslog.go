package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pathlight-platform/gatekeeper/internal/logging"
)

// statusRecorder captures the status code written by the downstream handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLog emits one debug line per completed request.
func RequestLog(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.DebugContext(r.Context(), "request completed",
				logging.Method(r.Method),
				logging.Path(r.URL.Path),
				logging.Status(rec.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
