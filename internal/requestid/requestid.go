// Package requestid generates and propagates per-request correlation IDs.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const key = contextKey("request-id")

// Middleware checks for an existing X-Request-ID header and generates a new
// UUID if not present. The ID is echoed on the response and stored in the
// request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), key, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext extracts the request ID from ctx, or "" if absent.
func FromContext(ctx context.Context) string {
	if reqID, ok := ctx.Value(key).(string); ok {
		return reqID
	}
	return ""
}
