package httputil

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/pathlight-platform/gatekeeper/internal/errs"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a JSON error response with a generic message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteFailure renders a taxonomy error: status from its kind, machine code,
// and optional details and retry hint. Errors outside the taxonomy render as
// upstream failures.
func WriteFailure(w http.ResponseWriter, err error) {
	e, ok := errs.As(err)
	if !ok {
		e = errs.Upstream(err)
	}
	body := map[string]interface{}{
		"error": e.Message,
		"code":  e.Code,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	if e.RetryAfter > 0 {
		retryAfter := int(e.RetryAfter.Seconds())
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		body["retryAfter"] = retryAfter
	}
	WriteJSON(w, errs.HTTPStatus(e), body)
}

// ClientIP resolves the originating client address, preferring proxy
// headers. Rate limit and reputation keys derive from this value, so it must
// be a bare address, never host:port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop is the original client; later hops are proxies.
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
