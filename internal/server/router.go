package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pathlight-platform/gatekeeper/internal/handlers"
	"github.com/pathlight-platform/gatekeeper/internal/httputil"
	"github.com/pathlight-platform/gatekeeper/internal/logging"
	"github.com/pathlight-platform/gatekeeper/internal/middleware"
	"github.com/pathlight-platform/gatekeeper/internal/ratelimit"
	"github.com/pathlight-platform/gatekeeper/internal/requestid"
)

// NewRouter wires routes to their limit class and role requirements. The
// outer chain (request ID, security headers, identity) runs on every request.
func NewRouter(h *handlers.Handler, gate *middleware.Gate, auth *middleware.AuthMiddleware) http.Handler {
	mux := http.NewServeMux()

	admitAuth := gate.Admit(ratelimit.ClassAuth)
	admitAPI := gate.Admit(ratelimit.ClassAPI)
	admitSensitive := gate.Admit(ratelimit.ClassSensitive)

	requireAdmin := auth.RequireRole(middleware.AdminRoles...)

	// Audit trail
	mux.Handle("POST /api/v1/audit", admitAPI(http.HandlerFunc(h.WriteAudit)))
	mux.Handle("GET /api/v1/audit", admitSensitive(requireAdmin(h.ListAudit)))
	mux.Handle("GET /api/v1/alerts", admitSensitive(requireAdmin(h.ListAlerts)))

	// Domain flows anchored to the pipeline
	mux.Handle("POST /api/v1/applications", admitAPI(auth.RequireAuth(h.CreateApplication)))
	mux.Handle("POST /api/v1/verifications", admitAPI(auth.RequireAuth(h.CreateVerification)))
	mux.Handle("POST /api/v1/verifications/{id}/resolve", admitSensitive(requireAdmin(h.ResolveVerification)))

	// Standalone admission checks for services fronting their own endpoints.
	// A 200 here means the caller may forward the request.
	allowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"allowed": true})
	})
	mux.Handle("POST /api/v1/admission/auth", admitAuth(allowed))
	mux.Handle("POST /api/v1/admission/api", admitAPI(allowed))
	mux.Handle("POST /api/v1/admission/sensitive", admitSensitive(allowed))

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", h.HealthCheck)

	chain := auth.Identify(mux)
	chain = middleware.SecurityHeaders(chain)
	chain = middleware.RequestLog(logging.Default())(chain)
	return requestid.Middleware(chain)
}
