package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pathlight-platform/gatekeeper/internal/audit"
	"github.com/pathlight-platform/gatekeeper/internal/errs"
	"github.com/pathlight-platform/gatekeeper/internal/httputil"
	"github.com/pathlight-platform/gatekeeper/internal/logging"
	"github.com/pathlight-platform/gatekeeper/internal/metrics"
	"github.com/pathlight-platform/gatekeeper/internal/middleware"
	"github.com/pathlight-platform/gatekeeper/internal/models"
	"github.com/pathlight-platform/gatekeeper/internal/sanitize"
	"github.com/pathlight-platform/gatekeeper/internal/validate"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// WriteAudit handles POST /api/v1/audit.
func (h *Handler) WriteAudit(w http.ResponseWriter, r *http.Request) {
	var req models.AuditWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteFailure(w, errs.Input("invalid request body"))
		return
	}

	ip := httputil.ClientIP(r)
	userAgent := r.Header.Get("User-Agent")
	actorID := middleware.ActorID(r.Context())

	action, resource, resourceID, severity, category, verrs := validate.AuditRequest(&req)
	if verrs != nil {
		metrics.ValidationFailures.WithLabelValues("audit").Inc()
		// The malformed payload is itself security-relevant; keep a sanitized
		// copy for forensic review.
		h.writer.Write(r.Context(), audit.Record{
			Action:   models.ActionValidationFailed,
			Resource: "audit",
			Details: map[string]interface{}{
				"errors":  verrs.Messages(),
				"payload": sanitize.Map(map[string]interface{}{"action": req.Action, "resource": req.Resource, "severity": req.Severity, "category": req.Category}),
			},
			Severity: models.SeverityMedium,
			Category: models.CategorySecurityEvent,
		}, actorID, ip, userAgent)

		httputil.WriteFailure(w, errs.Input(verrs.Messages()...))
		return
	}

	result := h.writer.Write(r.Context(), audit.Record{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    req.Details,
		Severity:   severity,
		Category:   category,
	}, actorID, ip, userAgent)

	// Authentication failures feed the reputation tracker that backs the
	// suspicion checks on later requests.
	if action == models.ActionFailedLogin {
		if _, err := h.detector.RecordAuthFailure(r.Context(), ip); err != nil {
			h.logger.WarnContext(r.Context(), "failed to record auth failure",
				logging.IP(ip), logging.Error(err))
		}
	}

	alert := h.correlator.Evaluate(r.Context(), result.Entry)

	resp := models.AuditWriteResponse{
		Success:        true,
		LogID:          result.Entry.ID,
		SecurityAlerts: []string{},
		RiskLevel:      string(models.SeverityLow),
	}
	if alert != nil {
		resp.SecurityAlerts = alert.Alerts
		resp.RiskLevel = string(alert.RiskLevel)
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// ListAudit handles GET /api/v1/audit. Reaching here means the caller already
// passed the admin role check.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := models.AuditQuery{
		ActorID:  r.URL.Query().Get("userId"),
		Action:   models.Action(r.URL.Query().Get("action")),
		Resource: r.URL.Query().Get("resource"),
		Severity: models.Severity(r.URL.Query().Get("severity")),
		Limit:    defaultPageSize,
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageSize {
			httputil.WriteFailure(w, errs.Input("limit must be between 1 and 1000"))
			return
		}
		q.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			httputil.WriteFailure(w, errs.Input("offset must be non-negative"))
			return
		}
		q.Offset = offset
	}
	if raw := r.URL.Query().Get("startDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteFailure(w, errs.Input("startDate must be RFC3339"))
			return
		}
		q.StartDate = &t
	}
	if raw := r.URL.Query().Get("endDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteFailure(w, errs.Input("endDate must be RFC3339"))
			return
		}
		q.EndDate = &t
	}

	logs, total, err := h.repo.QueryAuditEntries(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to query audit entries", logging.Error(err))
		httputil.WriteFailure(w, errs.Upstream(err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.AuditListResponse{
		Success: true,
		Logs:    logs,
		Pagination: models.Pagination{
			Limit:  q.Limit,
			Offset: q.Offset,
			Total:  total,
		},
	})
}

// ListAlerts handles GET /api/v1/alerts (admin-only).
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxPageSize {
			httputil.WriteFailure(w, errs.Input("limit must be between 1 and 1000"))
			return
		}
		limit = parsed
	}

	alerts, err := h.repo.ListAlerts(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list alerts", logging.Error(err))
		httputil.WriteFailure(w, errs.Upstream(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"alerts":  alerts,
	})
}
