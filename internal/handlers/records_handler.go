package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pathlight-platform/gatekeeper/internal/audit"
	"github.com/pathlight-platform/gatekeeper/internal/errs"
	"github.com/pathlight-platform/gatekeeper/internal/httputil"
	"github.com/pathlight-platform/gatekeeper/internal/logging"
	"github.com/pathlight-platform/gatekeeper/internal/metrics"
	"github.com/pathlight-platform/gatekeeper/internal/middleware"
	"github.com/pathlight-platform/gatekeeper/internal/models"
	"github.com/pathlight-platform/gatekeeper/internal/repository"
	"github.com/pathlight-platform/gatekeeper/internal/sanitize"
	"github.com/pathlight-platform/gatekeeper/internal/validate"
)

// CreateApplication handles POST /api/v1/applications. Submitting the same
// (scholarship, student) pair twice succeeds once and conflicts after.
func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteFailure(w, errs.Auth())
		return
	}

	var req models.ApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteFailure(w, errs.Input("invalid request body"))
		return
	}

	ip := httputil.ClientIP(r)
	userAgent := r.Header.Get("User-Agent")

	app, verrs := validate.Application(&req, identity.UserID)
	if verrs != nil {
		metrics.ValidationFailures.WithLabelValues("application").Inc()
		h.writer.Write(r.Context(), audit.Record{
			Action:   models.ActionValidationFailed,
			Resource: "scholarship_application",
			Details: map[string]interface{}{
				"errors":         verrs.Messages(),
				"scholarship_id": sanitize.String(req.ScholarshipID),
			},
			Severity: models.SeverityMedium,
			Category: models.CategorySecurityEvent,
		}, &identity.UserID, ip, userAgent)

		httputil.WriteFailure(w, errs.Input(verrs.Messages()...))
		return
	}

	app.ID = uuid.New().String()
	app.Essay = sanitize.String(app.Essay)
	app.CreatedAt = time.Now().UTC()

	if err := h.repo.CreateApplication(r.Context(), app); err != nil {
		if errors.Is(err, repository.ErrDuplicateApplication) {
			httputil.WriteFailure(w, errs.Conflict("application already submitted"))
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create application", logging.Error(err))
		httputil.WriteFailure(w, errs.Upstream(err))
		return
	}

	result := h.writer.Write(r.Context(), audit.Record{
		Action:     models.ActionCreate,
		Resource:   "scholarship_application",
		ResourceID: app.ID,
		Details:    map[string]interface{}{"scholarship_id": app.ScholarshipID},
		Severity:   models.SeverityLow,
		Category:   models.CategoryDataModification,
	}, &identity.UserID, ip, userAgent)
	h.correlator.Evaluate(r.Context(), result.Entry)

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"application": app,
	})
}

// CreateVerification handles POST /api/v1/verifications.
func (h *Handler) CreateVerification(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteFailure(w, errs.Auth())
		return
	}

	var req models.VerificationCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteFailure(w, errs.Input("invalid request body"))
		return
	}

	ip := httputil.ClientIP(r)
	userAgent := r.Header.Get("User-Agent")

	vtype, source, verrs := validate.Verification(&req)
	if verrs != nil {
		metrics.ValidationFailures.WithLabelValues("verification").Inc()
		h.writer.Write(r.Context(), audit.Record{
			Action:   models.ActionValidationFailed,
			Resource: "verification_request",
			Details:  map[string]interface{}{"errors": verrs.Messages()},
			Severity: models.SeverityMedium,
			Category: models.CategorySecurityEvent,
		}, &identity.UserID, ip, userAgent)

		httputil.WriteFailure(w, errs.Input(verrs.Messages()...))
		return
	}

	now := time.Now().UTC()
	vr := &models.VerificationRequest{
		ID:          uuid.New().String(),
		Type:        vtype,
		Source:      source,
		Data:        sanitize.Map(req.Data),
		Status:      models.VerificationPending,
		SubmittedBy: &identity.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.repo.CreateVerificationRequest(r.Context(), vr); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create verification request", logging.Error(err))
		httputil.WriteFailure(w, errs.Upstream(err))
		return
	}

	h.writer.Write(r.Context(), audit.Record{
		Action:     models.ActionCreate,
		Resource:   "verification_request",
		ResourceID: vr.ID,
		Details:    map[string]interface{}{"type": vr.Type, "source": vr.Source},
		Severity:   models.SeverityLow,
		Category:   models.CategoryDataModification,
	}, &identity.UserID, ip, userAgent)

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":      true,
		"verification": vr,
	})
}

// ResolveVerification handles POST /api/v1/verifications/{id}/resolve
// (admin-only). A transition to verified mints the durable credential.
func (h *Handler) ResolveVerification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.VerificationResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteFailure(w, errs.Input("invalid request body"))
		return
	}

	status := models.VerificationStatus(req.Status)
	if status != models.VerificationVerified && status != models.VerificationFailed {
		httputil.WriteFailure(w, errs.Input("status: must be verified or failed"))
		return
	}

	vr, err := h.repo.GetVerificationRequest(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httputil.WriteFailure(w, errs.NotFound("verification request not found"))
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to load verification request", logging.Error(err))
		httputil.WriteFailure(w, errs.Upstream(err))
		return
	}
	if vr.Status != models.VerificationPending {
		httputil.WriteFailure(w, errs.Conflict("verification request already resolved"))
		return
	}

	if err := h.repo.UpdateVerificationStatus(r.Context(), id, status); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to update verification status", logging.Error(err))
		httputil.WriteFailure(w, errs.Upstream(err))
		return
	}

	ip := httputil.ClientIP(r)
	userAgent := r.Header.Get("User-Agent")
	actorID := middleware.ActorID(r.Context())

	var credential *models.VerifiedCredential
	if status == models.VerificationVerified {
		holder := ""
		if vr.SubmittedBy != nil {
			holder = *vr.SubmittedBy
		}
		credential = &models.VerifiedCredential{
			ID:        uuid.New().String(),
			RequestID: vr.ID,
			HolderID:  holder,
			Type:      vr.Type,
			Issuer:    vr.Source,
			Details:   vr.Data,
			IssuedAt:  time.Now().UTC(),
		}
		if err := h.repo.CreateCredential(r.Context(), credential); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to create credential", logging.Error(err))
			httputil.WriteFailure(w, errs.Upstream(err))
			return
		}
	}

	h.writer.Write(r.Context(), audit.Record{
		Action:     models.ActionUpdate,
		Resource:   "verification_request",
		ResourceID: vr.ID,
		Details:    map[string]interface{}{"status": string(status)},
		Severity:   models.SeverityLow,
		Category:   models.CategoryDataModification,
	}, actorID, ip, userAgent)

	resp := map[string]interface{}{"success": true, "status": string(status)}
	if credential != nil {
		resp["credential"] = credential
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
