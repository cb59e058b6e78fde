package handlers

import (
	"net/http"

	"github.com/pathlight-platform/gatekeeper/internal/audit"
	"github.com/pathlight-platform/gatekeeper/internal/correlate"
	"github.com/pathlight-platform/gatekeeper/internal/detect"
	"github.com/pathlight-platform/gatekeeper/internal/httputil"
	"github.com/pathlight-platform/gatekeeper/internal/logging"
	"github.com/pathlight-platform/gatekeeper/internal/repository"
)

// Handler serves the audit API and the domain flows anchored to it.
type Handler struct {
	repo       repository.Repository
	writer     *audit.Writer
	correlator *correlate.Correlator
	detector   *detect.Detector
	logger     *logging.Logger
}

func New(repo repository.Repository, writer *audit.Writer, correlator *correlate.Correlator,
	detector *detect.Detector, logger *logging.Logger) *Handler {
	return &Handler{
		repo:       repo,
		writer:     writer,
		correlator: correlator,
		detector:   detector,
		logger:     logger,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
