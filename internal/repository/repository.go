package repository

import (
	"context"
	"errors"
	"time"

	"github.com/pathlight-platform/gatekeeper/internal/models"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateApplication = errors.New("application already exists for this scholarship and student")
)

// Repository is the durable store behind the pipeline: audit entries,
// security alerts, and the domain records that anchor the admission flows.
type Repository interface {
	// Audit trail: append-only; entries are never updated or deleted.
	InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	QueryAuditEntries(ctx context.Context, q models.AuditQuery) ([]models.AuditEntry, int, error)
	// CountRecentEvents counts entries for action since the cutoff matching
	// the actor ID or the IP (OR semantics: identities rotate over shared
	// network origins and vice versa).
	CountRecentEvents(ctx context.Context, action models.Action, actorID *string, ip string, since time.Time) (int, error)

	InsertAlert(ctx context.Context, alert *models.SecurityAlert) error
	ListAlerts(ctx context.Context, limit int) ([]models.SecurityAlert, error)

	CreateApplication(ctx context.Context, app *models.ScholarshipApplication) error
	CreateVerificationRequest(ctx context.Context, req *models.VerificationRequest) error
	GetVerificationRequest(ctx context.Context, id string) (*models.VerificationRequest, error)
	UpdateVerificationStatus(ctx context.Context, id string, status models.VerificationStatus) error
	CreateCredential(ctx context.Context, cred *models.VerifiedCredential) error

	Close()
}
