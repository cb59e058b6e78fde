// Package audit appends tamper-evident records for every security-relevant
// action. A write never fails the caller's primary operation: losing an audit
// record must not block a legitimate user action, but a dropped record is a
// degraded-observability condition surfaced through metrics.
package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/pathlight-platform/gatekeeper/internal/logging"
	"github.com/pathlight-platform/gatekeeper/internal/metrics"
	"github.com/pathlight-platform/gatekeeper/internal/models"
	"github.com/pathlight-platform/gatekeeper/internal/repository"
	"github.com/pathlight-platform/gatekeeper/internal/sanitize"
)

// userAgentMaxLen bounds storage growth from adversarial headers.
const userAgentMaxLen = 500

// Record is the caller-supplied portion of an audit entry. The writer stamps
// actor, origin, timestamp, and signature.
type Record struct {
	Action     models.Action
	Resource   string
	ResourceID string
	Details    map[string]interface{}
	Severity   models.Severity
	Category   models.Category
}

// WriteResult distinguishes "entry persisted" from "primary operation
// proceeded but the entry was dropped".
type WriteResult struct {
	Entry  *models.AuditEntry
	Stored bool
}

type Writer struct {
	secretKey []byte
	repo      repository.Repository
	logger    *logging.Logger
}

func NewWriter(secretKey string, repo repository.Repository, logger *logging.Logger) *Writer {
	return &Writer{
		secretKey: []byte(secretKey),
		repo:      repo,
		logger:    logger,
	}
}

// Write builds, signs, and persists an entry. Storage failure is logged and
// counted, never propagated.
func (w *Writer) Write(ctx context.Context, rec Record, actorID *string, ip, userAgent string) WriteResult {
	if rec.Severity == "" {
		rec.Severity = models.SeverityLow
	}
	if rec.Category == "" {
		rec.Category = models.CategorySystemAccess
	}
	userAgent = sanitize.Truncate(userAgent, userAgentMaxLen)

	entry := &models.AuditEntry{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		ActorID:    actorID,
		Action:     rec.Action,
		Resource:   rec.Resource,
		ResourceID: rec.ResourceID,
		Details:    sanitize.Map(rec.Details),
		Severity:   rec.Severity,
		Category:   rec.Category,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	entry.Signature = w.sign(entry)

	if err := w.repo.InsertAuditEntry(ctx, entry); err != nil {
		metrics.AuditWriteFailures.Inc()
		w.logger.ErrorContext(ctx, "audit entry dropped",
			logging.EntryID(entry.ID),
			logging.Action(string(entry.Action)),
			logging.Resource(entry.Resource),
			logging.Error(err),
		)
		return WriteResult{Entry: entry, Stored: false}
	}

	metrics.AuditWrites.Inc()
	return WriteResult{Entry: entry, Stored: true}
}

func (w *Writer) sign(entry *models.AuditEntry) string {
	actor := ""
	if entry.ActorID != nil {
		actor = *entry.ActorID
	}
	data := entry.ID + entry.Timestamp.Format(time.RFC3339Nano) + actor +
		string(entry.Action) + entry.Resource + entry.IPAddress
	h := hmac.New(sha256.New, w.secretKey)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the signature over an entry's immutable fields.
func (w *Writer) Verify(entry *models.AuditEntry) bool {
	expected := w.sign(entry)
	return hmac.Equal([]byte(expected), []byte(entry.Signature))
}
