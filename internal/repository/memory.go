package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pathlight-platform/gatekeeper/internal/models"
)

// InMemoryRepository backs tests and single-instance development runs.
type InMemoryRepository struct {
	mu            sync.RWMutex
	entries       []models.AuditEntry
	alerts        []models.SecurityAlert
	applications  map[string]*models.ScholarshipApplication // keyed by scholarship_id+student_id
	verifications map[string]*models.VerificationRequest
	credentials   map[string]*models.VerifiedCredential
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		applications:  make(map[string]*models.ScholarshipApplication),
		verifications: make(map[string]*models.VerificationRequest),
		credentials:   make(map[string]*models.VerifiedCredential),
	}
}

func (r *InMemoryRepository) InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, *entry)
	return nil
}

func (r *InMemoryRepository) QueryAuditEntries(ctx context.Context, q models.AuditQuery) ([]models.AuditEntry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []models.AuditEntry
	for _, entry := range r.entries {
		if q.ActorID != "" && (entry.ActorID == nil || *entry.ActorID != q.ActorID) {
			continue
		}
		if q.Action != "" && entry.Action != q.Action {
			continue
		}
		if q.Resource != "" && entry.Resource != q.Resource {
			continue
		}
		if q.Severity != "" && entry.Severity != q.Severity {
			continue
		}
		if q.StartDate != nil && entry.Timestamp.Before(*q.StartDate) {
			continue
		}
		if q.EndDate != nil && entry.Timestamp.After(*q.EndDate) {
			continue
		}
		matched = append(matched, entry)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	if q.Offset >= total {
		return []models.AuditEntry{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return matched[q.Offset:end], total, nil
}

func (r *InMemoryRepository) CountRecentEvents(ctx context.Context, action models.Action, actorID *string, ip string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, entry := range r.entries {
		if entry.Action != action || entry.Timestamp.Before(since) {
			continue
		}
		actorMatch := actorID != nil && entry.ActorID != nil && *entry.ActorID == *actorID
		ipMatch := ip != "" && entry.IPAddress == ip
		if actorMatch || ipMatch {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryRepository) InsertAlert(ctx context.Context, alert *models.SecurityAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts = append(r.alerts, *alert)
	return nil
}

func (r *InMemoryRepository) ListAlerts(ctx context.Context, limit int) ([]models.SecurityAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alerts := make([]models.SecurityAlert, len(r.alerts))
	copy(alerts, r.alerts)
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
	if limit > 0 && limit < len(alerts) {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

func (r *InMemoryRepository) CreateApplication(ctx context.Context, app *models.ScholarshipApplication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := app.ScholarshipID + ":" + app.StudentID
	if _, exists := r.applications[key]; exists {
		return ErrDuplicateApplication
	}
	r.applications[key] = app
	return nil
}

func (r *InMemoryRepository) CreateVerificationRequest(ctx context.Context, req *models.VerificationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.verifications[req.ID] = req
	return nil
}

func (r *InMemoryRepository) GetVerificationRequest(ctx context.Context, id string) (*models.VerificationRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.verifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *InMemoryRepository) UpdateVerificationStatus(ctx context.Context, id string, status models.VerificationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.verifications[id]
	if !ok {
		return ErrNotFound
	}
	req.Status = status
	req.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) CreateCredential(ctx context.Context, cred *models.VerifiedCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.credentials[cred.ID] = cred
	return nil
}

func (r *InMemoryRepository) Close() {}
