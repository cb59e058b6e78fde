package correlate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlight-platform/gatekeeper/internal/logging"
	"github.com/pathlight-platform/gatekeeper/internal/models"
	"github.com/pathlight-platform/gatekeeper/internal/repository"
)

type captureNotifier struct {
	published []*models.SecurityAlert
}

func (c *captureNotifier) Publish(ctx context.Context, alert *models.SecurityAlert) error {
	c.published = append(c.published, alert)
	return nil
}

func (c *captureNotifier) Close() error { return nil }

func seedEntries(t *testing.T, repo repository.Repository, action models.Action, actorID *string, ip string, n int, ts time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := repo.InsertAuditEntry(context.Background(), &models.AuditEntry{
			ID:        uuid.New().String(),
			Timestamp: ts,
			ActorID:   actorID,
			Action:    action,
			Resource:  "session",
			IPAddress: ip,
		})
		require.NoError(t, err)
	}
}

func TestCorrelator_UnwatchedAction(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	c := New(repo, nil, logging.Default())

	alert := c.Evaluate(context.Background(), &models.AuditEntry{
		Action:    models.ActionRead,
		IPAddress: "10.0.0.1",
		Timestamp: time.Now().UTC(),
	})
	assert.Nil(t, alert)
}

func TestCorrelator_BelowThreshold(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	notifier := &captureNotifier{}
	c := New(repo, notifier, logging.Default())

	seedEntries(t, repo, models.ActionFailedLogin, nil, "10.0.0.1", 4, time.Now().UTC())

	alert := c.Evaluate(context.Background(), &models.AuditEntry{
		Action:    models.ActionFailedLogin,
		IPAddress: "10.0.0.1",
	})
	assert.Nil(t, alert)
	assert.Empty(t, notifier.published)
}

func TestCorrelator_FailedLoginThreshold(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	notifier := &captureNotifier{}
	c := New(repo, notifier, logging.Default())

	seedEntries(t, repo, models.ActionFailedLogin, nil, "10.0.0.1", 5, time.Now().UTC())

	alert := c.Evaluate(context.Background(), &models.AuditEntry{
		Action:    models.ActionFailedLogin,
		IPAddress: "10.0.0.1",
	})
	require.NotNil(t, alert)
	assert.Equal(t, models.SeverityHigh, alert.RiskLevel)
	assert.Equal(t, "10.0.0.1", alert.IPAddress)
	require.Len(t, alert.Alerts, 1)
	assert.Contains(t, alert.Alerts[0], "failed login")

	// Persisted and published.
	stored, err := repo.ListAlerts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, alert.ID, stored[0].ID)
	require.Len(t, notifier.published, 1)
	assert.Equal(t, alert.ID, notifier.published[0].ID)
}

func TestCorrelator_RateLimitThresholdIsCritical(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	c := New(repo, &captureNotifier{}, logging.Default())

	seedEntries(t, repo, models.ActionRateLimitExceeded, nil, "10.0.0.1", 10, time.Now().UTC())

	alert := c.Evaluate(context.Background(), &models.AuditEntry{
		Action:    models.ActionRateLimitExceeded,
		IPAddress: "10.0.0.1",
	})
	require.NotNil(t, alert)
	assert.Equal(t, models.SeverityCritical, alert.RiskLevel)
}

func TestCorrelator_OldEventsOutsideWindow(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	notifier := &captureNotifier{}
	c := New(repo, notifier, logging.Default())

	now := time.Now().UTC()
	seedEntries(t, repo, models.ActionFailedLogin, nil, "10.0.0.1", 3, now)
	seedEntries(t, repo, models.ActionFailedLogin, nil, "10.0.0.1", 4, now.Add(-Window-time.Minute))

	alert := c.Evaluate(context.Background(), &models.AuditEntry{
		Action:    models.ActionFailedLogin,
		IPAddress: "10.0.0.1",
	})
	assert.Nil(t, alert)
	assert.Empty(t, notifier.published)
}

func TestCorrelator_MatchesActorAcrossAddresses(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	c := New(repo, &captureNotifier{}, logging.Default())

	actor := "user-123"
	now := time.Now().UTC()
	// Same actor rotating source addresses still crosses the threshold.
	seedEntries(t, repo, models.ActionFailedLogin, &actor, "10.0.0.1", 3, now)
	seedEntries(t, repo, models.ActionFailedLogin, &actor, "10.0.0.2", 2, now)

	alert := c.Evaluate(context.Background(), &models.AuditEntry{
		Action:    models.ActionFailedLogin,
		ActorID:   &actor,
		IPAddress: "10.0.0.3",
	})
	require.NotNil(t, alert)
	assert.Equal(t, &actor, alert.ActorID)
}
