// Package correlate derives security alerts from recent audit history.
// Matching is an OR over actor ID and IP: a single human may rotate identity
// while keeping network origin, or share an origin behind common
// infrastructure. Recall is favored over precision; false positives are
// expected and acceptable.
package correlate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pathlight-platform/gatekeeper/internal/logging"
	"github.com/pathlight-platform/gatekeeper/internal/metrics"
	"github.com/pathlight-platform/gatekeeper/internal/models"
	"github.com/pathlight-platform/gatekeeper/internal/repository"
)

// Window is the trailing interval inspected for each triggering write.
const Window = 5 * time.Minute

type threshold struct {
	count   int
	risk    models.Severity
	message string
}

// watchedActions maps triggering actions to their alert thresholds within Window.
var watchedActions = map[models.Action]threshold{
	models.ActionFailedLogin:       {count: 5, risk: models.SeverityHigh, message: "repeated failed login attempts"},
	models.ActionRateLimitExceeded: {count: 10, risk: models.SeverityCritical, message: "repeated rate limit violations"},
	models.ActionPermissionDenied:  {count: 20, risk: models.SeverityHigh, message: "repeated permission denials"},
}

type Correlator struct {
	repo     repository.Repository
	notifier Notifier
	logger   *logging.Logger
}

func New(repo repository.Repository, notifier Notifier, logger *logging.Logger) *Correlator {
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	return &Correlator{repo: repo, notifier: notifier, logger: logger}
}

// Evaluate runs after an audit write. It returns the alert raised by the
// write, or nil. Every failure path is best-effort: a correlation or
// persistence error never unwinds the caller.
func (c *Correlator) Evaluate(ctx context.Context, entry *models.AuditEntry) *models.SecurityAlert {
	th, watched := watchedActions[entry.Action]
	if !watched {
		return nil
	}

	since := time.Now().UTC().Add(-Window)
	count, err := c.repo.CountRecentEvents(ctx, entry.Action, entry.ActorID, entry.IPAddress, since)
	if err != nil {
		c.logger.ErrorContext(ctx, "alert correlation query failed",
			logging.Action(string(entry.Action)),
			logging.Error(err),
		)
		return nil
	}
	if count < th.count {
		return nil
	}

	alert := &models.SecurityAlert{
		ID:        uuid.New().String(),
		ActorID:   entry.ActorID,
		IPAddress: entry.IPAddress,
		RiskLevel: th.risk,
		Alerts:    []string{fmt.Sprintf("%s: %d events in %s", th.message, count, Window)},
		Timestamp: time.Now().UTC(),
	}

	if err := c.repo.InsertAlert(ctx, alert); err != nil {
		c.logger.ErrorContext(ctx, "failed to persist security alert",
			logging.AlertID(alert.ID),
			logging.Error(err),
		)
	}
	if err := c.notifier.Publish(ctx, alert); err != nil {
		c.logger.WarnContext(ctx, "failed to publish security alert",
			logging.AlertID(alert.ID),
			logging.Error(err),
		)
	}

	metrics.AlertsRaised.WithLabelValues(string(alert.RiskLevel)).Inc()
	actor := ""
	if alert.ActorID != nil {
		actor = *alert.ActorID
	}
	c.logger.WarnContext(ctx, "security alert raised",
		logging.AlertID(alert.ID),
		logging.ActorID(actor),
		logging.Action(string(entry.Action)),
		logging.IP(entry.IPAddress),
	)
	return alert
}
