package correlate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pathlight-platform/gatekeeper/internal/models"
)

// Notifier delivers raised alerts to the review surface. Delivery is
// fire-and-forget; the correlator logs failures and moves on.
type Notifier interface {
	Publish(ctx context.Context, alert *models.SecurityAlert) error
	Close() error
}

// NoopNotifier drops alerts (notifications disabled).
type NoopNotifier struct{}

func (n *NoopNotifier) Publish(ctx context.Context, alert *models.SecurityAlert) error { return nil }
func (n *NoopNotifier) Close() error                                                  { return nil }

// NATSNotifier publishes alerts as JSON to a configured subject.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connection failed: %w", err)
	}
	return &NATSNotifier{conn: conn, subject: subject}, nil
}

func (n *NATSNotifier) Publish(ctx context.Context, alert *models.SecurityAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}

func (n *NATSNotifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
