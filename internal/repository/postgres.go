package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathlight-platform/gatekeeper/internal/models"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_entries (id, timestamp, actor_id, action, resource, resource_id, details, severity, category, ip_address, user_agent, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.pool.Exec(ctx, query,
		entry.ID, entry.Timestamp, entry.ActorID, string(entry.Action),
		entry.Resource, entry.ResourceID, details, string(entry.Severity),
		string(entry.Category), entry.IPAddress, entry.UserAgent, entry.Signature,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (r *PostgresRepository) QueryAuditEntries(ctx context.Context, q models.AuditQuery) ([]models.AuditEntry, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	where := " WHERE 1=1"
	args := []interface{}{}
	arg := 0

	addFilter := func(clause string, value interface{}) {
		arg++
		where += fmt.Sprintf(" AND %s = $%d", clause, arg)
		args = append(args, value)
	}

	if q.ActorID != "" {
		addFilter("actor_id", q.ActorID)
	}
	if q.Action != "" {
		addFilter("action", string(q.Action))
	}
	if q.Resource != "" {
		addFilter("resource", q.Resource)
	}
	if q.Severity != "" {
		addFilter("severity", string(q.Severity))
	}
	if q.StartDate != nil {
		arg++
		where += fmt.Sprintf(" AND timestamp >= $%d", arg)
		args = append(args, *q.StartDate)
	}
	if q.EndDate != nil {
		arg++
		where += fmt.Sprintf(" AND timestamp <= $%d", arg)
		args = append(args, *q.EndDate)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_entries"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	query := "SELECT id, timestamp, actor_id, action, resource, resource_id, details, severity, category, ip_address, user_agent, signature FROM audit_entries" +
		where + fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d OFFSET $%d", arg+1, arg+2)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var entry models.AuditEntry
		var action, severity, category string
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.ActorID, &action,
			&entry.Resource, &entry.ResourceID, &details, &severity, &category,
			&entry.IPAddress, &entry.UserAgent, &entry.Signature); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Action = models.Action(action)
		entry.Severity = models.Severity(severity)
		entry.Category = models.Category(category)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read audit entries: %w", err)
	}

	return entries, total, nil
}

func (r *PostgresRepository) CountRecentEvents(ctx context.Context, action models.Action, actorID *string, ip string, since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM audit_entries
		WHERE action = $1
		  AND timestamp >= $2
		  AND (($3::text IS NOT NULL AND actor_id = $3) OR ($4 <> '' AND ip_address = $4))
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, string(action), since, actorID, ip).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent events: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) InsertAlert(ctx context.Context, alert *models.SecurityAlert) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	alerts, err := json.Marshal(alert.Alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal alert messages: %w", err)
	}

	query := `
		INSERT INTO security_alerts (id, actor_id, ip_address, risk_level, alerts, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.pool.Exec(ctx, query,
		alert.ID, alert.ActorID, alert.IPAddress, string(alert.RiskLevel), alerts, alert.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert security alert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListAlerts(ctx context.Context, limit int) ([]models.SecurityAlert, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, actor_id, ip_address, risk_level, alerts, timestamp
		FROM security_alerts
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list security alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.SecurityAlert{}
	for rows.Next() {
		var alert models.SecurityAlert
		var riskLevel string
		var messages []byte
		if err := rows.Scan(&alert.ID, &alert.ActorID, &alert.IPAddress, &riskLevel, &messages, &alert.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan security alert: %w", err)
		}
		alert.RiskLevel = models.Severity(riskLevel)
		if err := json.Unmarshal(messages, &alert.Alerts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert messages: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read security alerts: %w", err)
	}
	return alerts, nil
}

func (r *PostgresRepository) CreateApplication(ctx context.Context, app *models.ScholarshipApplication) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	records, err := json.Marshal(app.AcademicRecords)
	if err != nil {
		return fmt.Errorf("failed to marshal academic records: %w", err)
	}
	documents, err := json.Marshal(app.Documents)
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}

	query := `
		INSERT INTO scholarship_applications (id, scholarship_id, student_id, essay, academic_records, documents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		app.ID, app.ScholarshipID, app.StudentID, app.Essay, records, documents, app.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateApplication
		}
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateVerificationRequest(ctx context.Context, req *models.VerificationRequest) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := json.Marshal(req.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal verification data: %w", err)
	}

	query := `
		INSERT INTO verification_requests (id, type, source, data, status, submitted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.pool.Exec(ctx, query,
		req.ID, req.Type, req.Source, data, string(req.Status), req.SubmittedBy, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create verification request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetVerificationRequest(ctx context.Context, id string) (*models.VerificationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, type, source, data, status, submitted_by, created_at, updated_at
		FROM verification_requests
		WHERE id = $1
	`

	var req models.VerificationRequest
	var status string
	var data []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&req.ID, &req.Type, &req.Source, &data, &status, &req.SubmittedBy, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get verification request: %w", err)
	}
	req.Status = models.VerificationStatus(status)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal verification data: %w", err)
		}
	}
	return &req, nil
}

func (r *PostgresRepository) UpdateVerificationStatus(ctx context.Context, id string, status models.VerificationStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE verification_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update verification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateCredential(ctx context.Context, cred *models.VerifiedCredential) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	details, err := json.Marshal(cred.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal credential details: %w", err)
	}

	query := `
		INSERT INTO verified_credentials (id, request_id, holder_id, type, issuer, details, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		cred.ID, cred.RequestID, cred.HolderID, cred.Type, cred.Issuer, details, cred.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}
