package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/catalogforge/catalog/pkg/observability"
)

// Logger records audit events. Recording must never fail a business
// operation: implementations report their own errors out of band.
type Logger interface {
	Record(ctx context.Context, event *Event)
}

// NopLogger discards every event.
type NopLogger struct{}

func (NopLogger) Record(context.Context, *Event) {}

// DBLogger writes events to the audit_events table.
type DBLogger struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewDBLogger creates a database-backed audit logger.
func NewDBLogger(db *sql.DB, logger *observability.Logger) *DBLogger {
	return &DBLogger{db: db, logger: logger}
}

// Record persists one event. Failures are logged, not returned, so audit
// trouble never turns into request failures.
func (l *DBLogger) Record(ctx context.Context, event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		l.logger.WithError(err).Error("Failed to encode audit detail")
		detail = []byte("{}")
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO audit_events (event_type, status, username, tenant, resource_type, resource_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.EventType, event.Status, event.Username, event.Tenant,
		event.ResourceType, event.ResourceID, detail, event.Timestamp)
	if err != nil {
		l.logger.WithError(err).WithField("event_type", event.EventType).Error("Failed to record audit event")
	}
}

// List returns the most recent events for a tenant, newest first.
func (l *DBLogger) List(ctx context.Context, tenant string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, event_type, status, username, tenant, resource_type, resource_id, detail, created_at
		FROM audit_events WHERE tenant = $1 ORDER BY id DESC LIMIT $2`, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e := &Event{}
		var detail []byte
		if err := rows.Scan(&e.ID, &e.EventType, &e.Status, &e.Username, &e.Tenant,
			&e.ResourceType, &e.ResourceID, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if err := json.Unmarshal(detail, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to decode audit detail: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
