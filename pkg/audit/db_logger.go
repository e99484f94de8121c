package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DBLogger persists audit events to the audit_events table in Postgres
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger. The audit_events
// table is created by the accounts migrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log inserts an audit event, assigning an ID and timestamp if unset
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, event_type, status, actor_email, client_ip, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.EventType, event.Status, event.ActorEmail, event.ClientIP, event.Detail, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// List returns events newest first, optionally filtered by type
func (l *DBLogger) List(ctx context.Context, eventType EventType, limit int) ([]*Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if eventType == "" {
		rows, err = l.db.QueryContext(ctx, `
			SELECT id, event_type, status, actor_email, client_ip, detail, created_at
			FROM audit_events
			ORDER BY created_at DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = l.db.QueryContext(ctx, `
			SELECT id, event_type, status, actor_email, client_ip, detail, created_at
			FROM audit_events
			WHERE event_type = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, eventType, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var actorEmail, clientIP, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.EventType, &e.Status, &actorEmail, &clientIP, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.ActorEmail = actorEmail.String
		e.ClientIP = clientIP.String
		e.Detail = detail.String
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Purge deletes events older than the cutoff
func (l *DBLogger) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM audit_events WHERE created_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit events: %w", err)
	}
	return result.RowsAffected()
}
