package audit

import (
	"context"
	"time"
)

// Logger records audit events. Implementations must be safe for
// concurrent use.
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// List returns events in reverse chronological order, newest first,
	// optionally filtered by event type
	List(ctx context.Context, eventType EventType, limit int) ([]*Event, error)

	// Purge deletes events older than the cutoff and reports how many
	// rows were removed
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// Record is a convenience helper that fills the common fields and logs.
// Audit writes are advisory; callers decide whether the returned error
// matters.
func Record(ctx context.Context, logger Logger, eventType EventType, status EventStatus, actorEmail, clientIP, detail string) error {
	if logger == nil {
		return nil
	}
	return logger.Log(ctx, &Event{
		EventType:  eventType,
		Status:     status,
		ActorEmail: actorEmail,
		ClientIP:   clientIP,
		Detail:     detail,
	})
}

// NopLogger discards every event. Used in tests and when auditing is
// disabled.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }

func (NopLogger) List(ctx context.Context, eventType EventType, limit int) ([]*Event, error) {
	return nil, nil
}

func (NopLogger) Purge(ctx context.Context, olderThan time.Time) (int64, error) { return 0, nil }
