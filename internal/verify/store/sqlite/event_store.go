package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/db"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
)

// EventStore appends lifecycle transitions to the sqlite audit log.  All
// writes go through the serialized db writer.
type EventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewEventStore(db *sql.DB, writer *dbpkg.Worker) *EventStore {
	return &EventStore{db: db, writer: writer}
}

func (s *EventStore) RecordEvent(ctx context.Context, ev store.LifecycleEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	occurredMs := ev.OccurredAt.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO lifecycle_events(
  user_id, actor_id, action, reason, occurred_at_ms
) VALUES (?, ?, ?, ?, ?);
`,
			ev.UserID, ev.ActorID, ev.Action, ev.Reason, occurredMs,
		); err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		return nil
	})
}

// EventsForUser returns the audit trail for a single user, oldest first.
func (s *EventStore) EventsForUser(ctx context.Context, userID string) ([]store.LifecycleEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, actor_id, action, reason, occurred_at_ms
FROM lifecycle_events
WHERE user_id = ?
ORDER BY occurred_at_ms ASC, event_id ASC;
`, userID)
	if err != nil {
		return nil, fmt.Errorf("EventsForUser query: %w", err)
	}
	defer rows.Close()

	var out []store.LifecycleEvent
	for rows.Next() {
		var ev store.LifecycleEvent
		var occurredMs int64
		if err := rows.Scan(&ev.UserID, &ev.ActorID, &ev.Action, &ev.Reason, &occurredMs); err != nil {
			return nil, fmt.Errorf("EventsForUser scan: %w", err)
		}
		ev.OccurredAt = time.UnixMilli(occurredMs).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
