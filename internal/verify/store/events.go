package store

import (
	"context"
	"time"
)

// Lifecycle actions recorded to the audit log.
const (
	ActionApproved      = "approved"
	ActionDenied        = "denied"
	ActionRevoked       = "revoked"
	ActionSyncAdded     = "sync_added"
	ActionSyncTombstone = "sync_tombstoned"
)

// LifecycleEvent captures a single state transition for the audit log.
type LifecycleEvent struct {
	UserID     string
	ActorID    string
	Action     string
	Reason     string
	OccurredAt time.Time
}

// EventStore persists lifecycle transitions as an append-only audit log.
// Writes are best-effort from the caller's perspective: a failed audit write
// must never block the transition itself.
type EventStore interface {
	RecordEvent(ctx context.Context, ev LifecycleEvent) error
}
