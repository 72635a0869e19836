package service

import (
	"context"
	"time"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

// MembershipGateway queries and mutates live group role membership.  Every
// call may fail transiently; callers treat all of them as best-effort unless
// stated otherwise, and bound each call with a timeout so one unresponsive
// call cannot stall a bulk loop.
type MembershipGateway interface {
	// FetchMember looks up a single member.  The second result is false
	// when the user is not in the group, which is not an error.
	FetchMember(ctx context.Context, userID string) (types.Member, bool, error)

	// FetchAllMembers returns everyone currently in the group, with their
	// role sets, as one coherent snapshot.
	FetchAllMembers(ctx context.Context) ([]types.Member, error)

	// MemberHasRole reports whether the member currently holds roleID.
	MemberHasRole(ctx context.Context, userID, roleID string) (bool, error)

	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error

	// JoinViaToken adds the user to the group using their OAuth access
	// token (the guilds.join path).
	JoinViaToken(ctx context.Context, userID, accessToken string) (types.Member, error)
}

// AuditKind classifies audit events so the sink can route and format them.
type AuditKind string

const (
	AuditApproved   AuditKind = "approved"
	AuditDenied     AuditKind = "denied"
	AuditRevoked    AuditKind = "revoked"
	AuditBulkReport AuditKind = "bulk_report"
	AuditSyncReport AuditKind = "sync_report"
	AuditHeartbeat  AuditKind = "heartbeat"
	AuditDeparted   AuditKind = "departed"
)

// AuditEvent is a semantic audit notification.  Formatting (embeds, colors,
// channel choice) belongs to the sink implementation, not the core.
type AuditEvent struct {
	Kind    AuditKind
	UserID  string
	ActorID string
	Reason  string
	Details map[string]string
	At      time.Time
}

// NotificationSink delivers best-effort user DMs and audit notifications.
// Failures are logged by the caller and never affect the caller's own
// success result or persisted state.
type NotificationSink interface {
	SendDirect(ctx context.Context, userID, text string) error
	SendAudit(ctx context.Context, ev AuditEvent) error
}
