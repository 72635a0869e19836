package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

// Default reasons applied by the command surface when staff give none.
const (
	DefaultDenyReason   = "Denied by staff"
	DefaultRevokeReason = "Manual deauthorization"
)

// WorkflowConfig carries the knobs the approval workflow needs.
type WorkflowConfig struct {
	// VerifiedRoleID is the role granted on approval and removed on
	// revocation.  Empty disables role mutations.
	VerifiedRoleID string

	// GatewayTimeout bounds every external membership call.
	GatewayTimeout time.Duration
}

// Workflow implements the admin-facing state transitions: approve, deny and
// revoke, in single and bulk form.  Gateway calls and notifications are
// best-effort; an operation succeeds iff its store mutation succeeded.
// Authorization is the caller's job — the workflow performs none.
type Workflow struct {
	store    *store.Store
	gateway  MembershipGateway
	notifier NotificationSink
	events   store.EventStore
	logger   *log.Logger
	cfg      WorkflowConfig
}

func NewWorkflow(
	st *store.Store,
	gw MembershipGateway,
	sink NotificationSink,
	events store.EventStore,
	cfg WorkflowConfig,
	logger *log.Logger,
) *Workflow {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	return &Workflow{
		store:    st,
		gateway:  gw,
		notifier: sink,
		events:   events,
		logger:   logger,
		cfg:      cfg,
	}
}

func (w *Workflow) gatewayCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, w.cfg.GatewayTimeout)
}

// Approve promotes userID to Verified.  When no Pending record exists the
// profile is synthesized from a fresh gateway lookup (manual override —
// approving a user who never completed the OAuth flow).  The group join and
// role grant are best-effort; the result reflects the store mutation alone.
func (w *Workflow) Approve(ctx context.Context, userID, actorID string) (types.UserRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return types.UserRecord{}, store.ErrInvalidUserID
	}

	pending, hasPending := w.store.PendingRecord(userID)

	// Resolve a live member: prefer the OAuth guilds.join path when an
	// access token is on file, fall back to a plain lookup.
	var member types.Member
	var haveMember bool
	if hasPending && pending.AccessToken != "" {
		gctx, cancel := w.gatewayCtx(ctx)
		m, err := w.gateway.JoinViaToken(gctx, userID, pending.AccessToken)
		cancel()
		if err != nil {
			w.logger.Printf("approve %s: token join failed: %v", userID, err)
		} else {
			member, haveMember = m, true
		}
	}
	if !haveMember {
		gctx, cancel := w.gatewayCtx(ctx)
		m, found, err := w.gateway.FetchMember(gctx, userID)
		cancel()
		if err != nil {
			w.logger.Printf("approve %s: member lookup failed: %v", userID, err)
		}
		member, haveMember = m, found
	}

	if haveMember && w.cfg.VerifiedRoleID != "" {
		gctx, cancel := w.gatewayCtx(ctx)
		if err := w.gateway.AddRole(gctx, userID, w.cfg.VerifiedRoleID); err != nil {
			w.logger.Printf("approve %s: role grant failed: %v", userID, err)
		}
		cancel()
	}

	profile := w.approveProfile(userID, pending, hasPending, member, haveMember)

	rec, err := w.store.Promote(userID, actorID, profile)
	if err != nil {
		return types.UserRecord{}, err
	}

	w.recordEvent(ctx, store.LifecycleEvent{
		UserID: userID, ActorID: actorID, Action: store.ActionApproved,
	})
	w.sendAudit(ctx, AuditEvent{
		Kind: AuditApproved, UserID: userID, ActorID: actorID, At: time.Now().UTC(),
	})
	w.sendDirect(ctx, userID,
		"🎉 Thou hast received thy Royal Seal! Welcome to the MonkeyBytes kingdom!")

	return rec, nil
}

// approveProfile picks the identity snapshot for the new Verified record:
// the pending submission if there is one, else the live member, else a
// minimal placeholder.
func (w *Workflow) approveProfile(
	userID string,
	pending types.UserRecord, hasPending bool,
	member types.Member, haveMember bool,
) types.Profile {
	if hasPending {
		return pending.Profile()
	}
	if haveMember {
		return member.Profile()
	}
	return types.Profile{
		ID:            userID,
		Username:      "Unknown",
		Discriminator: "0",
		GlobalName:    "Unknown",
	}
}

// Deny records a denial tombstone for userID.  A tombstone is written even
// when no Pending record exists — the denial of an unknown id still leaves
// an audit trail.
func (w *Workflow) Deny(ctx context.Context, userID, actorID, reason string) (types.UserRecord, error) {
	if strings.TrimSpace(reason) == "" {
		reason = DefaultDenyReason
	}

	rec, err := w.store.DenyPending(userID, actorID, reason)
	if err != nil {
		return types.UserRecord{}, err
	}

	w.recordEvent(ctx, store.LifecycleEvent{
		UserID: rec.ID, ActorID: actorID, Action: store.ActionDenied, Reason: reason,
	})
	w.sendAudit(ctx, AuditEvent{
		Kind: AuditDenied, UserID: rec.ID, ActorID: actorID, Reason: reason, At: time.Now().UTC(),
	})
	w.sendDirect(ctx, rec.ID, "❌ Thy petition hath been declined by the royal council.")

	return rec, nil
}

// Revoke removes the verified role (best-effort) and moves userID to a
// Revoked tombstone, preserving the prior profile fields.
func (w *Workflow) Revoke(ctx context.Context, userID, actorID, reason string) (types.UserRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return types.UserRecord{}, store.ErrInvalidUserID
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultRevokeReason
	}

	if w.cfg.VerifiedRoleID != "" {
		gctx, cancel := w.gatewayCtx(ctx)
		if err := w.gateway.RemoveRole(gctx, userID, w.cfg.VerifiedRoleID); err != nil {
			w.logger.Printf("revoke %s: role removal failed: %v", userID, err)
		}
		cancel()
	}

	rec, err := w.store.RevokeVerified(userID, actorID, reason)
	if err != nil {
		return types.UserRecord{}, err
	}

	w.recordEvent(ctx, store.LifecycleEvent{
		UserID: userID, ActorID: actorID, Action: store.ActionRevoked, Reason: reason,
	})
	w.sendAudit(ctx, AuditEvent{
		Kind: AuditRevoked, UserID: userID, ActorID: actorID, Reason: reason, At: time.Now().UTC(),
	})
	w.sendDirect(ctx, userID, fmt.Sprintf("⚠️ Thy seal hath been revoked. Reason: %s", reason))

	return rec, nil
}

// BulkFailure records one failed item of a bulk run.
type BulkFailure struct {
	UserID string
	Err    error
}

// BulkResult aggregates a bulk run.  Attempted counts items actually
// processed; when the context is cancelled mid-run the remaining snapshot
// ids are skipped and never half-applied.
type BulkResult struct {
	Attempted int
	Succeeded int
	Failed    []BulkFailure
}

// ApproveAll approves every currently Pending user.  The id set is
// snapshotted before iterating, so records added mid-run are not processed;
// items are processed sequentially and one item's failure never aborts the
// remainder.
func (w *Workflow) ApproveAll(ctx context.Context, actorID string) BulkResult {
	ids := w.store.PendingIDs()
	res := w.runBulk(ctx, ids, func(id string) error {
		_, err := w.Approve(ctx, id, actorID)
		return err
	})

	w.sendAudit(ctx, AuditEvent{
		Kind:    AuditBulkReport,
		ActorID: actorID,
		Details: bulkDetails("approved", res),
		At:      time.Now().UTC(),
	})
	return res
}

// RevokeAll revokes every currently Verified user with the given reason.
func (w *Workflow) RevokeAll(ctx context.Context, actorID, reason string) BulkResult {
	if strings.TrimSpace(reason) == "" {
		reason = "Mass deauth"
	}

	ids := w.store.VerifiedIDs()
	res := w.runBulk(ctx, ids, func(id string) error {
		_, err := w.Revoke(ctx, id, actorID, reason)
		return err
	})

	w.sendAudit(ctx, AuditEvent{
		Kind:    AuditBulkReport,
		ActorID: actorID,
		Reason:  reason,
		Details: bulkDetails("revoked", res),
		At:      time.Now().UTC(),
	})
	return res
}

func (w *Workflow) runBulk(ctx context.Context, ids []string, op func(id string) error) BulkResult {
	var res BulkResult
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++
		if err := op(id); err != nil {
			w.logger.Printf("bulk: %s failed: %v", id, err)
			res.Failed = append(res.Failed, BulkFailure{UserID: id, Err: err})
			continue
		}
		res.Succeeded++
	}
	return res
}

func bulkDetails(verb string, res BulkResult) map[string]string {
	return map[string]string{
		"operation": verb,
		"succeeded": strconv.Itoa(res.Succeeded),
		"attempted": strconv.Itoa(res.Attempted),
	}
}

// recordEvent appends to the audit log.  Errors are intentionally not
// returned to the caller — a failed audit write must not undo or block the
// transition it describes.
func (w *Workflow) recordEvent(ctx context.Context, ev store.LifecycleEvent) {
	if w.events == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	if err := w.events.RecordEvent(ctx, ev); err != nil {
		w.logger.Printf("event log: %s %s: %v", ev.Action, ev.UserID, err)
	}
}

func (w *Workflow) sendAudit(ctx context.Context, ev AuditEvent) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.SendAudit(ctx, ev); err != nil {
		w.logger.Printf("audit notification %s: %v", ev.Kind, err)
	}
}

func (w *Workflow) sendDirect(ctx context.Context, userID, text string) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.SendDirect(ctx, userID, text); err != nil {
		w.logger.Printf("direct notification to %s: %v", userID, err)
	}
}
