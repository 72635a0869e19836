package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

// SyncActorID is the sentinel actor recorded on reconciliation corrections.
const SyncActorID = "system-sync"

// syncTombstoneReason marks users tombstoned because they left the group.
const syncTombstoneReason = "not found during sync"

// ReconcilerConfig carries the knobs the reconciliation engine needs.
type ReconcilerConfig struct {
	VerifiedRoleID string
	GatewayTimeout time.Duration
}

// SyncReport summarizes one reconciliation pass.
type SyncReport struct {
	Added         int // role-holders inserted into the store as Verified
	RolesRepaired int // role re-grants attempted for tracked members
	Tombstoned    int // tracked users gone from the group, moved to Revoked
}

func (r SyncReport) String() string {
	return fmt.Sprintf("added=%d roles_repaired=%d tombstoned=%d",
		r.Added, r.RolesRepaired, r.Tombstoned)
}

// Reconciler detects and repairs divergence between the store and live
// group membership.  One pass fetches a single coherent snapshot, computes
// three disjoint correction sets against the store's Verified ids, applies
// the store-side corrections with a single persist, and re-grants missing
// roles fire-and-forget.  Membership absence always dominates role absence:
// a departed member is tombstoned, never merely role-repaired.
//
// Re-running against an unchanged snapshot yields three empty sets; the
// periodic pass is also the retry mechanism for failed role re-grants.
type Reconciler struct {
	store    *store.Store
	gateway  MembershipGateway
	notifier NotificationSink
	events   store.EventStore
	logger   *log.Logger
	cfg      ReconcilerConfig

	cancel context.CancelFunc
	done   chan struct{}
}

func NewReconciler(
	st *store.Store,
	gw MembershipGateway,
	sink NotificationSink,
	events store.EventStore,
	cfg ReconcilerConfig,
	logger *log.Logger,
) *Reconciler {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 60 * time.Second
	}
	return &Reconciler{
		store:    st,
		gateway:  gw,
		notifier: sink,
		events:   events,
		logger:   logger,
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

// Run executes one reconciliation pass.  Failing to fetch the snapshot
// aborts the pass (there is nothing coherent to reconcile against); every
// later step is best-effort.
func (r *Reconciler) Run(ctx context.Context) (SyncReport, error) {
	sctx, cancel := context.WithTimeout(ctx, r.cfg.GatewayTimeout)
	members, err := r.gateway.FetchAllMembers(sctx)
	cancel()
	if err != nil {
		return SyncReport{}, fmt.Errorf("fetch membership snapshot: %w", err)
	}

	byID := make(map[string]types.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	verifiedIDs := r.store.VerifiedIDs()
	verifiedSet := make(map[string]struct{}, len(verifiedIDs))
	for _, id := range verifiedIDs {
		verifiedSet[id] = struct{}{}
	}

	// 1. Role-holders the store doesn't track yet.  Bots never get records.
	var discovered []types.Member
	for _, m := range members {
		if m.Bot || !m.HasRole(r.cfg.VerifiedRoleID) {
			continue
		}
		if _, ok := verifiedSet[m.ID]; !ok {
			discovered = append(discovered, m)
		}
	}

	// 2 & 3. Tracked users missing the role, and tracked users gone from
	// the group entirely.  Absence from the group wins.
	var repair []string
	var departed []string
	for _, id := range verifiedIDs {
		m, present := byID[id]
		if !present {
			departed = append(departed, id)
			continue
		}
		if !m.HasRole(r.cfg.VerifiedRoleID) {
			repair = append(repair, id)
		}
	}

	var report SyncReport
	report.Added, report.Tombstoned = r.store.ApplySync(discovered, departed, SyncActorID, syncTombstoneReason)

	for _, m := range discovered {
		r.recordEvent(ctx, store.LifecycleEvent{
			UserID: m.ID, ActorID: SyncActorID, Action: store.ActionSyncAdded,
		})
	}
	for _, id := range departed {
		r.recordEvent(ctx, store.LifecycleEvent{
			UserID: id, ActorID: SyncActorID, Action: store.ActionSyncTombstone, Reason: syncTombstoneReason,
		})
	}

	// Fire-and-forget role repairs: a failure here is retried by the next
	// pass, since the member will still show up without the role.
	for _, id := range repair {
		gctx, cancel := context.WithTimeout(ctx, r.cfg.GatewayTimeout)
		if err := r.gateway.AddRole(gctx, id, r.cfg.VerifiedRoleID); err != nil {
			r.logger.Printf("sync: role repair for %s failed: %v", id, err)
		}
		cancel()
		report.RolesRepaired++
	}

	if r.notifier != nil {
		ev := AuditEvent{
			Kind: AuditSyncReport,
			Details: map[string]string{
				"added":          strconv.Itoa(report.Added),
				"roles_repaired": strconv.Itoa(report.RolesRepaired),
				"tombstoned":     strconv.Itoa(report.Tombstoned),
			},
			At: time.Now().UTC(),
		}
		if err := r.notifier.SendAudit(ctx, ev); err != nil {
			r.logger.Printf("sync: audit notification: %v", err)
		}
	}

	return report, nil
}

// StartPeriodic begins a background loop re-running the reconciliation on
// the given interval.  An interval <= 0 disables the loop.  The loop exits
// when ctx is cancelled or Stop is called; the startup pass is expected to
// have been run by the caller already, so the first tick waits a full
// interval.
func (r *Reconciler) StartPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		r.logger.Printf("periodic sync disabled")
		close(r.done)
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx, interval)
	r.logger.Printf("periodic sync started (interval=%s)", interval)
}

// Stop signals the periodic loop to exit and waits for it to finish.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *Reconciler) loop(ctx context.Context, interval time.Duration) {
	defer close(r.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := r.Run(ctx)
			if err != nil {
				r.logger.Printf("periodic sync: %v", err)
				continue
			}
			if report.Added > 0 || report.RolesRepaired > 0 || report.Tombstoned > 0 {
				r.logger.Printf("periodic sync: %s", report)
			}
		}
	}
}

func (r *Reconciler) recordEvent(ctx context.Context, ev store.LifecycleEvent) {
	if r.events == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	if err := r.events.RecordEvent(ctx, ev); err != nil {
		r.logger.Printf("event log: %s %s: %v", ev.Action, ev.UserID, err)
	}
}
