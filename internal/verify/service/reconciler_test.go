package service_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/service"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store/memory"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

func newTestReconciler(t *testing.T, gw *fakeGateway) (*service.Reconciler, *store.Store, *fakeSink, *memory.EventStore) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	st := store.New(nopPersister{}, logger)
	sink := newFakeSink()
	events := memory.NewEventStore()
	rc := service.NewReconciler(st, gw, sink, events, service.ReconcilerConfig{
		VerifiedRoleID: testRoleID,
	}, logger)
	return rc, st, sink, events
}

func mustPromote(t *testing.T, st *store.Store, id, username string) {
	t.Helper()
	if _, err := st.Promote(id, "admin-1", types.Profile{ID: id, Username: username}); err != nil {
		t.Fatalf("Promote %s: %v", id, err)
	}
}

// ── One full pass ────────────────────────────────────────────────────────────

func TestRun_ComputesAllThreeCorrectionSets(t *testing.T) {
	// A is tracked and healthy, B is tracked with the role missing, D holds
	// the role but was never tracked, E is a bot role-holder.
	gw := newFakeGateway(
		member("A", "ana", testRoleID),
		member("B", "ben"),
		member("D", "dee", testRoleID),
		types.Member{ID: "E", Username: "eve-bot", Bot: true, RoleIDs: []string{testRoleID}},
	)
	rc, st, sink, events := newTestReconciler(t, gw)
	mustPromote(t, st, "A", "ana")
	mustPromote(t, st, "B", "ben")
	mustPromote(t, st, "C", "cat") // gone from the group

	report, err := rc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Added != 1 || report.RolesRepaired != 1 || report.Tombstoned != 1 {
		t.Fatalf("expected 1/1/1, got %+v", report)
	}

	// Discovered role-holder becomes Verified, credited to the sync actor.
	rec, ok := st.VerifiedRecord("D")
	if !ok {
		t.Fatal("discovered role-holder should be verified")
	}
	if rec.ApprovedBy != service.SyncActorID {
		t.Errorf("expected approvedBy=%s, got %q", service.SyncActorID, rec.ApprovedBy)
	}

	// Bots never get records.
	if st.IsVerified("E") {
		t.Error("bot role-holders must not be tracked")
	}

	// Departed member is tombstoned, not repaired.
	if st.IsVerified("C") {
		t.Error("departed member should no longer be verified")
	}
	tomb, ok := st.RevokedRecord("C")
	if !ok {
		t.Fatal("departed member should have a tombstone")
	}
	if tomb.Reason != "not found during sync" {
		t.Errorf("expected sync tombstone reason, got %q", tomb.Reason)
	}
	for _, id := range gw.rolesAdded {
		if id == "C" {
			t.Error("departed member must not get a role repair")
		}
	}

	// Tracked member missing the role got it back.
	if len(gw.rolesAdded) != 1 || gw.rolesAdded[0] != "B" {
		t.Errorf("expected exactly one role repair for B, got %v", gw.rolesAdded)
	}

	// One correction event per store-side change.
	var added, tombstoned int
	for _, ev := range events.Events() {
		switch ev.Action {
		case store.ActionSyncAdded:
			added++
		case store.ActionSyncTombstone:
			tombstoned++
		}
	}
	if added != 1 || tombstoned != 1 {
		t.Errorf("expected 1 sync_added and 1 sync_tombstoned event, got %d/%d", added, tombstoned)
	}

	if got := sink.auditsOfKind(service.AuditSyncReport); len(got) != 1 {
		t.Fatalf("expected one sync report, got %d", len(got))
	}
}

func TestRun_SecondPass_FindsNothing(t *testing.T) {
	gw := newFakeGateway(
		member("B", "ben"),
		member("D", "dee", testRoleID),
	)
	rc, st, _, _ := newTestReconciler(t, gw)
	mustPromote(t, st, "B", "ben")
	mustPromote(t, st, "C", "cat")

	if _, err := rc.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// The fake gateway applied the role repair, so the next snapshot is clean.
	report, err := rc.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Added != 0 || report.RolesRepaired != 0 || report.Tombstoned != 0 {
		t.Errorf("expected an empty second pass, got %+v", report)
	}
}

func TestRun_SnapshotFailure_AbortsWithoutChanges(t *testing.T) {
	gw := newFakeGateway()
	gw.fetchAllErr = errors.New("gateway unavailable")
	rc, st, sink, _ := newTestReconciler(t, gw)
	mustPromote(t, st, "A", "ana")

	if _, err := rc.Run(context.Background()); err == nil {
		t.Fatal("expected the snapshot failure surfaced")
	}
	if !st.IsVerified("A") {
		t.Error("no store change may happen without a snapshot")
	}
	if len(sink.audits) != 0 {
		t.Error("an aborted pass must not report")
	}
}

func TestRun_RepairFailure_StillCountsTheAttempt(t *testing.T) {
	gw := newFakeGateway(member("B", "ben"))
	gw.addRoleErr = errors.New("missing permissions")
	rc, st, _, _ := newTestReconciler(t, gw)
	mustPromote(t, st, "B", "ben")

	report, err := rc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The count reflects attempts; the next pass retries the grant.
	if report.RolesRepaired != 1 {
		t.Errorf("expected rolesRepaired=1, got %d", report.RolesRepaired)
	}
	if !st.IsVerified("B") {
		t.Error("a failed repair must not change the member's record")
	}
}

func TestRun_PendingUsers_AreIgnored(t *testing.T) {
	gw := newFakeGateway(member("P", "pat"))
	rc, st, _, _ := newTestReconciler(t, gw)
	if _, err := st.UpsertPending(types.Profile{ID: "P", Username: "pat"}, "tok"); err != nil {
		t.Fatalf("UpsertPending: %v", err)
	}

	report, err := rc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Added != 0 || report.Tombstoned != 0 {
		t.Errorf("pending users are outside reconciliation, got %+v", report)
	}
	if _, ok := st.PendingRecord("P"); !ok {
		t.Error("pending record must be untouched")
	}
}

// ── Periodic loop ────────────────────────────────────────────────────────────

func TestStartPeriodic_ZeroInterval_IsDisabled(t *testing.T) {
	rc, _, _, _ := newTestReconciler(t, newFakeGateway())

	rc.StartPeriodic(context.Background(), 0)
	rc.Stop() // must not hang
}
