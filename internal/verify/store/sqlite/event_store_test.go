package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store/sqlite"
)

// ── RecordEvent — basic insert ───────────────────────────────────────────────

func TestRecordEvent_InsertsRow(t *testing.T) {
	conn := openTestDB(t)
	es := sqlite.NewEventStore(conn, newTestWriter(t, conn))

	occurred := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	err := es.RecordEvent(context.Background(), store.LifecycleEvent{
		UserID:     "100",
		ActorID:    "admin-1",
		Action:     store.ActionApproved,
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	evs, err := es.EventsForUser(context.Background(), "100")
	if err != nil {
		t.Fatalf("EventsForUser: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	ev := evs[0]
	if ev.ActorID != "admin-1" {
		t.Errorf("expected actor_id=admin-1, got %q", ev.ActorID)
	}
	if ev.Action != store.ActionApproved {
		t.Errorf("expected action=approved, got %q", ev.Action)
	}
	if !ev.OccurredAt.Equal(occurred) {
		t.Errorf("expected occurred_at=%v, got %v", occurred, ev.OccurredAt)
	}
}

// ── RecordEvent — zero timestamp defaults to now ─────────────────────────────

func TestRecordEvent_ZeroTimestamp_DefaultsToNow(t *testing.T) {
	conn := openTestDB(t)
	es := sqlite.NewEventStore(conn, newTestWriter(t, conn))

	before := time.Now().UTC().Add(-time.Second)
	err := es.RecordEvent(context.Background(), store.LifecycleEvent{
		UserID: "100", ActorID: "admin-1", Action: store.ActionDenied,
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	evs, err := es.EventsForUser(context.Background(), "100")
	if err != nil {
		t.Fatalf("EventsForUser: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].OccurredAt.Before(before) {
		t.Errorf("expected a recent timestamp, got %v", evs[0].OccurredAt)
	}
}

// ── Append-only ──────────────────────────────────────────────────────────────

func TestRecordEvent_AppendOnly_KeepsFullTrail(t *testing.T) {
	conn := openTestDB(t)
	es := sqlite.NewEventStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	base := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	trail := []store.LifecycleEvent{
		{UserID: "100", ActorID: "admin-1", Action: store.ActionApproved, OccurredAt: base},
		{UserID: "100", ActorID: "admin-2", Action: store.ActionRevoked, Reason: "rule violation", OccurredAt: base.Add(time.Hour)},
		{UserID: "100", ActorID: "system-sync", Action: store.ActionSyncAdded, OccurredAt: base.Add(2 * time.Hour)},
	}
	for _, ev := range trail {
		if err := es.RecordEvent(ctx, ev); err != nil {
			t.Fatalf("RecordEvent %s: %v", ev.Action, err)
		}
	}
	// Another user's event must not show up in the trail.
	if err := es.RecordEvent(ctx, store.LifecycleEvent{
		UserID: "200", ActorID: "admin-1", Action: store.ActionApproved, OccurredAt: base,
	}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	evs, err := es.EventsForUser(ctx, "100")
	if err != nil {
		t.Fatalf("EventsForUser: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	for i, want := range trail {
		if evs[i].Action != want.Action {
			t.Errorf("event %d: expected action=%s, got %s", i, want.Action, evs[i].Action)
		}
	}
	if evs[1].Reason != "rule violation" {
		t.Errorf("expected reason to round-trip, got %q", evs[1].Reason)
	}
}
