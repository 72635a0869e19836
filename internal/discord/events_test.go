package discord_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/discord"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/service"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store/memory"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

// ──────────────────────── test fakes ────────────────────────

type nopPersister struct{}

func (nopPersister) Save(store.Document) error { return nil }
func (nopPersister) Load() (store.Document, bool, error) {
	return store.Document{}, false, nil
}

type stubGateway struct{}

func (stubGateway) FetchMember(context.Context, string) (types.Member, bool, error) {
	return types.Member{}, false, nil
}
func (stubGateway) FetchAllMembers(context.Context) ([]types.Member, error) { return nil, nil }
func (stubGateway) MemberHasRole(context.Context, string, string) (bool, error) {
	return false, nil
}
func (stubGateway) AddRole(context.Context, string, string) error { return nil }
func (stubGateway) RemoveRole(context.Context, string, string) error {
	return errors.New("unknown member")
}
func (stubGateway) JoinViaToken(context.Context, string, string) (types.Member, error) {
	return types.Member{}, errors.New("unknown member")
}

type recordingSink struct {
	mu     sync.Mutex
	dms    map[string][]string
	audits []service.AuditEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{dms: make(map[string][]string)}
}

func (s *recordingSink) SendDirect(_ context.Context, userID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dms[userID] = append(s.dms[userID], text)
	return nil
}

func (s *recordingSink) SendAudit(_ context.Context, ev service.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, ev)
	return nil
}

func (s *recordingSink) auditsOfKind(kind service.AuditKind) []service.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []service.AuditEvent
	for _, ev := range s.audits {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newTestEvents(t *testing.T) (*discord.Events, *store.Store, *recordingSink) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	st := store.New(nopPersister{}, logger)
	sink := newRecordingSink()
	wf := service.NewWorkflow(st, stubGateway{}, sink, memory.NewEventStore(), service.WorkflowConfig{
		VerifiedRoleID: "role-verified",
	}, logger)
	ev := discord.NewEvents(st, wf, sink, logger, "guild-1")
	return ev, st, sink
}

// ──────────────────────── departures ────────────────────────

func TestHandleDeparture_VerifiedUser(t *testing.T) {
	ev, st, sink := newTestEvents(t)

	if _, err := st.UpsertPending(types.Profile{ID: "42", Username: "arthur"}, "tok"); err != nil {
		t.Fatalf("UpsertPending: %v", err)
	}
	if _, err := st.Promote("42", "staff-1", types.Profile{ID: "42", Username: "arthur"}); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	ev.HandleDeparture(context.Background(), "42")

	if st.IsVerified("42") {
		t.Fatal("user should no longer be verified after departing")
	}
	rec, ok := st.RevokedRecord("42")
	if !ok {
		t.Fatal("expected a deauthorization record for the departed user")
	}
	if rec.DeauthorizedBy != "system" {
		t.Errorf("DeauthorizedBy = %q, want %q", rec.DeauthorizedBy, "system")
	}
	if rec.Reason != "user left the server" {
		t.Errorf("Reason = %q, want %q", rec.Reason, "user left the server")
	}

	if got := sink.auditsOfKind(service.AuditRevoked); len(got) != 1 {
		t.Fatalf("got %d revocation audits, want 1", len(got))
	}
	departed := sink.auditsOfKind(service.AuditDeparted)
	if len(departed) != 1 {
		t.Fatalf("got %d departure audits, want 1", len(departed))
	}
	if departed[0].UserID != "42" || departed[0].Reason != "user left the server" {
		t.Errorf("departure audit = %+v, want user 42 with the departure reason", departed[0])
	}
}

func TestHandleDeparture_UnverifiedUser_IsIgnored(t *testing.T) {
	ev, st, sink := newTestEvents(t)

	if _, err := st.UpsertPending(types.Profile{ID: "7", Username: "page"}, "tok"); err != nil {
		t.Fatalf("UpsertPending: %v", err)
	}

	ev.HandleDeparture(context.Background(), "7")

	if _, ok := st.PendingRecord("7"); !ok {
		t.Error("pending record should survive an unverified departure")
	}
	if len(sink.audits) != 0 {
		t.Errorf("got %d audits for an unverified departure, want 0", len(sink.audits))
	}
}
