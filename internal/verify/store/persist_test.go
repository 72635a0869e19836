package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

func TestFilePersister_MissingFile_IsFirstRun(t *testing.T) {
	p := store.NewFilePersister(filepath.Join(t.TempDir(), "users.json"))

	_, found, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Error("expected found=false for a missing document")
	}
}

func TestFilePersister_SaveThenLoad_RoundTrips(t *testing.T) {
	// Nested dirs must be created by Save.
	path := filepath.Join(t.TempDir(), "data", "users.json")
	p := store.NewFilePersister(path)

	submitted := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	doc := store.NewDocument()
	doc.Pending["100"] = types.UserRecord{
		ID:          "100",
		Username:    "alice",
		AccessToken: "tok",
		SubmittedAt: &submitted,
	}
	doc.Verified["200"] = types.UserRecord{ID: "200", Username: "bob", ApprovedBy: "admin-1"}
	doc.Revoked["300"] = types.UserRecord{ID: "300", Reason: "rule violation"}
	doc.Statistics.TotalVerified = 7
	doc.Statistics.VerificationsByDay["2025-03-15"] = 2

	if err := p.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatal("expected found=true after save")
	}
	if got.Pending["100"].AccessToken != "tok" {
		t.Errorf("expected pending token to round-trip, got %q", got.Pending["100"].AccessToken)
	}
	if got.Pending["100"].SubmittedAt == nil || !got.Pending["100"].SubmittedAt.Equal(submitted) {
		t.Error("expected submittedAt to round-trip")
	}
	if got.Verified["200"].ApprovedBy != "admin-1" {
		t.Errorf("expected approvedBy to round-trip, got %q", got.Verified["200"].ApprovedBy)
	}
	if got.Revoked["300"].Reason != "rule violation" {
		t.Errorf("expected tombstone reason to round-trip, got %q", got.Revoked["300"].Reason)
	}
	if got.Statistics.TotalVerified != 7 {
		t.Errorf("expected totalVerified=7, got %d", got.Statistics.TotalVerified)
	}
	if got.Statistics.VerificationsByDay["2025-03-15"] != 2 {
		t.Error("expected day bucket to round-trip")
	}
}

func TestFilePersister_Save_ReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	p := store.NewFilePersister(path)

	doc := store.NewDocument()
	doc.Verified["200"] = types.UserRecord{ID: "200", Username: "bob"}
	if err := p.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	doc2 := store.NewDocument()
	doc2.Verified["201"] = types.UserRecord{ID: "201", Username: "carol"}
	if err := p.Save(doc2); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, _, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := got.Verified["200"]; ok {
		t.Error("old document content should be fully replaced")
	}
	if _, ok := got.Verified["201"]; !ok {
		t.Error("new document content missing")
	}
}
