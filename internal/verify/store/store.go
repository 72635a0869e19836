package store

import (
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

var (
	ErrInvalidUserID = errors.New("user id is required")
)

// Store is the sole authority for what the service believes about each
// user.  It keeps one canonical active record per id (Pending or Verified)
// plus a separate map of Revoked tombstones; the per-state views handed to
// callers are derived from the canonical records, never maintained in
// parallel.
//
// All mutations are serialized behind a single mutex and are followed by a
// whole-document persist.  A persist failure is logged and reported through
// LastPersistErr, but never rolls back the in-memory mutation — the next
// mutation rewrites the full document anyway.
type Store struct {
	mu      sync.Mutex
	active  map[string]types.UserRecord // Pending or Verified, keyed by id
	revoked map[string]types.UserRecord // historical tombstones
	stats   types.Statistics

	persister Persister
	logger    *log.Logger
	now       func() time.Time

	persistErr error
}

// Option customizes Store construction.
type Option func(*Store)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

func New(p Persister, logger *log.Logger, opts ...Option) *Store {
	s := &Store{
		active:    make(map[string]types.UserRecord),
		revoked:   make(map[string]types.UserRecord),
		stats:     types.Statistics{VerificationsByDay: make(map[string]int)},
		persister: p,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory state with the persisted document.  A missing
// document is a normal first run.  On a read or decode failure the store
// stays empty and usable; the error is returned so the caller can log it.
//
// If a hand-edited document lists an id in both the pending and verified
// maps, the verified entry wins and the duplicate is dropped, restoring the
// mutual-exclusion invariant at the boundary.
func (s *Store) Load() error {
	doc, found, err := s.persister.Load()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = make(map[string]types.UserRecord)
	s.revoked = make(map[string]types.UserRecord)
	s.stats = doc.Statistics
	if s.stats.VerificationsByDay == nil {
		s.stats.VerificationsByDay = make(map[string]int)
	}

	for id, rec := range doc.Verified {
		rec.ID = id
		rec.State = types.StateVerified
		s.active[id] = rec
	}
	for id, rec := range doc.Pending {
		if prev, ok := s.active[id]; ok && prev.State == types.StateVerified {
			s.logger.Printf("load: id %s present in both pending and verified, keeping verified", id)
			continue
		}
		rec.ID = id
		rec.State = types.StatePending
		s.active[id] = rec
	}
	for id, rec := range doc.Revoked {
		rec.ID = id
		rec.State = types.StateRevoked
		s.revoked[id] = rec
	}

	if err != nil {
		return err
	}
	if !found {
		// First run: write the empty document so the path is known good.
		s.persistLocked()
	}
	return nil
}

// UpsertPending inserts or overwrites the Pending record for the profile's
// id.  An id that is currently Verified keeps its Verified record untouched:
// a stray re-verification must not demote a member, and the command surface
// already refuses to start the flow for verified users.
func (s *Store) UpsertPending(profile types.Profile, accessToken string) (types.UserRecord, error) {
	id := strings.TrimSpace(profile.ID)
	if id == "" {
		return types.UserRecord{}, ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.active[id]; ok && prev.State == types.StateVerified {
		return prev, nil
	}

	now := s.now()
	rec := types.UserRecord{
		ID:            id,
		State:         types.StatePending,
		Username:      profile.Username,
		Discriminator: profile.Discriminator,
		GlobalName:    profile.GlobalName,
		Email:         profile.Email,
		Avatar:        profile.Avatar,
		AccessToken:   accessToken,
		SubmittedAt:   &now,
	}
	s.active[id] = rec
	s.persistLocked()
	return rec, nil
}

// Promote removes any Pending record for id and writes a Verified record
// built from profile.  The approver id and the verification timestamp are
// recorded and the verification counters are bumped in the same critical
// section as the record mutation.
func (s *Store) Promote(id, approverID string, profile types.Profile) (types.UserRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.UserRecord{}, ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := types.UserRecord{
		ID:            id,
		State:         types.StateVerified,
		Username:      profile.Username,
		Discriminator: profile.Discriminator,
		GlobalName:    profile.GlobalName,
		Email:         profile.Email,
		Avatar:        profile.Avatar,
		VerifiedAt:    &now,
		ApprovedBy:    approverID,
	}
	s.active[id] = rec

	s.stats.TotalVerified++
	s.stats.VerificationsByDay[types.DayKey(now)]++

	s.persistLocked()
	return rec, nil
}

// DenyPending removes any Pending record for id and writes a Revoked
// tombstone carrying the reason.  The tombstone is written even when no
// Pending record existed — a denial of an unknown id still leaves an audit
// trail.
func (s *Store) DenyPending(id, actorID, reason string) (types.UserRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.UserRecord{}, ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.active[id]; ok && prev.State == types.StatePending {
		delete(s.active, id)
	}

	now := s.now()
	rec := types.UserRecord{
		ID:             id,
		State:          types.StateRevoked,
		DeauthorizedAt: &now,
		DeauthorizedBy: actorID,
		Reason:         reason,
	}
	s.revoked[id] = rec

	s.persistLocked()
	return rec, nil
}

// RevokeVerified removes any Verified record for id and writes a Revoked
// tombstone, preserving the prior profile fields.  totalDeauths is bumped in
// the same critical section.  A Pending record for the same id, if one
// exists instead, is left untouched.
func (s *Store) RevokeVerified(id, actorID, reason string) (types.UserRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.UserRecord{}, ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.revokeLocked(id, actorID, reason)
	s.persistLocked()
	return rec, nil
}

// revokeLocked performs the verified→revoked move without persisting.
// Caller must hold s.mu.
func (s *Store) revokeLocked(id, actorID, reason string) types.UserRecord {
	now := s.now()

	rec := types.UserRecord{ID: id}
	if prev, ok := s.active[id]; ok && prev.State == types.StateVerified {
		rec = prev
		rec.AccessToken = ""
		delete(s.active, id)
	}

	rec.State = types.StateRevoked
	rec.DeauthorizedAt = &now
	rec.DeauthorizedBy = actorID
	rec.Reason = reason
	s.revoked[id] = rec

	s.stats.TotalDeauths++
	return rec
}

// ApplySync applies a reconciliation outcome in one critical section with a
// single persist: discovered role-holders are inserted as Verified and
// departed ids are moved to Revoked tombstones.  Both lists are re-checked
// against current state so re-applying an already-applied outcome mutates
// nothing.
func (s *Store) ApplySync(discovered []types.Member, departedIDs []string, actorID, reason string) (added, tombstoned int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, m := range discovered {
		if prev, ok := s.active[m.ID]; ok && prev.State == types.StateVerified {
			continue
		}
		p := m.Profile()
		ts := now
		s.active[m.ID] = types.UserRecord{
			ID:            m.ID,
			State:         types.StateVerified,
			Username:      p.Username,
			Discriminator: p.Discriminator,
			GlobalName:    p.GlobalName,
			Avatar:        p.Avatar,
			VerifiedAt:    &ts,
			ApprovedBy:    actorID,
		}
		s.stats.TotalVerified++
		s.stats.VerificationsByDay[types.DayKey(now)]++
		added++
	}

	for _, id := range departedIDs {
		prev, ok := s.active[id]
		if !ok || prev.State != types.StateVerified {
			continue
		}
		s.revokeLocked(id, actorID, reason)
		tombstoned++
	}

	if added > 0 || tombstoned > 0 {
		s.persistLocked()
	}
	return added, tombstoned
}

// persistLocked writes the whole document.  Caller must hold s.mu.
func (s *Store) persistLocked() {
	doc := s.documentLocked()
	if err := s.persister.Save(doc); err != nil {
		s.persistErr = err
		s.logger.Printf("store: persist failed (keeping in-memory state): %v", err)
		return
	}
	s.persistErr = nil
}

// Persist forces a whole-document write outside any mutation.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked()
	return s.persistErr
}

// LastPersistErr reports the outcome of the most recent persist attempt.
func (s *Store) LastPersistErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistErr
}

// documentLocked derives the on-disk layout from the canonical records.
// Caller must hold s.mu.
func (s *Store) documentLocked() Document {
	doc := NewDocument()
	for id, rec := range s.active {
		switch rec.State {
		case types.StatePending:
			doc.Pending[id] = rec
		case types.StateVerified:
			doc.Verified[id] = rec
		}
	}
	for id, rec := range s.revoked {
		doc.Revoked[id] = rec
	}
	doc.Statistics = s.stats.Clone()
	return doc
}

// ── Derived reads ────────────────────────────────────────────────────────────

// PendingRecord returns the Pending record for id, if one exists.
func (s *Store) PendingRecord(id string) (types.UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.active[id]
	if !ok || rec.State != types.StatePending {
		return types.UserRecord{}, false
	}
	return rec, true
}

// VerifiedRecord returns the Verified record for id, if one exists.
func (s *Store) VerifiedRecord(id string) (types.UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.active[id]
	if !ok || rec.State != types.StateVerified {
		return types.UserRecord{}, false
	}
	return rec, true
}

// RevokedRecord returns the tombstone for id, if one exists.
func (s *Store) RevokedRecord(id string) (types.UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.revoked[id]
	return rec, ok
}

// IsVerified reports whether id currently holds a Verified record.
func (s *Store) IsVerified(id string) bool {
	_, ok := s.VerifiedRecord(id)
	return ok
}

// PendingIDs returns the sorted ids of all Pending records.
func (s *Store) PendingIDs() []string {
	return s.idsInState(types.StatePending)
}

// VerifiedIDs returns the sorted ids of all Verified records.
func (s *Store) VerifiedIDs() []string {
	return s.idsInState(types.StateVerified)
}

func (s *Store) idsInState(state types.AccessState) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.active))
	for id, rec := range s.active {
		if rec.State == state {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// PendingRecords returns all Pending records sorted by id.
func (s *Store) PendingRecords() []types.UserRecord {
	return s.recordsInState(types.StatePending)
}

// VerifiedRecords returns all Verified records sorted by id.
func (s *Store) VerifiedRecords() []types.UserRecord {
	return s.recordsInState(types.StateVerified)
}

func (s *Store) recordsInState(state types.AccessState) []types.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.UserRecord, 0, len(s.active))
	for _, rec := range s.active {
		if rec.State == state {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Counts returns the number of records in each state.
func (s *Store) Counts() (pending, verified, revoked int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.active {
		switch rec.State {
		case types.StatePending:
			pending++
		case types.StateVerified:
			verified++
		}
	}
	return pending, verified, len(s.revoked)
}

// Stats returns a copy of the running counters.
func (s *Store) Stats() types.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Clone()
}
