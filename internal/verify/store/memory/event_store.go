package memory

import (
	"context"
	"sync"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
)

// EventStore is an in-memory append-only log of lifecycle transitions.
// It is intended for use in tests and as a fallback when the sqlite log
// cannot be opened.
type EventStore struct {
	mu     sync.Mutex
	events []store.LifecycleEvent
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) RecordEvent(_ context.Context, ev store.LifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of all recorded events.  Test-only helper.
func (s *EventStore) Events() []store.LifecycleEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.LifecycleEvent, len(s.events))
	copy(out, s.events)
	return out
}
