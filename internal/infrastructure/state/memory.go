// Package state implements the shared per-session analytics state: the
// provisional (anonymous) user id and the session-event counter.
package state

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryState keeps session state in process memory. It suits hosts that
// own exactly one shopper session, such as a backend-for-frontend worker.
type MemoryState struct {
	mu             sync.Mutex
	provisionalID  string
	eventsRecorded int64
}

// NewMemoryState creates an in-memory session state with a fresh
// provisional user id.
func NewMemoryState() *MemoryState {
	return &MemoryState{provisionalID: uuid.NewString()}
}

// ProvisionalUserID returns the anonymous session identifier.
func (s *MemoryState) ProvisionalUserID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provisionalID == "" {
		s.provisionalID = uuid.NewString()
	}
	return s.provisionalID
}

// IncrementEventsRecorded bumps the session-event counter by one.
func (s *MemoryState) IncrementEventsRecorded(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventsRecorded++
}

// EventsRecorded returns the current session-event counter value.
func (s *MemoryState) EventsRecorded(ctx context.Context) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventsRecorded
}
