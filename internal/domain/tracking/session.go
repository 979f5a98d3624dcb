package tracking

import "context"

// Session is the verified session of the currently authenticated shopper.
type Session struct {
	Email string
}

// SessionProvider resolves the caller's verified session. A failure here is
// the one collaborator error Identify surfaces to its caller.
type SessionProvider interface {
	CurrentAuthenticatedUser(ctx context.Context) (Session, error)
}

// SessionState carries the shared per-session analytics state: the anonymous
// id used before authentication completes and the tally of events sent to
// the recommendation tracker. It replaces the global store the web UI kept
// this state in; callers inject an implementation instead.
type SessionState interface {
	// ProvisionalUserID returns the anonymous session identifier, minting
	// one if the session does not have one yet.
	ProvisionalUserID(ctx context.Context) string
	// IncrementEventsRecorded bumps the session-event counter by one.
	IncrementEventsRecorded(ctx context.Context)
	// EventsRecorded returns the current session-event counter value.
	EventsRecorded(ctx context.Context) int64
}
