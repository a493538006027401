package models

import "time"

// ErrorKind classifies the last failed sync attempt of an entry.
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = ""
	ErrorKindUnavailable  ErrorKind = "unavailable"
	ErrorKindUnauthorized ErrorKind = "unauthorized"
	ErrorKindConflict     ErrorKind = "conflict"
	ErrorKindRejected     ErrorKind = "rejected"
	ErrorKindUnknown      ErrorKind = "unknown"
)

// SyncState tracks push attempts for a single entry.
type SyncState struct {
	PendingPush   bool
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time
	AttemptCount  int
	LastError     ErrorKind

	// NeedsManualSync is set once the retry budget is spent. The entry stays
	// fully usable locally; only background pushes stop.
	NeedsManualSync bool
}

func (s SyncState) clone() SyncState {
	out := s
	if s.LastAttemptAt != nil {
		v := *s.LastAttemptAt
		out.LastAttemptAt = &v
	}
	if s.NextAttemptAt != nil {
		v := *s.NextAttemptAt
		out.NextAttemptAt = &v
	}
	return out
}

// Decision is the outcome of reconciling a local entry with a remote one.
type Decision int

const (
	KeepLocal Decision = iota
	TakeRemote
)

func (d Decision) String() string {
	if d == TakeRemote {
		return "take-remote"
	}
	return "keep-local"
}
