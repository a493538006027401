package models

import (
	"time"

	"github.com/dmitrijs2005/daybook/internal/timex"
)

// EventKind names a notification handed to the notification collaborator.
type EventKind string

const (
	EventDeadlineMissed   EventKind = "deadline.missed"
	EventMilestoneReached EventKind = "milestone.reached"
	EventSyncOffline      EventKind = "sync.offline"
	EventSyncOnline       EventKind = "sync.online"
)

// Event is a discrete, immutable record of something the user may want to
// hear about.
type Event struct {
	Kind      EventKind  `json:"kind"`
	UserID    string     `json:"user_id"`
	Day       timex.Date `json:"day,omitzero"`
	Threshold int        `json:"threshold,omitempty"`
	At        time.Time  `json:"at"`
	Message   string     `json:"message"`
}
