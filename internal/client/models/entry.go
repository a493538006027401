// Package models defines the client-side journal data model.
package models

import (
	"time"

	"github.com/dmitrijs2005/daybook/internal/timex"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a journal entry.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
)

// entryNamespace seeds the per-day entry identifiers.
var entryNamespace = uuid.MustParse("6f1c2b7e-0d3a-4c55-9b7e-2a8f4e1d9c30")

// EntryID returns the identifier of userID's entry for day. It is derived
// from the pair, so every device opening the same day agrees on it and a
// new day can never collide with an earlier one.
func EntryID(userID string, day timex.Date) string {
	return uuid.NewSHA1(entryNamespace, []byte(userID+"/"+day.String())).String()
}

// TaggedActivity is a tag extracted from entry content, e.g. "#RUN 30min".
type TaggedActivity struct {
	Label   string `json:"label"`
	Minutes *int   `json:"minutes,omitempty"`
}

// JournalEntry is one user's record for one calendar day.
type JournalEntry struct {
	ID     string
	UserID string

	// Day is the calendar day in the timezone in effect at creation.
	Day timex.Date

	Content string

	// Tags is always recomputed from Content.
	Tags []TaggedActivity

	Status      Status
	CreatedAt   time.Time
	SubmittedAt *time.Time

	// UpdatedAt is bumped on every mutation and drives last-write-wins.
	UpdatedAt time.Time

	// SyncVersion is incremented on every local mutation; it breaks
	// UpdatedAt ties during conflict resolution.
	SyncVersion int64

	// RemoteRevision is the last remote revision merged or acknowledged.
	RemoteRevision *int64

	Sync SyncState
}

func (e JournalEntry) IsSubmitted() bool {
	return e.Status == StatusSubmitted
}

// Clone returns a deep copy that shares no mutable state with e.
func (e JournalEntry) Clone() JournalEntry {
	out := e
	if e.Tags != nil {
		out.Tags = make([]TaggedActivity, len(e.Tags))
		for i, t := range e.Tags {
			out.Tags[i] = TaggedActivity{Label: t.Label, Minutes: cloneInt(t.Minutes)}
		}
	}
	if e.SubmittedAt != nil {
		v := *e.SubmittedAt
		out.SubmittedAt = &v
	}
	if e.RemoteRevision != nil {
		v := *e.RemoteRevision
		out.RemoteRevision = &v
	}
	out.Sync = e.Sync.clone()
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
