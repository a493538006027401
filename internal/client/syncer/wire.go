package syncer

import (
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/tags"
	"github.com/dmitrijs2005/daybook/internal/syncpb"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// toWire converts a submitted entry into the document sent to the remote.
func toWire(e models.JournalEntry) syncpb.Entry {
	w := syncpb.Entry{
		ID:          e.ID,
		UserID:      e.UserID,
		Day:         e.Day,
		Content:     e.Content,
		CreatedAt:   timex.Instant(e.CreatedAt),
		UpdatedAt:   timex.Instant(e.UpdatedAt),
		SyncVersion: e.SyncVersion,
	}
	if e.SubmittedAt != nil {
		w.SubmittedAt = timex.Instant(*e.SubmittedAt)
	}
	return w
}

// fromWire converts a pulled document. A missing SubmittedAt stays nil so
// the store rejects the document instead of inventing a zero instant.
func fromWire(w syncpb.Entry) models.JournalEntry {
	var submitted *time.Time
	if !w.SubmittedAt.IsZero() {
		at := timex.Instant(w.SubmittedAt)
		submitted = &at
	}
	rev := w.Revision
	return models.JournalEntry{
		ID:             w.ID,
		UserID:         w.UserID,
		Day:            w.Day,
		Content:        w.Content,
		Tags:           tags.Parse(w.Content),
		Status:         models.StatusSubmitted,
		CreatedAt:      timex.Instant(w.CreatedAt),
		SubmittedAt:    submitted,
		UpdatedAt:      timex.Instant(w.UpdatedAt),
		SyncVersion:    w.SyncVersion,
		RemoteRevision: &rev,
	}
}
