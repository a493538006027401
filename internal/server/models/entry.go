package models

import (
	"time"

	"github.com/dmitrijs2005/daybook/internal/timex"
)

// Entry is a submitted journal entry as the server stores it. Revision is
// the owner's sync cursor value at the time of the last accepted write.
type Entry struct {
	ID          string     `db:"id"`
	UserID      string     `db:"user_id"`
	Day         timex.Date `db:"day"`
	Content     string     `db:"content"`
	CreatedAt   time.Time  `db:"created_at"`
	SubmittedAt time.Time  `db:"submitted_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	SyncVersion int64      `db:"sync_version"`
	Revision    int64      `db:"revision"`
}
