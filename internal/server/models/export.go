package models

import (
	"time"

	"github.com/dmitrijs2005/daybook/internal/timex"
)

// Export records one journal export uploaded to object storage.
type Export struct {
	ID         string     `db:"id"`
	UserID     string     `db:"user_id"`
	StorageKey string     `db:"storage_key"`
	From       timex.Date `db:"day_from"`
	To         timex.Date `db:"day_to"`
	Entries    int        `db:"entries"`
	CreatedAt  time.Time  `db:"created_at"`
}
