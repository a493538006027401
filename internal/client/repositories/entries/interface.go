package entries

import (
	"context"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// Repository describes storage operations on journal entries.
type Repository interface {
	// GetByID returns the entry or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.JournalEntry, error)

	// GetByDay returns userID's entry for day or common.ErrNotFound.
	GetByDay(ctx context.Context, userID string, day timex.Date) (*models.JournalEntry, error)

	// Insert stores a new row. A second row for the same (user, day) fails.
	Insert(ctx context.Context, e *models.JournalEntry) error

	// Update overwrites every column of the row with e.ID.
	Update(ctx context.Context, e *models.JournalEntry) error

	// UpdateSync writes only the sync bookkeeping columns.
	UpdateSync(ctx context.Context, id string, s models.SyncState) error

	// Archive copies e's content into the history table.
	Archive(ctx context.Context, e *models.JournalEntry, at time.Time) error

	// History returns archived versions of an entry, oldest first.
	History(ctx context.Context, id string) ([]models.JournalEntry, error)

	ListDrafts(ctx context.Context, userID string) ([]models.JournalEntry, error)
	SubmittedDays(ctx context.Context, userID string) ([]timex.Date, error)

	// ListPendingPush returns submitted entries awaiting a push whose next
	// attempt is due at now, excluding those that need a manual sync.
	ListPendingPush(ctx context.Context, userID string, now time.Time) ([]models.JournalEntry, error)

	// ListRange returns entries with from <= day <= to, ordered by day.
	ListRange(ctx context.Context, userID string, from, to timex.Date) ([]models.JournalEntry, error)
}
