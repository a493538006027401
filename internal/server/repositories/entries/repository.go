package entries

import (
	"context"

	"github.com/dmitrijs2005/daybook/internal/server/models"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

type Repository interface {
	// GetForUpdate loads id and locks the row until the surrounding
	// transaction ends. Missing rows yield common.ErrNotFound.
	GetForUpdate(ctx context.Context, id string) (*models.Entry, error)
	CreateOrUpdate(ctx context.Context, entry *models.Entry) error
	SelectUpdated(ctx context.Context, userID string, minRevision int64, limit int) ([]*models.Entry, error)
	SelectRange(ctx context.Context, userID string, from, to timex.Date) ([]*models.Entry, error)
}
