// Package cursors keeps the per-user revision counter that orders every
// accepted write for incremental pulls.
package cursors

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/dbx"
)

type Repository interface {
	IncrementCurrentRevision(ctx context.Context, userID string) (int64, error)
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// IncrementCurrentRevision bumps userID's counter, creating it on first use,
// and returns the new value. The row lock serialises writers per user.
func (r *PostgresRepository) IncrementCurrentRevision(ctx context.Context, userID string) (int64, error) {
	query :=
		`INSERT INTO sync_cursors (user_id, revision) VALUES ($1, 1)
		 ON CONFLICT (user_id) DO UPDATE SET revision = sync_cursors.revision + 1
		 RETURNING revision
		 `

	var revision int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&revision); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return revision, nil
}
