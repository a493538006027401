// Package exports records journal exports written to object storage.
package exports

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/server/models"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

type Repository interface {
	Create(ctx context.Context, e *models.Export) error
}

// PostgresRepository implements export bookkeeping over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.Export) error {
	query := `
		INSERT INTO exports (id, user_id, storage_key, day_from, day_to, entries)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		e.ID, e.UserID, e.StorageKey, nullDate(e.From), nullDate(e.To), e.Entries).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullDate(d timex.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
