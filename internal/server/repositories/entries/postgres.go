// Package entries provides PostgreSQL-backed repositories for server-side
// entry persistence and sync queries.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/server/models"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const entryColumns = `id, user_id, day, content, created_at, submitted_at, updated_at, sync_version, revision`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.Entry, error) {
	var (
		e   models.Entry
		day time.Time
	)
	if err := s.Scan(&e.ID, &e.UserID, &day, &e.Content, &e.CreatedAt, &e.SubmittedAt,
		&e.UpdatedAt, &e.SyncVersion, &e.Revision); err != nil {
		return nil, err
	}
	e.Day = timex.DateOf(day, time.UTC)
	return &e, nil
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE id=$1 FOR UPDATE`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// CreateOrUpdate upserts an entry by ID for a specific user. If a conflicting
// row exists for another user, no row is updated and ErrVersionConflict is returned.
// Returns an error for DB failures or unexpected rows affected.
func (r *PostgresRepository) CreateOrUpdate(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO entries (id, user_id, day, content, created_at, submitted_at, updated_at, sync_version, revision)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			content = EXCLUDED.content,
			submitted_at = EXCLUDED.submitted_at,
			updated_at = EXCLUDED.updated_at,
			sync_version = EXCLUDED.sync_version,
			revision = EXCLUDED.revision
			WHERE entries.user_id = EXCLUDED.user_id;
	`
	res, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Day.String(), entry.Content, entry.CreatedAt.UTC(),
		entry.SubmittedAt.UTC(), entry.UpdatedAt.UTC(), entry.SyncVersion, entry.Revision)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// SelectUpdated returns up to limit entries of userID with revision >
// minRevision, in revision order.
func (r *PostgresRepository) SelectUpdated(ctx context.Context, userID string, minRevision int64, limit int) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE user_id=$1 and revision>$2
		ORDER BY revision
		LIMIT $3`
	return r.selectMany(ctx, query, userID, minRevision, limit)
}

// SelectRange returns the entries of userID between from and to inclusive,
// by day. A zero bound leaves that side open.
func (r *PostgresRepository) SelectRange(ctx context.Context, userID string, from, to timex.Date) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE user_id=$1
			and ($2::date IS NULL OR day >= $2::date)
			and ($3::date IS NULL OR day <= $3::date)
		ORDER BY day`
	return r.selectMany(ctx, query, userID, nullDate(from), nullDate(to))
}

func (r *PostgresRepository) selectMany(ctx context.Context, query string, args ...any) ([]*models.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullDate(d timex.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
