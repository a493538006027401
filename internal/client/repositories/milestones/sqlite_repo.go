package milestones

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Days are stored as YYYY-MM-DD, so string order is calendar order.
func (r *SQLiteRepository) Record(ctx context.Context, userID string, runStart, runEnd timex.Date, threshold int, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO milestones (user_id, run_start, threshold, delivered_at)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM milestones
			WHERE user_id = ? AND threshold = ? AND run_start BETWEEN ? AND ?
		)
	`, userID, runStart.String(), threshold, at.UTC().UnixNano(),
		userID, threshold, runStart.String(), runEnd.String())
	if err != nil {
		return false, fmt.Errorf("failed to record milestone %d: %w", threshold, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) Delivered(ctx context.Context, userID string, runStart, runEnd timex.Date) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT threshold FROM milestones WHERE user_id = ? AND run_start BETWEEN ? AND ? ORDER BY threshold`,
		userID, runStart.String(), runEnd.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var th int
		if err := rows.Scan(&th); err != nil {
			return nil, fmt.Errorf("failed to scan milestone row: %w", err)
		}
		out = append(out, th)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate milestone rows: %w", err)
	}
	return out, nil
}
