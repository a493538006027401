package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/tags"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

const entryColumns = `id, user_id, day, content, status, created_at, submitted_at, updated_at,
	sync_version, remote_revision, pending_push, last_attempt_at, next_attempt_at,
	attempt_count, last_error, needs_manual_sync`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.JournalEntry, error) {
	var (
		e              models.JournalEntry
		day, status    string
		lastErr        string
		createdAt      int64
		updatedAt      int64
		submittedAt    sql.NullInt64
		remoteRevision sql.NullInt64
		lastAttemptAt  sql.NullInt64
		nextAttemptAt  sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.UserID, &day, &e.Content, &status, &createdAt, &submittedAt, &updatedAt,
		&e.SyncVersion, &remoteRevision, &e.Sync.PendingPush, &lastAttemptAt, &nextAttemptAt,
		&e.Sync.AttemptCount, &lastErr, &e.Sync.NeedsManualSync)
	if err != nil {
		return nil, err
	}

	if e.Day, err = timex.ParseDate(day); err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	e.Status = models.Status(status)
	e.CreatedAt = fromUnix(createdAt)
	e.UpdatedAt = fromUnix(updatedAt)
	e.SubmittedAt = fromNullUnix(submittedAt)
	if remoteRevision.Valid {
		v := remoteRevision.Int64
		e.RemoteRevision = &v
	}
	e.Sync.LastAttemptAt = fromNullUnix(lastAttemptAt)
	e.Sync.NextAttemptAt = fromNullUnix(nextAttemptAt)
	e.Sync.LastError = models.ErrorKind(lastErr)
	e.Tags = tags.Parse(e.Content)
	return &e, nil
}

func (r *SQLiteRepository) queryOne(ctx context.Context, query string, args ...any) (*models.JournalEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) queryMany(ctx context.Context, query string, args ...any) ([]models.JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []models.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.JournalEntry, error) {
	return r.queryOne(ctx, `select `+entryColumns+` from entries where id=?`, id)
}

func (r *SQLiteRepository) GetByDay(ctx context.Context, userID string, day timex.Date) (*models.JournalEntry, error) {
	return r.queryOne(ctx, `select `+entryColumns+` from entries where user_id=? and day=?`, userID, day.String())
}

func (r *SQLiteRepository) Insert(ctx context.Context, e *models.JournalEntry) error {
	tagsJSON, err := encodeTags(e.Content)
	if err != nil {
		return err
	}
	query := `INSERT INTO entries (` + entryColumns + `, tags)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.Day.String(), e.Content, string(e.Status),
		toUnix(e.CreatedAt), toNullUnix(e.SubmittedAt), toUnix(e.UpdatedAt),
		e.SyncVersion, toNullInt(e.RemoteRevision), e.Sync.PendingPush,
		toNullUnix(e.Sync.LastAttemptAt), toNullUnix(e.Sync.NextAttemptAt),
		e.Sync.AttemptCount, string(e.Sync.LastError), e.Sync.NeedsManualSync, tagsJSON)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, e *models.JournalEntry) error {
	tagsJSON, err := encodeTags(e.Content)
	if err != nil {
		return err
	}
	query := `update entries set content=?, tags=?, status=?, created_at=?, submitted_at=?,
			updated_at=?, sync_version=?, remote_revision=?, pending_push=?,
			last_attempt_at=?, next_attempt_at=?, attempt_count=?, last_error=?, needs_manual_sync=?
		where id=?`
	res, err := r.db.ExecContext(ctx, query,
		e.Content, tagsJSON, string(e.Status), toUnix(e.CreatedAt), toNullUnix(e.SubmittedAt),
		toUnix(e.UpdatedAt), e.SyncVersion, toNullInt(e.RemoteRevision), e.Sync.PendingPush,
		toNullUnix(e.Sync.LastAttemptAt), toNullUnix(e.Sync.NextAttemptAt),
		e.Sync.AttemptCount, string(e.Sync.LastError), e.Sync.NeedsManualSync, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if err := dbx.ExpectRows(res, 1); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *SQLiteRepository) UpdateSync(ctx context.Context, id string, s models.SyncState) error {
	query := `update entries set pending_push=?, last_attempt_at=?, next_attempt_at=?,
			attempt_count=?, last_error=?, needs_manual_sync=?
		where id=?`
	res, err := r.db.ExecContext(ctx, query, s.PendingPush, toNullUnix(s.LastAttemptAt),
		toNullUnix(s.NextAttemptAt), s.AttemptCount, string(s.LastError), s.NeedsManualSync, id)
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	if err := dbx.ExpectRows(res, 1); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *SQLiteRepository) Archive(ctx context.Context, e *models.JournalEntry, at time.Time) error {
	query := `INSERT OR IGNORE INTO entry_versions
			(entry_id, sync_version, content, status, submitted_at, updated_at, archived_at)
		values (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.SyncVersion, e.Content, string(e.Status),
		toNullUnix(e.SubmittedAt), toUnix(e.UpdatedAt), toUnix(at))
	if err != nil {
		return fmt.Errorf("failed to archive entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) History(ctx context.Context, id string) ([]models.JournalEntry, error) {
	query := `select v.entry_id, e.user_id, e.day, v.content, v.status, v.submitted_at,
			v.updated_at, v.sync_version
		from entry_versions v join entries e on e.id = v.entry_id
		where v.entry_id=?
		order by v.archived_at, v.sync_version`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select history: %w", err)
	}
	defer rows.Close()

	var result []models.JournalEntry
	for rows.Next() {
		var (
			e           models.JournalEntry
			day, status string
			submittedAt sql.NullInt64
			updatedAt   int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &day, &e.Content, &status, &submittedAt,
			&updatedAt, &e.SyncVersion); err != nil {
			return nil, err
		}
		if e.Day, err = timex.ParseDate(day); err != nil {
			return nil, err
		}
		e.Status = models.Status(status)
		e.SubmittedAt = fromNullUnix(submittedAt)
		e.UpdatedAt = fromUnix(updatedAt)
		e.Tags = tags.Parse(e.Content)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) ListDrafts(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	return r.queryMany(ctx, `select `+entryColumns+` from entries where user_id=? and status=? order by day`,
		userID, string(models.StatusDraft))
}

func (r *SQLiteRepository) SubmittedDays(ctx context.Context, userID string) ([]timex.Date, error) {
	rows, err := r.db.QueryContext(ctx, `select day from entries where user_id=? and status=? order by day`,
		userID, string(models.StatusSubmitted))
	if err != nil {
		return nil, fmt.Errorf("failed to select submitted days: %w", err)
	}
	defer rows.Close()

	var days []timex.Date
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		d, err := timex.ParseDate(s)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return days, nil
}

func (r *SQLiteRepository) ListPendingPush(ctx context.Context, userID string, now time.Time) ([]models.JournalEntry, error) {
	query := `select ` + entryColumns + ` from entries
		where user_id=? and status=? and pending_push=1 and needs_manual_sync=0
			and (next_attempt_at is null or next_attempt_at <= ?)
		order by day`
	return r.queryMany(ctx, query, userID, string(models.StatusSubmitted), toUnix(now))
}

func (r *SQLiteRepository) ListRange(ctx context.Context, userID string, from, to timex.Date) ([]models.JournalEntry, error) {
	query := `select ` + entryColumns + ` from entries where user_id=? and day >= ? and day <= ? order by day`
	return r.queryMany(ctx, query, userID, from.String(), to.String())
}

func encodeTags(content string) (string, error) {
	items := tags.Parse(content)
	if items == nil {
		items = []models.TaggedActivity{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func fromNullUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnix(n.Int64)
	return &t
}

func toNullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
