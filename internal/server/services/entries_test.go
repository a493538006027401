package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/server/config"
	"github.com/dmitrijs2005/daybook/internal/server/models"
	"github.com/dmitrijs2005/daybook/internal/server/repositories/cursors"
	"github.com/dmitrijs2005/daybook/internal/server/repositories/entries"
	"github.com/dmitrijs2005/daybook/internal/server/repositories/exports"
	"github.com/dmitrijs2005/daybook/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/daybook/internal/syncpb"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// -------- test fakes --------

type fakeCursorsRepo struct {
	cursors.Repository
	rev int64
	err error
}

func (f *fakeCursorsRepo) IncrementCurrentRevision(ctx context.Context, userID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.rev++
	return f.rev, nil
}

type fakeEntriesRepo struct {
	entries.Repository
	byID map[string]*models.Entry

	getErr    error
	createErr error
	selErr    error

	created   []*models.Entry
	lastLimit int
}

func (f *fakeEntriesRepo) GetForUpdate(ctx context.Context, id string) (*models.Entry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEntriesRepo) CreateOrUpdate(ctx context.Context, e *models.Entry) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, e)
	cp := *e
	f.byID[e.ID] = &cp
	return nil
}

func (f *fakeEntriesRepo) SelectUpdated(ctx context.Context, userID string, minRevision int64, limit int) ([]*models.Entry, error) {
	f.lastLimit = limit
	if f.selErr != nil {
		return nil, f.selErr
	}
	var out []*models.Entry
	for _, e := range f.byID {
		if e.UserID == userID && e.Revision > minRevision {
			out = append(out, e)
		}
	}
	// revision order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Revision < out[j-1].Revision; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeEntriesRepo) SelectRange(ctx context.Context, userID string, from, to timex.Date) ([]*models.Entry, error) {
	if f.selErr != nil {
		return nil, f.selErr
	}
	var out []*models.Entry
	for _, e := range f.byID {
		if e.UserID != userID {
			continue
		}
		if (!from.IsZero() && e.Day.Before(from)) || (!to.IsZero() && e.Day.After(to)) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type fakeExportsRepo struct {
	exports.Repository
	created []*models.Export
	err     error
}

func (f *fakeExportsRepo) Create(ctx context.Context, e *models.Export) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, e)
	return nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	c *fakeCursorsRepo
	e *fakeEntriesRepo
	x *fakeExportsRepo
}

func (m *fakeRepoManager) Cursors(dbx dbx.DBTX) cursors.Repository { return m.c }
func (m *fakeRepoManager) Entries(dbx dbx.DBTX) entries.Repository { return m.e }
func (m *fakeRepoManager) Exports(dbx dbx.DBTX) exports.Repository { return m.x }

type fakeStore struct {
	puts    map[string][]byte
	putErr  error
	signErr error
	lastTTL time.Duration
}

func (f *fakeStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts[key] = body
	return nil
}

func (f *fakeStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	f.lastTTL = ttl
	return "https://s3.local/" + key + "?sig", nil
}

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newManager() *fakeRepoManager {
	return &fakeRepoManager{
		c: &fakeCursorsRepo{},
		e: &fakeEntriesRepo{byID: map[string]*models.Entry{}},
		x: &fakeExportsRepo{},
	}
}

var exportNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, db *sql.DB, m *fakeRepoManager, st ObjectStore) *EntryService {
	t.Helper()
	cfg := &config.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "x",
		S3RootPassword: "y",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "bucket",
		SecretKey:      "k",
		ExportLinkTTL:  15 * time.Minute,
	}
	s := NewEntryService(db, m, st, cfg, logging.Nop())
	s.now = func() time.Time { return exportNow }
	return s
}

func pushed(day string, updated time.Time, ver int64) syncpb.Entry {
	return syncpb.Entry{
		ID:          uuid.NewString(),
		UserID:      "u1",
		Day:         timex.MustDate(day),
		Content:     "ran #RUN 30min",
		CreatedAt:   updated.Add(-time.Hour),
		SubmittedAt: updated,
		UpdatedAt:   updated,
		SyncVersion: ver,
	}
}

// -------- Upsert --------

func TestUpsert_InsertsWithNewRevision(t *testing.T) {
	db, mock := newSQLMockDB(t)
	m := newManager()
	s := newService(t, db, m, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	in := pushed("2024-01-01", time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC), 1)
	got, err := s.Upsert(context.Background(), "u1", in)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Revision)
	require.Equal(t, in.ID, got.ID)
	require.Len(t, m.e.created, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_NewerReplacesStored(t *testing.T) {
	db, mock := newSQLMockDB(t)
	m := newManager()
	s := newService(t, db, m, nil)

	at := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	in := pushed("2024-01-01", at, 1)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := s.Upsert(context.Background(), "u1", in)
	require.NoError(t, err)

	in.Content = "edited"
	in.UpdatedAt = at.Add(time.Minute)
	in.SyncVersion = 2

	mock.ExpectBegin()
	mock.ExpectCommit()
	got, err := s.Upsert(context.Background(), "u1", in)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Revision)
	require.Equal(t, "edited", m.e.byID[in.ID].Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_OlderIsConflict(t *testing.T) {
	db, mock := newSQLMockDB(t)
	m := newManager()
	s := newService(t, db, m, nil)

	at := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	in := pushed("2024-01-01", at, 2)
	m.e.byID[in.ID] = &models.Entry{ID: in.ID, UserID: "u1", Day: in.Day, Content: "newer", UpdatedAt: at.Add(time.Hour), SyncVersion: 3, Revision: 9}

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := s.Upsert(context.Background(), "u1", in)
	require.ErrorIs(t, err, common.ErrVersionConflict)
	require.Empty(t, m.e.created)
	require.Equal(t, "newer", m.e.byID[in.ID].Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_SameVersionIsNoop(t *testing.T) {
	db, mock := newSQLMockDB(t)
	m := newManager()
	s := newService(t, db, m, nil)

	at := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	in := pushed("2024-01-01", at, 2)
	m.e.byID[in.ID] = &models.Entry{ID: in.ID, UserID: "u1", Day: in.Day, Content: in.Content, UpdatedAt: at, SyncVersion: 2, Revision: 4}

	mock.ExpectBegin()
	mock.ExpectRollback()

	got, err := s.Upsert(context.Background(), "u1", in)
	require.NoError(t, err)
	require.Equal(t, int64(4), got.Revision)
	require.Empty(t, m.e.created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_FullTieIsSettledByContent(t *testing.T) {
	at := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name    string
		stored  string
		pushed  string
		wantErr error
		want    string
	}{
		{"greater content replaces stored", "a from laptop", "b from phone", nil, "b from phone"},
		{"lesser content is a conflict", "b from laptop", "a from phone", common.ErrVersionConflict, "b from laptop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			m := newManager()
			s := newService(t, db, m, nil)

			in := pushed("2024-01-01", at, 2)
			in.Content = tt.pushed
			m.e.byID[in.ID] = &models.Entry{ID: in.ID, UserID: "u1", Day: in.Day, Content: tt.stored, UpdatedAt: at, SyncVersion: 2, Revision: 4}

			mock.ExpectBegin()
			if tt.wantErr == nil {
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			_, err := s.Upsert(context.Background(), "u1", in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, m.e.byID[in.ID].Content)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpsert_ReturnsStoredPrecision(t *testing.T) {
	db, mock := newSQLMockDB(t)
	m := newManager()
	s := newService(t, db, m, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	in := pushed("2024-01-01", time.Date(2024, 1, 1, 23, 59, 0, 1_234_567, time.UTC), 1)
	got, err := s.Upsert(context.Background(), "u1", in)
	require.NoError(t, err)
	require.Equal(t, 1_234_000, got.UpdatedAt.Nanosecond())
	require.True(t, got.UpdatedAt.Equal(m.e.byID[in.ID].UpdatedAt))
	require.Equal(t, 0, syncpb.Compare(in, got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_RejectsForeignEntries(t *testing.T) {
	db, mock := newSQLMockDB(t)
	m := newManager()
	s := newService(t, db, m, nil)

	at := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	in := pushed("2024-01-01", at, 1)

	_, err := s.Upsert(context.Background(), "u2", in)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	m.e.byID[in.ID] = &models.Entry{ID: in.ID, UserID: "u2", Day: in.Day, UpdatedAt: at}
	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = s.Upsert(context.Background(), "u1", in)
	require.ErrorIs(t, err, common.ErrUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_Validation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := newService(t, db, newManager(), nil)

	in := pushed("2024-01-01", time.Now(), 1)
	in.Content = strings.Repeat("x", 10001)
	_, err := s.Upsert(context.Background(), "u1", in)
	require.ErrorIs(t, err, common.ErrValidation)

	in = pushed("2024-01-01", time.Now(), 1)
	in.ID = "not-a-uuid"
	_, err = s.Upsert(context.Background(), "u1", in)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestUpsert_RepoErrorsRollBack(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *fakeRepoManager)
	}{
		{"cursor", func(m *fakeRepoManager) { m.c.err = errors.New("cursor boom") }},
		{"get", func(m *fakeRepoManager) { m.e.getErr = errors.New("get boom") }},
		{"create", func(m *fakeRepoManager) { m.e.createErr = errors.New("create boom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			m := newManager()
			tt.setup(m)
			s := newService(t, db, m, nil)

			mock.ExpectBegin()
			mock.ExpectRollback()

			_, err := s.Upsert(context.Background(), "u1", pushed("2024-01-01", time.Now(), 1))
			require.ErrorContains(t, err, "boom")
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpsert_BeginError(t *testing.T) {
	db, mock := newSQLMockDB(t)
	s := newService(t, db, newManager(), nil)

	mock.ExpectBegin().WillReturnError(errors.New("no conn"))
	_, err := s.Upsert(context.Background(), "u1", pushed("2024-01-01", time.Now(), 1))
	require.ErrorContains(t, err, "begin tx")
}

// -------- ListChangedSince --------

func TestListChangedSince_CursorAndLimit(t *testing.T) {
	db, _ := newSQLMockDB(t)
	m := newManager()
	s := newService(t, db, m, nil)

	for i, day := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		id := uuid.NewString()
		m.e.byID[id] = &models.Entry{ID: id, UserID: "u1", Day: timex.MustDate(day), Revision: int64(i + 1)}
	}
	other := uuid.NewString()
	m.e.byID[other] = &models.Entry{ID: other, UserID: "u2", Day: timex.MustDate("2024-01-01"), Revision: 10}

	got, cursor, err := s.ListChangedSince(context.Background(), "u1", 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(3), cursor)
	require.Equal(t, DefaultListLimit, m.e.lastLimit)

	got, cursor, err = s.ListChangedSince(context.Background(), "u1", 3, 10000)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, int64(3), cursor, "empty page keeps the cursor")
	require.Equal(t, MaxListLimit, m.e.lastLimit)

	_, _, err = s.ListChangedSince(context.Background(), "u1", -1, 10)
	require.ErrorIs(t, err, common.ErrValidation)

	m.e.selErr = errors.New("db down")
	_, _, err = s.ListChangedSince(context.Background(), "u1", 0, 10)
	require.ErrorContains(t, err, "db down")
}

// -------- Export --------

func TestExport_UploadsDocumentAndRecordsIt(t *testing.T) {
	db, _ := newSQLMockDB(t)
	m := newManager()
	st := &fakeStore{puts: map[string][]byte{}}
	s := newService(t, db, m, st)

	for _, day := range []string{"2024-01-01", "2024-01-05", "2024-02-01"} {
		id := uuid.NewString()
		m.e.byID[id] = &models.Entry{ID: id, UserID: "u1", Day: timex.MustDate(day), Content: "day " + day}
	}

	from, to := timex.MustDate("2024-01-01"), timex.MustDate("2024-01-31")
	res, err := s.Export(context.Background(), "u1", from, to)
	require.NoError(t, err)
	require.Equal(t, 2, res.Entries)
	require.True(t, strings.HasPrefix(res.Key, "exports/u1/2024/3/1/"))
	require.Equal(t, "https://s3.local/"+res.Key+"?sig", res.URL)
	require.Equal(t, exportNow.Add(15*time.Minute), res.ExpiresAt)
	require.Equal(t, 15*time.Minute, st.lastTTL)

	var doc exportDocument
	require.NoError(t, json.Unmarshal(st.puts[res.Key], &doc))
	require.Equal(t, "2024-01-01", doc.From)
	require.Equal(t, "2024-01-31", doc.To)
	require.Len(t, doc.Entries, 2)

	require.Len(t, m.x.created, 1)
	require.Equal(t, res.Key, m.x.created[0].StorageKey)
	require.Equal(t, 2, m.x.created[0].Entries)
}

func TestExport_Errors(t *testing.T) {
	db, _ := newSQLMockDB(t)

	s := newService(t, db, newManager(), &fakeStore{puts: map[string][]byte{}})
	_, err := s.Export(context.Background(), "u1", timex.MustDate("2024-02-01"), timex.MustDate("2024-01-01"))
	require.ErrorIs(t, err, common.ErrValidation)

	s = newService(t, db, newManager(), &fakeStore{puts: map[string][]byte{}, putErr: errors.New("s3 down")})
	_, err = s.Export(context.Background(), "u1", timex.Date{}, timex.Date{})
	require.ErrorIs(t, err, common.ErrTransport)

	s = newService(t, db, newManager(), &fakeStore{puts: map[string][]byte{}, signErr: errors.New("sign")})
	_, err = s.Export(context.Background(), "u1", timex.Date{}, timex.Date{})
	require.ErrorIs(t, err, common.ErrTransport)

	m := newManager()
	m.x.err = errors.New("insert failed")
	s = newService(t, db, m, &fakeStore{puts: map[string][]byte{}})
	_, err = s.Export(context.Background(), "u1", timex.Date{}, timex.Date{})
	require.ErrorContains(t, err, "insert failed")
}

func TestGetExportStorageKey(t *testing.T) {
	k := GetExportStorageKey("u1", exportNow)
	require.True(t, strings.HasPrefix(k, "exports/u1/2024/3/1/"))
	require.True(t, strings.HasSuffix(k, ".json"))
	require.NotEqual(t, k, GetExportStorageKey("u1", exportNow))
}
