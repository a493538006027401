package cursors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const incQ = `(?s)^INSERT\s+INTO\s+sync_cursors\s+\(user_id,\s*revision\)\s+VALUES\s+\(\$1,\s*1\)\s+ON\s+CONFLICT\s+\(user_id\)\s+DO\s+UPDATE\s+SET\s+revision\s*=\s*sync_cursors\.revision\s*\+\s*1\s+RETURNING\s+revision\s*$`

func TestIncrementCurrentRevision_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"revision"}).AddRow(int64(7))
	mock.ExpectQuery(incQ).
		WithArgs("u-1").
		WillReturnRows(rows)

	got, err := repo.IncrementCurrentRevision(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("IncrementCurrentRevision error: %v", err)
	}
	if got != 7 {
		t.Fatalf("unexpected revision: %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIncrementCurrentRevision_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(incQ).
		WithArgs("u-1").
		WillReturnError(errors.New("db err"))

	_, err := repo.IncrementCurrentRevision(context.Background(), "u-1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
