package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/daybook/internal/client/sqlitetest"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/stretchr/testify/require"
)

func TestGetSetDelete(t *testing.T) {
	r := NewSQLiteRepository(sqlitetest.Open(t))
	ctx := context.Background()

	v, err := r.Get(ctx, "absent")
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, r.Set(ctx, "k", []byte("old")))
	require.NoError(t, r.Set(ctx, "k", []byte("new")))
	v, err = r.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)

	require.NoError(t, r.Delete(ctx, "k"))
	require.NoError(t, r.Delete(ctx, "k"), "deleting a missing key is fine")
	v, err = r.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestCursorKeysArePerUser(t *testing.T) {
	r := NewSQLiteRepository(sqlitetest.Open(t))
	ctx := context.Background()

	require.NoError(t, r.SetInt64(ctx, CursorKey("u1"), 10))
	require.NoError(t, r.SetInt64(ctx, CursorKey("u2"), 20))

	v, ok, err := r.GetInt64(ctx, CursorKey("u1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(10), v)

	_, ok, err = r.GetInt64(ctx, CursorKey("u3"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetInt64_Malformed(t *testing.T) {
	r := NewSQLiteRepository(sqlitetest.Open(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, CursorKey("u1"), []byte("x")))
	_, _, err := r.GetInt64(ctx, CursorKey("u1"))
	require.ErrorContains(t, err, "not an integer")
}

func TestErrorsAreWrapped(t *testing.T) {
	db := sqlitetest.Open(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, `metadata get "k"`)
	require.ErrorContains(t, r.Set(ctx, "k", nil), `metadata set "k"`)
	require.ErrorContains(t, r.Delete(ctx, "k"), `metadata delete "k"`)
}

func TestRollbackDiscardsCursor(t *testing.T) {
	db := sqlitetest.Open(t)
	ctx := context.Background()

	_ = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		require.NoError(t, NewSQLiteRepository(tx).SetInt64(ctx, CursorKey("u1"), 5))
		return sql.ErrTxDone
	})

	_, ok, err := NewSQLiteRepository(db).GetInt64(ctx, CursorKey("u1"))
	require.NoError(t, err)
	require.False(t, ok)
}
