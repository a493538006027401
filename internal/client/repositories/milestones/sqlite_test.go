package milestones

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/sqlitetest"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"github.com/stretchr/testify/require"
)

func TestRecord_OncePerRunAndThreshold(t *testing.T) {
	r := NewSQLiteRepository(sqlitetest.Open(t))
	ctx := context.Background()
	run, end := timex.MustDate("2024-01-01"), timex.MustDate("2024-01-07")
	now := time.Date(2024, 1, 7, 23, 59, 0, 0, time.UTC)

	fresh, err := r.Record(ctx, "u1", run, end, 7, now)
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = r.Record(ctx, "u1", run, end.AddDays(1), 7, now.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, fresh)

	fresh, err = r.Record(ctx, "u1", timex.MustDate("2024-02-01"), timex.MustDate("2024-02-07"), 7, now)
	require.NoError(t, err)
	require.True(t, fresh, "a new run is eligible again")

	fresh, err = r.Record(ctx, "u2", run, end, 7, now)
	require.NoError(t, err)
	require.True(t, fresh)
}

func TestRecord_EarlierRunStartStillSeesDelivery(t *testing.T) {
	r := NewSQLiteRepository(sqlitetest.Open(t))
	ctx := context.Background()
	now := time.Date(2024, 1, 9, 23, 59, 0, 0, time.UTC)

	fresh, err := r.Record(ctx, "u1", timex.MustDate("2024-01-03"), timex.MustDate("2024-01-09"), 7, now)
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = r.Record(ctx, "u1", timex.MustDate("2024-01-02"), timex.MustDate("2024-01-09"), 7, now)
	require.NoError(t, err)
	require.False(t, fresh, "backfilled start covers the earlier delivery")

	got, err := r.Delivered(ctx, "u1", timex.MustDate("2024-01-02"), timex.MustDate("2024-01-09"))
	require.NoError(t, err)
	require.Equal(t, []int{7}, got)
}

func TestDelivered_ListsSortedThresholds(t *testing.T) {
	r := NewSQLiteRepository(sqlitetest.Open(t))
	ctx := context.Background()
	run, end := timex.MustDate("2024-01-01"), timex.MustDate("2024-01-31")
	now := time.Now()

	got, err := r.Delivered(ctx, "u1", run, end)
	require.NoError(t, err)
	require.Empty(t, got)

	for _, th := range []int{30, 7} {
		_, err := r.Record(ctx, "u1", run, end, th, now)
		require.NoError(t, err)
	}
	got, err = r.Delivered(ctx, "u1", run, end)
	require.NoError(t, err)
	require.Equal(t, []int{7, 30}, got)

	got, err = r.Delivered(ctx, "u1", end.AddDays(1), end.AddDays(30))
	require.NoError(t, err)
	require.Empty(t, got, "a later run sees none of them")
}
