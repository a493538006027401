package client

import (
	"context"

	"github.com/dmitrijs2005/daybook/internal/syncpb"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// RemoteStore is the server side of synchronisation.
type RemoteStore interface {
	// Upsert stores a submitted entry and returns the stored document with
	// its new revision. A push older than the stored document fails with
	// common.ErrVersionConflict.
	Upsert(ctx context.Context, e syncpb.Entry) (syncpb.Entry, error)

	// ListChangedSince returns entries whose revision is greater than since,
	// and the cursor to pass next time.
	ListChangedSince(ctx context.Context, since int64, limit int) ([]syncpb.Entry, int64, error)

	Ping(ctx context.Context) error
	Export(ctx context.Context, from, to timex.Date) (syncpb.ExportResult, error)
	Close() error
}
