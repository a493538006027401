package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/syncpb"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ---- fakes ----

type fakeEntries struct {
	lastUser  string
	lastEntry syncpb.Entry
	lastSince int64
	lastLimit int
	lastFrom  timex.Date
	lastTo    timex.Date

	upsertErr error
	listOut   []syncpb.Entry
	listErr   error
	exportOut syncpb.ExportResult
	exportErr error
}

func (f *fakeEntries) Upsert(ctx context.Context, userID string, in syncpb.Entry) (syncpb.Entry, error) {
	f.lastUser, f.lastEntry = userID, in
	if f.upsertErr != nil {
		return syncpb.Entry{}, f.upsertErr
	}
	in.Revision = 7
	return in, nil
}

func (f *fakeEntries) ListChangedSince(ctx context.Context, userID string, since int64, limit int) ([]syncpb.Entry, int64, error) {
	f.lastUser, f.lastSince, f.lastLimit = userID, since, limit
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	return f.listOut, since + int64(len(f.listOut)), nil
}

func (f *fakeEntries) Export(ctx context.Context, userID string, from, to timex.Date) (syncpb.ExportResult, error) {
	f.lastUser, f.lastFrom, f.lastTo = userID, from, to
	return f.exportOut, f.exportErr
}

func newTestServer(es EntryService) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop(), es, "secret")
}

func authed(userID string) context.Context {
	return context.WithValue(context.Background(), userIDKey, userID)
}

func wireEntry(userID string) syncpb.Entry {
	at := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	return syncpb.Entry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Day:         timex.MustDate("2024-01-01"),
		Content:     "done",
		CreatedAt:   at.Add(-time.Hour),
		SubmittedAt: at,
		UpdatedAt:   at,
		SyncVersion: 1,
	}
}

// ---- tests ----

func TestPing(t *testing.T) {
	s := newTestServer(&fakeEntries{})
	resp, err := s.Ping(context.Background(), syncpb.Empty())
	require.NoError(t, err)
	require.NotNil(t, resp)
}

func TestUpsert(t *testing.T) {
	f := &fakeEntries{}
	s := newTestServer(f)
	e := wireEntry("u1")

	resp, err := s.Upsert(authed("u1"), syncpb.UpsertRequest(e))
	require.NoError(t, err)
	require.Equal(t, "u1", f.lastUser)
	require.Equal(t, e.ID, f.lastEntry.ID)

	stored, err := syncpb.ParseUpsertResponse(resp)
	require.NoError(t, err)
	require.Equal(t, int64(7), stored.Revision)
}

func TestUpsert_RequiresUser(t *testing.T) {
	s := newTestServer(&fakeEntries{})
	_, err := s.Upsert(context.Background(), syncpb.UpsertRequest(wireEntry("u1")))
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUpsert_BadRequest(t *testing.T) {
	s := newTestServer(&fakeEntries{})
	_, err := s.Upsert(authed("u1"), syncpb.Empty())
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestUpsert_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("%w: too long", common.ErrValidation), codes.InvalidArgument},
		{fmt.Errorf("%w: stored document is newer", common.ErrVersionConflict), codes.FailedPrecondition},
		{common.ErrNotFound, codes.NotFound},
		{common.ErrUnauthorized, codes.PermissionDenied},
		{fmt.Errorf("%w: s3", common.ErrTransport), codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{errors.New("db down"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			s := newTestServer(&fakeEntries{upsertErr: tt.err})
			_, err := s.Upsert(authed("u1"), syncpb.UpsertRequest(wireEntry("u1")))
			require.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	s := newTestServer(&fakeEntries{upsertErr: errors.New("pq: password authentication failed")})
	_, err := s.Upsert(authed("u1"), syncpb.UpsertRequest(wireEntry("u1")))
	require.Equal(t, "internal error", status.Convert(err).Message())
}

func TestListChangedSince(t *testing.T) {
	f := &fakeEntries{listOut: []syncpb.Entry{wireEntry("u1"), wireEntry("u1")}}
	s := newTestServer(f)

	resp, err := s.ListChangedSince(authed("u1"), syncpb.ListRequest(5, 50))
	require.NoError(t, err)
	require.Equal(t, int64(5), f.lastSince)
	require.Equal(t, 50, f.lastLimit)

	got, cursor, err := syncpb.ParseListResponse(resp)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(7), cursor)

	bad := &structpb.Struct{Fields: map[string]*structpb.Value{"since": structpb.NewStringValue("x")}}
	_, err = s.ListChangedSince(authed("u1"), bad)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	f.listErr = errors.New("db down")
	_, err = s.ListChangedSince(authed("u1"), syncpb.ListRequest(0, 10))
	require.Equal(t, codes.Internal, status.Code(err))

	_, err = s.ListChangedSince(context.Background(), syncpb.ListRequest(0, 10))
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestExport(t *testing.T) {
	f := &fakeEntries{exportOut: syncpb.ExportResult{Key: "k", URL: "https://x/k", Entries: 2}}
	s := newTestServer(f)

	resp, err := s.Export(authed("u1"), syncpb.ExportRequest(timex.MustDate("2024-01-01"), timex.Date{}))
	require.NoError(t, err)
	require.Equal(t, timex.MustDate("2024-01-01"), f.lastFrom)
	require.True(t, f.lastTo.IsZero())

	res, err := syncpb.ParseExportResponse(resp)
	require.NoError(t, err)
	require.Equal(t, "https://x/k", res.URL)

	bad := &structpb.Struct{Fields: map[string]*structpb.Value{"from": structpb.NewStringValue("yesterday")}}
	_, err = s.Export(authed("u1"), bad)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	f.exportErr = fmt.Errorf("%w: reversed", common.ErrValidation)
	_, err = s.Export(authed("u1"), syncpb.ExportRequest(timex.Date{}, timex.Date{}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}
