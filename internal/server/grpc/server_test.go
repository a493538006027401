package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/server/auth"
	"github.com/dmitrijs2005/daybook/internal/syncpb"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeEntries{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_BadAddress(t *testing.T) {
	srv := NewGRPCServer("256.0.0.1:bad", newTestServer(nil).logger, &fakeEntries{}, "secret")
	require.Error(t, srv.Run(context.Background()))
}

func TestServe_EndToEnd(t *testing.T) {
	f := &fakeEntries{}
	srv := newTestServer(f)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	c := syncpb.NewJournalSyncClient(conn)

	rpcCtx, rpcCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer rpcCancel()

	_, err = c.Ping(rpcCtx, syncpb.Empty())
	require.NoError(t, err)

	_, err = c.Upsert(rpcCtx, syncpb.UpsertRequest(wireEntry("u1")))
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	token, err := auth.GenerateToken("u1", []byte("secret"), time.Hour)
	require.NoError(t, err)
	authCtx := metadata.AppendToOutgoingContext(rpcCtx, common.AccessTokenHeaderName, token)

	resp, err := c.Upsert(authCtx, syncpb.UpsertRequest(wireEntry("u1")))
	require.NoError(t, err)
	stored, err := syncpb.ParseUpsertResponse(resp)
	require.NoError(t, err)
	require.Equal(t, int64(7), stored.Revision)
	require.Equal(t, "u1", f.lastUser)
}
