// Package grpc exposes the JournalSync service over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/syncpb"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"google.golang.org/grpc"
)

// EntryService is the business logic behind the handlers.
type EntryService interface {
	Upsert(ctx context.Context, userID string, in syncpb.Entry) (syncpb.Entry, error)
	ListChangedSince(ctx context.Context, userID string, since int64, limit int) ([]syncpb.Entry, int64, error)
	Export(ctx context.Context, userID string, from, to timex.Date) (syncpb.ExportResult, error)
}

type GRPCServer struct {
	address   string
	entries   EntryService
	logger    logging.Logger
	jwtSecret []byte
}

var _ syncpb.JournalSyncServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, es EntryService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		entries:   es,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	// registers service
	syncpb.RegisterJournalSyncServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
