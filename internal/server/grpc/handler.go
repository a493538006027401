package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/syncpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStatus maps service errors onto gRPC codes.
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrVersionConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, common.ErrTransport):
		s.logger.Error(ctx, op+" failed", "error", err)
		return status.Error(codes.Unavailable, "storage unavailable")
	}
	s.logger.Error(ctx, op+" failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return syncpb.Empty(), nil
}

func (s *GRPCServer) Upsert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	in, err := syncpb.ParseUpsertRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	stored, err := s.entries.Upsert(ctx, userID, in)
	if err != nil {
		return nil, s.toStatus(ctx, "upsert", err)
	}

	return syncpb.UpsertResponse(stored), nil
}

func (s *GRPCServer) ListChangedSince(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	since, limit, err := syncpb.ParseListRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	entries, cursor, err := s.entries.ListChangedSince(ctx, userID, since, limit)
	if err != nil {
		return nil, s.toStatus(ctx, "list", err)
	}

	return syncpb.ListResponse(entries, cursor), nil
}

func (s *GRPCServer) Export(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	from, to, err := syncpb.ParseExportRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.entries.Export(ctx, userID, from, to)
	if err != nil {
		return nil, s.toStatus(ctx, "export", err)
	}

	s.logger.Info(ctx, "export issued", "user", userID, "entries", res.Entries)
	return syncpb.ExportResponse(res), nil
}
