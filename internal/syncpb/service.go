// Package syncpb defines the JournalSync gRPC service shared by the client
// and the server. Messages are google.protobuf.Struct values; the codec for
// entry documents lives in entry.go.
package syncpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "daybook.sync.JournalSync"

const (
	UpsertMethod           = "/" + ServiceName + "/Upsert"
	ListChangedSinceMethod = "/" + ServiceName + "/ListChangedSince"
	PingMethod             = "/" + ServiceName + "/Ping"
	ExportMethod           = "/" + ServiceName + "/Export"
)

// JournalSyncServer is implemented by the remote store.
type JournalSyncServer interface {
	Upsert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListChangedSince(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Export(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv JournalSyncServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(JournalSyncServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(JournalSyncServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JournalSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Upsert", Handler: unary(UpsertMethod, JournalSyncServer.Upsert)},
		{MethodName: "ListChangedSince", Handler: unary(ListChangedSinceMethod, JournalSyncServer.ListChangedSince)},
		{MethodName: "Ping", Handler: unary(PingMethod, JournalSyncServer.Ping)},
		{MethodName: "Export", Handler: unary(ExportMethod, JournalSyncServer.Export)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "daybook/sync.proto",
}

func RegisterJournalSyncServer(s grpc.ServiceRegistrar, srv JournalSyncServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// JournalSyncClient is the client stub for the service.
type JournalSyncClient struct {
	cc grpc.ClientConnInterface
}

func NewJournalSyncClient(cc grpc.ClientConnInterface) *JournalSyncClient {
	return &JournalSyncClient{cc: cc}
}

func (c *JournalSyncClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JournalSyncClient) Upsert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, UpsertMethod, in, opts...)
}

func (c *JournalSyncClient) ListChangedSince(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListChangedSinceMethod, in, opts...)
}

func (c *JournalSyncClient) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PingMethod, in, opts...)
}

func (c *JournalSyncClient) Export(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ExportMethod, in, opts...)
}
