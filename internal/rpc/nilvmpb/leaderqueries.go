package nilvmpb

import (
	"context"

	"google.golang.org/grpc"
)

// LeaderQueriesServer is the server API for the LeaderQueries service
// (spec.md §6): PoolStatus -> per-element {start, end} offsets plus the two
// in-progress flags.
type LeaderQueriesServer interface {
	PoolStatus(context.Context, *PoolStatusRequest) (*PoolStatusResponse, error)
}

type LeaderQueriesClient interface {
	PoolStatus(ctx context.Context, in *PoolStatusRequest, opts ...grpc.CallOption) (*PoolStatusResponse, error)
}

type leaderQueriesClient struct{ cc grpc.ClientConnInterface }

func NewLeaderQueriesClient(cc grpc.ClientConnInterface) LeaderQueriesClient { return &leaderQueriesClient{cc} }

func (c *leaderQueriesClient) PoolStatus(ctx context.Context, in *PoolStatusRequest, opts ...grpc.CallOption) (*PoolStatusResponse, error) {
	out := new(PoolStatusResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.LeaderQueries/PoolStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _LeaderQueries_PoolStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PoolStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LeaderQueriesServer).PoolStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.LeaderQueries/PoolStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LeaderQueriesServer).PoolStatus(ctx, req.(*PoolStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var LeaderQueries_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "nilvmpb.LeaderQueries",
	HandlerType: (*LeaderQueriesServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PoolStatus", Handler: _LeaderQueries_PoolStatus_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nilvmpb.proto",
}

func RegisterLeaderQueriesServer(s grpc.ServiceRegistrar, srv LeaderQueriesServer) {
	s.RegisterService(&LeaderQueries_ServiceDesc, srv)
}
