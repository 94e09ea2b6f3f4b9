package nilvmpb

import (
	"context"

	"google.golang.org/grpc"
)

// MembershipServer is the server API for the Membership service
// (spec.md §6): Cluster, NodeId.
type MembershipServer interface {
	Cluster(context.Context, *ClusterRequest) (*ClusterResponse, error)
	NodeID(context.Context, *NodeIDRequest) (*NodeIDResponse, error)
}

type MembershipClient interface {
	Cluster(ctx context.Context, in *ClusterRequest, opts ...grpc.CallOption) (*ClusterResponse, error)
	NodeID(ctx context.Context, in *NodeIDRequest, opts ...grpc.CallOption) (*NodeIDResponse, error)
}

type membershipClient struct{ cc grpc.ClientConnInterface }

func NewMembershipClient(cc grpc.ClientConnInterface) MembershipClient { return &membershipClient{cc} }

func (c *membershipClient) Cluster(ctx context.Context, in *ClusterRequest, opts ...grpc.CallOption) (*ClusterResponse, error) {
	out := new(ClusterResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Membership/Cluster", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *membershipClient) NodeID(ctx context.Context, in *NodeIDRequest, opts ...grpc.CallOption) (*NodeIDResponse, error) {
	out := new(NodeIDResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Membership/NodeID", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Membership_Cluster_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ClusterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MembershipServer).Cluster(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Membership/Cluster"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MembershipServer).Cluster(ctx, req.(*ClusterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Membership_NodeID_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(NodeIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MembershipServer).NodeID(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Membership/NodeID"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MembershipServer).NodeID(ctx, req.(*NodeIDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var Membership_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "nilvmpb.Membership",
	HandlerType: (*MembershipServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Cluster", Handler: _Membership_Cluster_Handler},
		{MethodName: "NodeID", Handler: _Membership_NodeID_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nilvmpb.proto",
}

func RegisterMembershipServer(s grpc.ServiceRegistrar, srv MembershipServer) {
	s.RegisterService(&Membership_ServiceDesc, srv)
}
