package nilvmpb

import (
	"context"

	"google.golang.org/grpc"
)

// PermissionsServer is the server API for the Permissions service
// (spec.md §6): Retrieve/Overwrite/Update.
type PermissionsServer interface {
	RetrievePermissions(context.Context, *RetrievePermissionsRequest) (*RetrievePermissionsResponse, error)
	OverwritePermissions(context.Context, *OverwritePermissionsRequest) (*OverwritePermissionsResponse, error)
	UpdatePermissions(context.Context, *UpdatePermissionsRequest) (*UpdatePermissionsResponse, error)
}

type PermissionsClient interface {
	RetrievePermissions(ctx context.Context, in *RetrievePermissionsRequest, opts ...grpc.CallOption) (*RetrievePermissionsResponse, error)
	OverwritePermissions(ctx context.Context, in *OverwritePermissionsRequest, opts ...grpc.CallOption) (*OverwritePermissionsResponse, error)
	UpdatePermissions(ctx context.Context, in *UpdatePermissionsRequest, opts ...grpc.CallOption) (*UpdatePermissionsResponse, error)
}

type permissionsClient struct{ cc grpc.ClientConnInterface }

func NewPermissionsClient(cc grpc.ClientConnInterface) PermissionsClient { return &permissionsClient{cc} }

func (c *permissionsClient) RetrievePermissions(ctx context.Context, in *RetrievePermissionsRequest, opts ...grpc.CallOption) (*RetrievePermissionsResponse, error) {
	out := new(RetrievePermissionsResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Permissions/RetrievePermissions", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *permissionsClient) OverwritePermissions(ctx context.Context, in *OverwritePermissionsRequest, opts ...grpc.CallOption) (*OverwritePermissionsResponse, error) {
	out := new(OverwritePermissionsResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Permissions/OverwritePermissions", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *permissionsClient) UpdatePermissions(ctx context.Context, in *UpdatePermissionsRequest, opts ...grpc.CallOption) (*UpdatePermissionsResponse, error) {
	out := new(UpdatePermissionsResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Permissions/UpdatePermissions", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Permissions_RetrievePermissions_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RetrievePermissionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PermissionsServer).RetrievePermissions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Permissions/RetrievePermissions"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PermissionsServer).RetrievePermissions(ctx, req.(*RetrievePermissionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Permissions_OverwritePermissions_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(OverwritePermissionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PermissionsServer).OverwritePermissions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Permissions/OverwritePermissions"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PermissionsServer).OverwritePermissions(ctx, req.(*OverwritePermissionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Permissions_UpdatePermissions_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UpdatePermissionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PermissionsServer).UpdatePermissions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Permissions/UpdatePermissions"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PermissionsServer).UpdatePermissions(ctx, req.(*UpdatePermissionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var Permissions_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "nilvmpb.Permissions",
	HandlerType: (*PermissionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RetrievePermissions", Handler: _Permissions_RetrievePermissions_Handler},
		{MethodName: "OverwritePermissions", Handler: _Permissions_OverwritePermissions_Handler},
		{MethodName: "UpdatePermissions", Handler: _Permissions_UpdatePermissions_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nilvmpb.proto",
}

func RegisterPermissionsServer(s grpc.ServiceRegistrar, srv PermissionsServer) {
	s.RegisterService(&Permissions_ServiceDesc, srv)
}
