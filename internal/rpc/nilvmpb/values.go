package nilvmpb

import (
	"context"

	"google.golang.org/grpc"
)

// ValuesServer is the server API for the Values service (spec.md §6):
// StoreValues{...} -> values_id, plus retrieve/delete.
type ValuesServer interface {
	StoreValues(context.Context, *StoreValuesRequest) (*StoreValuesResponse, error)
	RetrieveValues(context.Context, *RetrieveValuesRequest) (*RetrieveValuesResponse, error)
	DeleteValues(context.Context, *DeleteValuesRequest) (*DeleteValuesResponse, error)
}

type ValuesClient interface {
	StoreValues(ctx context.Context, in *StoreValuesRequest, opts ...grpc.CallOption) (*StoreValuesResponse, error)
	RetrieveValues(ctx context.Context, in *RetrieveValuesRequest, opts ...grpc.CallOption) (*RetrieveValuesResponse, error)
	DeleteValues(ctx context.Context, in *DeleteValuesRequest, opts ...grpc.CallOption) (*DeleteValuesResponse, error)
}

type valuesClient struct{ cc grpc.ClientConnInterface }

func NewValuesClient(cc grpc.ClientConnInterface) ValuesClient { return &valuesClient{cc} }

func (c *valuesClient) StoreValues(ctx context.Context, in *StoreValuesRequest, opts ...grpc.CallOption) (*StoreValuesResponse, error) {
	out := new(StoreValuesResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Values/StoreValues", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *valuesClient) RetrieveValues(ctx context.Context, in *RetrieveValuesRequest, opts ...grpc.CallOption) (*RetrieveValuesResponse, error) {
	out := new(RetrieveValuesResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Values/RetrieveValues", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *valuesClient) DeleteValues(ctx context.Context, in *DeleteValuesRequest, opts ...grpc.CallOption) (*DeleteValuesResponse, error) {
	out := new(DeleteValuesResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Values/DeleteValues", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Values_StoreValues_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StoreValuesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ValuesServer).StoreValues(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Values/StoreValues"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ValuesServer).StoreValues(ctx, req.(*StoreValuesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Values_RetrieveValues_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RetrieveValuesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ValuesServer).RetrieveValues(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Values/RetrieveValues"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ValuesServer).RetrieveValues(ctx, req.(*RetrieveValuesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Values_DeleteValues_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteValuesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ValuesServer).DeleteValues(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Values/DeleteValues"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ValuesServer).DeleteValues(ctx, req.(*DeleteValuesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var Values_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "nilvmpb.Values",
	HandlerType: (*ValuesServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StoreValues", Handler: _Values_StoreValues_Handler},
		{MethodName: "RetrieveValues", Handler: _Values_RetrieveValues_Handler},
		{MethodName: "DeleteValues", Handler: _Values_DeleteValues_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nilvmpb.proto",
}

func RegisterValuesServer(s grpc.ServiceRegistrar, srv ValuesServer) {
	s.RegisterService(&Values_ServiceDesc, srv)
}
