package nilvmpb

import (
	"context"

	"google.golang.org/grpc"
)

// EnvelopeMessage carries one internal/fabric.Envelope between nodes. This
// service has no counterpart in spec.md §6's client-facing surface — it is
// the point-to-point transport internal/fabric.Transport dials to move
// protocol-instance traffic between cluster members, the wire-level sibling
// of the in-process channels the teacher's core/vm wires its protocols over.
type EnvelopeMessage struct {
	InstanceID string
	From       uint64
	Round      int
	Payload    []byte
}

type EnvelopeAck struct{}

type FabricServer interface {
	Send(context.Context, *EnvelopeMessage) (*EnvelopeAck, error)
}

type FabricClient interface {
	Send(ctx context.Context, in *EnvelopeMessage, opts ...grpc.CallOption) (*EnvelopeAck, error)
}

type fabricClient struct{ cc grpc.ClientConnInterface }

func NewFabricClient(cc grpc.ClientConnInterface) FabricClient { return &fabricClient{cc} }

func (c *fabricClient) Send(ctx context.Context, in *EnvelopeMessage, opts ...grpc.CallOption) (*EnvelopeAck, error) {
	out := new(EnvelopeAck)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Fabric/Send", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Fabric_Send_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(EnvelopeMessage)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FabricServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Fabric/Send"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FabricServer).Send(ctx, req.(*EnvelopeMessage))
	}
	return interceptor(ctx, in, info, handler)
}

var Fabric_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "nilvmpb.Fabric",
	HandlerType: (*FabricServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: _Fabric_Send_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nilvmpb.proto",
}

func RegisterFabricServer(s grpc.ServiceRegistrar, srv FabricServer) {
	s.RegisterService(&Fabric_ServiceDesc, srv)
}
