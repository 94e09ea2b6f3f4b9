package nilvmpb

import (
	"context"

	"google.golang.org/grpc"
)

// ComputeServer is the server API for the Compute service (spec.md §6):
// InvokeCompute -> compute_id; StreamCompute (server-streaming, internal
// only); RetrieveResults -> stream of {WaitingComputation | Success | Error}.
type ComputeServer interface {
	InvokeCompute(context.Context, *InvokeComputeRequest) (*InvokeComputeResponse, error)
	StreamCompute(*StreamComputeMessage, Compute_StreamComputeServer) error
	RetrieveResults(*RetrieveResultsRequest, Compute_RetrieveResultsServer) error
}

type Compute_StreamComputeServer interface {
	Send(*StreamComputeMessage) error
	grpc.ServerStream
}

type computeStreamComputeServer struct{ grpc.ServerStream }

func (x *computeStreamComputeServer) Send(m *StreamComputeMessage) error {
	return x.ServerStream.SendMsg(m)
}

type Compute_RetrieveResultsServer interface {
	Send(*RetrieveResultsUpdate) error
	grpc.ServerStream
}

type computeRetrieveResultsServer struct{ grpc.ServerStream }

func (x *computeRetrieveResultsServer) Send(m *RetrieveResultsUpdate) error {
	return x.ServerStream.SendMsg(m)
}

type ComputeClient interface {
	InvokeCompute(ctx context.Context, in *InvokeComputeRequest, opts ...grpc.CallOption) (*InvokeComputeResponse, error)
	StreamCompute(ctx context.Context, in *StreamComputeMessage, opts ...grpc.CallOption) (Compute_StreamComputeClient, error)
	RetrieveResults(ctx context.Context, in *RetrieveResultsRequest, opts ...grpc.CallOption) (Compute_RetrieveResultsClient, error)
}

type Compute_StreamComputeClient interface {
	Recv() (*StreamComputeMessage, error)
	grpc.ClientStream
}

type computeStreamComputeClient struct{ grpc.ClientStream }

func (x *computeStreamComputeClient) Recv() (*StreamComputeMessage, error) {
	m := new(StreamComputeMessage)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type Compute_RetrieveResultsClient interface {
	Recv() (*RetrieveResultsUpdate, error)
	grpc.ClientStream
}

type computeRetrieveResultsClient struct{ grpc.ClientStream }

func (x *computeRetrieveResultsClient) Recv() (*RetrieveResultsUpdate, error) {
	m := new(RetrieveResultsUpdate)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type computeClient struct{ cc grpc.ClientConnInterface }

func NewComputeClient(cc grpc.ClientConnInterface) ComputeClient { return &computeClient{cc} }

func (c *computeClient) InvokeCompute(ctx context.Context, in *InvokeComputeRequest, opts ...grpc.CallOption) (*InvokeComputeResponse, error) {
	out := new(InvokeComputeResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Compute/InvokeCompute", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *computeClient) StreamCompute(ctx context.Context, in *StreamComputeMessage, opts ...grpc.CallOption) (Compute_StreamComputeClient, error) {
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	stream, err := c.cc.NewStream(ctx, &Compute_ServiceDesc.Streams[0], "/nilvmpb.Compute/StreamCompute", opts...)
	if err != nil {
		return nil, err
	}
	x := &computeStreamComputeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *computeClient) RetrieveResults(ctx context.Context, in *RetrieveResultsRequest, opts ...grpc.CallOption) (Compute_RetrieveResultsClient, error) {
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	stream, err := c.cc.NewStream(ctx, &Compute_ServiceDesc.Streams[1], "/nilvmpb.Compute/RetrieveResults", opts...)
	if err != nil {
		return nil, err
	}
	x := &computeRetrieveResultsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func _Compute_InvokeCompute_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InvokeComputeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ComputeServer).InvokeCompute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Compute/InvokeCompute"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ComputeServer).InvokeCompute(ctx, req.(*InvokeComputeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Compute_StreamCompute_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(StreamComputeMessage)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ComputeServer).StreamCompute(m, &computeStreamComputeServer{stream})
}

func _Compute_RetrieveResults_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(RetrieveResultsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ComputeServer).RetrieveResults(m, &computeRetrieveResultsServer{stream})
}

var Compute_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "nilvmpb.Compute",
	HandlerType: (*ComputeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "InvokeCompute", Handler: _Compute_InvokeCompute_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamCompute", Handler: _Compute_StreamCompute_Handler, ServerStreams: true},
		{StreamName: "RetrieveResults", Handler: _Compute_RetrieveResults_Handler, ServerStreams: true},
	},
	Metadata: "nilvmpb.proto",
}

func RegisterComputeServer(s grpc.ServiceRegistrar, srv ComputeServer) {
	s.RegisterService(&Compute_ServiceDesc, srv)
}
