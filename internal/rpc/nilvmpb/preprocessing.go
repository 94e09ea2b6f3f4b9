package nilvmpb

import (
	"context"

	"google.golang.org/grpc"
)

// PreprocessingServer is the server API for the Preprocessing service
// (spec.md §6): GeneratePreprocessing / GenerateAuxiliaryMaterial (internal,
// bidirectional streams of PreprocessingMessage frames).
type PreprocessingServer interface {
	GeneratePreprocessing(Preprocessing_GeneratePreprocessingServer) error
	GenerateAuxiliaryMaterial(Preprocessing_GenerateAuxiliaryMaterialServer) error
}

type Preprocessing_GeneratePreprocessingServer interface {
	Send(*PreprocessingMessage) error
	Recv() (*PreprocessingMessage, error)
	grpc.ServerStream
}

type preprocessingGeneratePreprocessingServer struct{ grpc.ServerStream }

func (x *preprocessingGeneratePreprocessingServer) Send(m *PreprocessingMessage) error {
	return x.ServerStream.SendMsg(m)
}

func (x *preprocessingGeneratePreprocessingServer) Recv() (*PreprocessingMessage, error) {
	m := new(PreprocessingMessage)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type Preprocessing_GenerateAuxiliaryMaterialServer interface {
	Send(*PreprocessingMessage) error
	Recv() (*PreprocessingMessage, error)
	grpc.ServerStream
}

type preprocessingGenerateAuxiliaryMaterialServer struct{ grpc.ServerStream }

func (x *preprocessingGenerateAuxiliaryMaterialServer) Send(m *PreprocessingMessage) error {
	return x.ServerStream.SendMsg(m)
}

func (x *preprocessingGenerateAuxiliaryMaterialServer) Recv() (*PreprocessingMessage, error) {
	m := new(PreprocessingMessage)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type PreprocessingClient interface {
	GeneratePreprocessing(ctx context.Context, opts ...grpc.CallOption) (Preprocessing_GeneratePreprocessingClient, error)
	GenerateAuxiliaryMaterial(ctx context.Context, opts ...grpc.CallOption) (Preprocessing_GenerateAuxiliaryMaterialClient, error)
}

type Preprocessing_GeneratePreprocessingClient interface {
	Send(*PreprocessingMessage) error
	Recv() (*PreprocessingMessage, error)
	grpc.ClientStream
}

type preprocessingGeneratePreprocessingClient struct{ grpc.ClientStream }

func (x *preprocessingGeneratePreprocessingClient) Send(m *PreprocessingMessage) error {
	return x.ClientStream.SendMsg(m)
}

func (x *preprocessingGeneratePreprocessingClient) Recv() (*PreprocessingMessage, error) {
	m := new(PreprocessingMessage)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type Preprocessing_GenerateAuxiliaryMaterialClient interface {
	Send(*PreprocessingMessage) error
	Recv() (*PreprocessingMessage, error)
	grpc.ClientStream
}

type preprocessingGenerateAuxiliaryMaterialClient struct{ grpc.ClientStream }

func (x *preprocessingGenerateAuxiliaryMaterialClient) Send(m *PreprocessingMessage) error {
	return x.ClientStream.SendMsg(m)
}

func (x *preprocessingGenerateAuxiliaryMaterialClient) Recv() (*PreprocessingMessage, error) {
	m := new(PreprocessingMessage)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type preprocessingClient struct{ cc grpc.ClientConnInterface }

func NewPreprocessingClient(cc grpc.ClientConnInterface) PreprocessingClient { return &preprocessingClient{cc} }

func (c *preprocessingClient) GeneratePreprocessing(ctx context.Context, opts ...grpc.CallOption) (Preprocessing_GeneratePreprocessingClient, error) {
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	stream, err := c.cc.NewStream(ctx, &Preprocessing_ServiceDesc.Streams[0], "/nilvmpb.Preprocessing/GeneratePreprocessing", opts...)
	if err != nil {
		return nil, err
	}
	return &preprocessingGeneratePreprocessingClient{stream}, nil
}

func (c *preprocessingClient) GenerateAuxiliaryMaterial(ctx context.Context, opts ...grpc.CallOption) (Preprocessing_GenerateAuxiliaryMaterialClient, error) {
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	stream, err := c.cc.NewStream(ctx, &Preprocessing_ServiceDesc.Streams[1], "/nilvmpb.Preprocessing/GenerateAuxiliaryMaterial", opts...)
	if err != nil {
		return nil, err
	}
	return &preprocessingGenerateAuxiliaryMaterialClient{stream}, nil
}

func _Preprocessing_GeneratePreprocessing_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(PreprocessingServer).GeneratePreprocessing(&preprocessingGeneratePreprocessingServer{stream})
}

func _Preprocessing_GenerateAuxiliaryMaterial_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(PreprocessingServer).GenerateAuxiliaryMaterial(&preprocessingGenerateAuxiliaryMaterialServer{stream})
}

var Preprocessing_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "nilvmpb.Preprocessing",
	HandlerType: (*PreprocessingServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{StreamName: "GeneratePreprocessing", Handler: _Preprocessing_GeneratePreprocessing_Handler, ServerStreams: true, ClientStreams: true},
		{StreamName: "GenerateAuxiliaryMaterial", Handler: _Preprocessing_GenerateAuxiliaryMaterial_Handler, ServerStreams: true, ClientStreams: true},
	},
	Metadata: "nilvmpb.proto",
}

func RegisterPreprocessingServer(s grpc.ServiceRegistrar, srv PreprocessingServer) {
	s.RegisterService(&Preprocessing_ServiceDesc, srv)
}
