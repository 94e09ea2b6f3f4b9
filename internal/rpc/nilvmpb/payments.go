package nilvmpb

import (
	"context"

	"google.golang.org/grpc"
)

// PaymentsServer is the server API for the Payments service (spec.md §6):
// PriceQuote, PaymentReceipt.
type PaymentsServer interface {
	PriceQuote(context.Context, *PriceQuoteRequest) (*PriceQuoteResponse, error)
	PaymentReceipt(context.Context, *PaymentReceiptRequest) (*PaymentReceiptResponse, error)
}

type PaymentsClient interface {
	PriceQuote(ctx context.Context, in *PriceQuoteRequest, opts ...grpc.CallOption) (*PriceQuoteResponse, error)
	PaymentReceipt(ctx context.Context, in *PaymentReceiptRequest, opts ...grpc.CallOption) (*PaymentReceiptResponse, error)
}

type paymentsClient struct{ cc grpc.ClientConnInterface }

func NewPaymentsClient(cc grpc.ClientConnInterface) PaymentsClient { return &paymentsClient{cc} }

func (c *paymentsClient) PriceQuote(ctx context.Context, in *PriceQuoteRequest, opts ...grpc.CallOption) (*PriceQuoteResponse, error) {
	out := new(PriceQuoteResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Payments/PriceQuote", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *paymentsClient) PaymentReceipt(ctx context.Context, in *PaymentReceiptRequest, opts ...grpc.CallOption) (*PaymentReceiptResponse, error) {
	out := new(PaymentReceiptResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := c.cc.Invoke(ctx, "/nilvmpb.Payments/PaymentReceipt", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Payments_PriceQuote_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PriceQuoteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentsServer).PriceQuote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Payments/PriceQuote"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PaymentsServer).PriceQuote(ctx, req.(*PriceQuoteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Payments_PaymentReceipt_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PaymentReceiptRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentsServer).PaymentReceipt(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/nilvmpb.Payments/PaymentReceipt"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PaymentsServer).PaymentReceipt(ctx, req.(*PaymentReceiptRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var Payments_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "nilvmpb.Payments",
	HandlerType: (*PaymentsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PriceQuote", Handler: _Payments_PriceQuote_Handler},
		{MethodName: "PaymentReceipt", Handler: _Payments_PaymentReceipt_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nilvmpb.proto",
}

func RegisterPaymentsServer(s grpc.ServiceRegistrar, srv PaymentsServer) {
	s.RegisterService(&Payments_ServiceDesc, srv)
}
