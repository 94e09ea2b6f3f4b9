package rpc

import (
	"context"
	"fmt"
	"net"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/nilvm/node/internal/rpc/nilvmpb"
)

// GrpcServer wraps a *grpc.Server bound to one TCP listener, following the
// Erigon txpool gRPC server's construction: a panic-recovery interceptor
// chain, server-side keepalive enforcement, reflection registered for
// debugging, every service registered up front.
type GrpcServer struct {
	grpcServer *grpc.Server
	listener   net.Listener
	log        *logrus.Entry
}

// StartGrpc builds a grpc.Server registering every nilvmpb service against
// srv and preproc, binds bindEndpoint, and serves in the background. Call
// Stop to gracefully shut down.
func StartGrpc(bindEndpoint string, srv *Server, preproc *PreprocessingServer, log *logrus.Entry) (*GrpcServer, error) {
	lis, err := net.Listen("tcp", bindEndpoint)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen %s: %w", bindEndpoint, err)
	}

	recoveryOpt := grpc_recovery.WithRecoveryHandlerContext(func(ctx context.Context, p interface{}) error {
		log.WithField("panic", p).Error("rpc: recovered from panic in handler")
		return fmt.Errorf("rpc: internal error")
	})

	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    2 * time.Minute,
			Timeout: 20 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             1 * time.Minute,
			PermitWithoutStream: true,
		}),
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			grpc_recovery.UnaryServerInterceptor(recoveryOpt),
		)),
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
			grpc_recovery.StreamServerInterceptor(recoveryOpt),
		)),
	)

	nilvmpb.RegisterPaymentsServer(grpcServer, srv)
	nilvmpb.RegisterPermissionsServer(grpcServer, srv)
	nilvmpb.RegisterValuesServer(grpcServer, srv)
	nilvmpb.RegisterComputeServer(grpcServer, srv)
	nilvmpb.RegisterLeaderQueriesServer(grpcServer, srv)
	nilvmpb.RegisterMembershipServer(grpcServer, srv)
	nilvmpb.RegisterFabricServer(grpcServer, srv)
	nilvmpb.RegisterPreprocessingServer(grpcServer, preproc)

	reflection.Register(grpcServer)

	g := &GrpcServer{grpcServer: grpcServer, listener: lis, log: log.WithField("component", "grpc")}
	go func() {
		g.log.WithField("endpoint", bindEndpoint).Info("rpc: serving")
		if err := grpcServer.Serve(lis); err != nil {
			g.log.WithError(err).Warn("rpc: server stopped")
		}
	}()
	return g, nil
}

// Stop gracefully shuts the server down, waiting for in-flight RPCs.
func (g *GrpcServer) Stop() {
	g.grpcServer.GracefulStop()
}
