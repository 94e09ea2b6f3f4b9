package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nilvm/node/internal/config"
	"github.com/nilvm/node/internal/fabric"
	"github.com/nilvm/node/internal/membership"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/storage"
)

// TestGRPCTransportSendReachesRealServer starts a real grpc.Server on a
// loopback port (StartGrpc) and dials it back through GRPCTransport/
// PeerDialer — the two collaborators internal/orchestrator's
// ProtocolLauncher.drive relies on for a real multi-node deployment — over
// an actual TCP connection rather than an in-process fake, covering the
// gRPC registration (grpcserver.go) and dial/call path (transport.go)
// neither server_test.go nor the in-process Fabric tests exercise.
func TestGRPCTransportSendReachesRealServer(t *testing.T) {
	srvCfg := config.Cluster{
		Members: []config.Member{
			{NodeID: "node-1"},
			{NodeID: "node-2"},
		},
		Leader:           "node-1",
		Prime:            "safe_64_bits",
		PolynomialDegree: 0,
		Kappa:            40,
	}
	srvCluster, err := membership.FromConfig(srvCfg)
	if err != nil {
		t.Fatalf("build server cluster: %v", err)
	}

	books, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open bookkeeping: %v", err)
	}
	defer books.Close()

	manager := preprocessing.NewManager(preprocessing.DefaultConfig(), func(ctx context.Context, element preprocessing.Element, batchID, batchSize uint64) error {
		return nil
	}, func() bool { return false }, logrus.NewEntry(logrus.StandardLogger()))

	fab := fabric.New(fabric.DefaultConfig(), noopTransport{})
	srv := NewServer(Deps{
		Self:        "node-2",
		Cluster:     srvCluster,
		Manager:     manager,
		Fabric:      fab,
		Bookkeeping: books,
		Pricing:     DefaultPricing(),
		Log:         logrus.NewEntry(logrus.StandardLogger()),
	})

	g, err := StartGrpc("127.0.0.1:0", srv, nil, logrus.NewEntry(logrus.StandardLogger()))
	if err != nil {
		t.Fatalf("StartGrpc: %v", err)
	}
	defer g.Stop()
	addr := g.listener.Addr().String()

	clientCfg := srvCfg
	clientCfg.Members = []config.Member{
		{NodeID: "node-1"},
		{NodeID: "node-2", Endpoint: addr},
	}
	clientCluster, err := membership.FromConfig(clientCfg)
	if err != nil {
		t.Fatalf("build client cluster: %v", err)
	}

	dialer := NewPeerDialer(clientCluster)
	defer dialer.Close()
	transport := NewGRPCTransport(dialer)

	fab.RegisterInstance("wire-test", []uint64{1, 2})
	defer fab.UnregisterInstance("wire-test", []uint64{1, 2})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := transport.Send(ctx, 2, fabric.Envelope{InstanceID: "wire-test", From: 1, Round: 0, Payload: []byte("hello over the wire")}); err != nil {
		t.Fatalf("transport.Send: %v", err)
	}

	env, err := fab.Recv(ctx, "wire-test", 1)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(env.Payload) != "hello over the wire" {
		t.Fatalf("expected payload %q, got %q", "hello over the wire", env.Payload)
	}
}
