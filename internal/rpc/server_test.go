package rpc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nilvm/node/internal/config"
	"github.com/nilvm/node/internal/fabric"
	"github.com/nilvm/node/internal/membership"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/protocol"
	"github.com/nilvm/node/internal/rpc/nilvmpb"
	"github.com/nilvm/node/internal/storage"
)

// newTestServer builds a Server backed by a real in-memory sqlite
// Bookkeeping and a real Fabric, covering every RPC whose business logic
// doesn't reach the S3-backed value/permissions stores: those need a real
// or mocked S3 endpoint and are exercised elsewhere.
func newTestServer(t *testing.T) (*Server, membership.Cluster) {
	t.Helper()

	cfg := config.Cluster{
		Members: []config.Member{
			{NodeID: "node-1"},
			{NodeID: "node-2"},
			{NodeID: "node-3"},
		},
		Leader:           "node-1",
		Prime:            "safe_64_bits",
		PolynomialDegree: 1,
		Kappa:            40,
	}
	cluster, err := membership.FromConfig(cfg)
	if err != nil {
		t.Fatalf("build cluster: %v", err)
	}

	books, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open bookkeeping: %v", err)
	}
	t.Cleanup(func() { books.Close() })

	manager := preprocessing.NewManager(preprocessing.DefaultConfig(), func(ctx context.Context, element preprocessing.Element, batchID, batchSize uint64) error {
		return nil
	}, func() bool { return true }, logrus.NewEntry(logrus.StandardLogger()))

	fab := fabric.New(fabric.DefaultConfig(), noopTransport{})

	s := NewServer(Deps{
		Self:                 "node-1",
		Cluster:              cluster,
		Manager:              manager,
		Fabric:               fab,
		Bookkeeping:          books,
		Pricing:              DefaultPricing(),
		Log:                  logrus.NewEntry(logrus.StandardLogger()),
		AuxMaterialAvailable: func() bool { return true },
	})
	return s, cluster
}

type noopTransport struct{}

func (noopTransport) Send(ctx context.Context, peer uint64, env fabric.Envelope) error { return nil }

// zeroMaterial satisfies orchestrator.MaterialSource for tests whose
// launcher never reaches a code path resolving correlated randomness.
type zeroMaterial struct{}

func (zeroMaterial) Compare(offset uint64) (protocol.ComparePreprocessing, error) {
	return protocol.ComparePreprocessing{}, fmt.Errorf("zeroMaterial: not implemented")
}

func (zeroMaterial) Div(offset uint64) (protocol.DivPreprocessing, error) {
	return protocol.DivPreprocessing{}, fmt.Errorf("zeroMaterial: not implemented")
}

func (zeroMaterial) Equals(offset uint64) (protocol.EqualsPreprocessing, error) {
	return protocol.EqualsPreprocessing{}, fmt.Errorf("zeroMaterial: not implemented")
}

func (zeroMaterial) Mod2m(offset uint64, bits int) (protocol.Mod2mPreprocessing, error) {
	return protocol.Mod2mPreprocessing{}, fmt.Errorf("zeroMaterial: not implemented")
}

func TestPriceQuoteAddsSizeHint(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.PriceQuote(context.Background(), &nilvmpb.PriceQuoteRequest{OperationKind: "StoreValues", SizeHint: 7})
	if err != nil {
		t.Fatalf("PriceQuote: %v", err)
	}
	if resp.Price != 17 {
		t.Fatalf("expected 10+7=17, got %d", resp.Price)
	}
}

func TestPriceQuoteRejectsUnknownOperation(t *testing.T) {
	s, _ := newTestServer(t)
	if _, err := s.PriceQuote(context.Background(), &nilvmpb.PriceQuoteRequest{OperationKind: "Bogus"}); err == nil {
		t.Fatal("expected an error for an unknown operation kind")
	}
}

func TestPaymentReceiptAcceptsFreshNonceAndRejectsReplay(t *testing.T) {
	s, _ := newTestServer(t)
	req := &nilvmpb.PaymentReceiptRequest{Receipt: nilvmpb.SignedReceipt{
		OperationKind: "StoreValues",
		Nonce:         []byte("nonce-1"),
		Payer:         "alice",
	}}

	resp, err := s.PaymentReceipt(context.Background(), req)
	if err != nil {
		t.Fatalf("first PaymentReceipt: %v", err)
	}
	if !resp.Accepted {
		t.Fatal("expected the first receipt to be accepted")
	}

	if _, err := s.PaymentReceipt(context.Background(), req); err == nil {
		t.Fatal("expected replaying the same nonce to be rejected")
	}
}

func TestPaymentReceiptRejectsEmptyNonce(t *testing.T) {
	s, _ := newTestServer(t)
	req := &nilvmpb.PaymentReceiptRequest{Receipt: nilvmpb.SignedReceipt{OperationKind: "StoreValues", Payer: "alice"}}
	if _, err := s.PaymentReceipt(context.Background(), req); err == nil {
		t.Fatal("expected an empty nonce to be rejected")
	}
}

func TestClusterReportsConfiguredMembers(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.Cluster(context.Background(), &nilvmpb.ClusterRequest{})
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(resp.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(resp.Members))
	}
	if resp.Leader != "node-1" {
		t.Fatalf("expected leader node-1, got %q", resp.Leader)
	}
	if resp.Prime != "safe_64_bits" {
		t.Fatalf("expected prime safe_64_bits, got %q", resp.Prime)
	}
}

func TestNodeIDReturnsSelf(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.NodeID(context.Background(), &nilvmpb.NodeIDRequest{})
	if err != nil {
		t.Fatalf("NodeID: %v", err)
	}
	if resp.NodeID != "node-1" {
		t.Fatalf("expected node-1, got %q", resp.NodeID)
	}
}

func TestPoolStatusReportsEveryElementAndAuxAvailability(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.PoolStatus(context.Background(), &nilvmpb.PoolStatusRequest{})
	if err != nil {
		t.Fatalf("PoolStatus: %v", err)
	}
	if len(resp.Offsets) != len(preprocessing.Elements) {
		t.Fatalf("expected %d elements, got %d", len(preprocessing.Elements), len(resp.Offsets))
	}
	if !resp.PreprocessingActive {
		t.Fatal("expected PreprocessingActive to reflect IsLeader(self)")
	}
	if !resp.AuxiliaryMaterialAvailable {
		t.Fatal("expected AuxiliaryMaterialAvailable to reflect the injected callback")
	}
}

func TestSendDeliversToARegisteredInstance(t *testing.T) {
	s, _ := newTestServer(t)
	s.fab.RegisterInstance("inst-1", []uint64{2})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := s.Send(ctx, &nilvmpb.EnvelopeMessage{InstanceID: "inst-1", From: 2, Round: 0, Payload: []byte("hi")}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	env, err := s.fab.Recv(ctx, "inst-1", 2)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(env.Payload) != "hi" {
		t.Fatalf("expected payload %q, got %q", "hi", env.Payload)
	}
}
