package rpc

import (
	"context"
	"io"
	"testing"

	"google.golang.org/grpc/metadata"

	"github.com/sirupsen/logrus"

	"github.com/nilvm/node/internal/config"
	"github.com/nilvm/node/internal/fabric"
	"github.com/nilvm/node/internal/membership"
	"github.com/nilvm/node/internal/orchestrator"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/rpc/nilvmpb"
)

// fakePreprocessingStream stands in for the grpc.ServerStream a real dial
// would provide: PreprocessingServer only ever calls Send/Recv/Context on
// it, so a minimal fake satisfying those plus the rest of grpc.ServerStream
// as no-ops is enough to drive GeneratePreprocessing/GenerateAuxiliaryMaterial
// end to end without a real network connection.
type fakePreprocessingStream struct {
	ctx context.Context
	in  chan *nilvmpb.PreprocessingMessage
	out chan *nilvmpb.PreprocessingMessage
}

func newFakePreprocessingStream() *fakePreprocessingStream {
	return &fakePreprocessingStream{
		ctx: context.Background(),
		in:  make(chan *nilvmpb.PreprocessingMessage, 4),
		out: make(chan *nilvmpb.PreprocessingMessage, 4),
	}
}

func (s *fakePreprocessingStream) Send(m *nilvmpb.PreprocessingMessage) error {
	s.out <- m
	return nil
}

func (s *fakePreprocessingStream) Recv() (*nilvmpb.PreprocessingMessage, error) {
	m, ok := <-s.in
	if !ok {
		return nil, io.EOF
	}
	return m, nil
}

func (s *fakePreprocessingStream) Context() context.Context          { return s.ctx }
func (s *fakePreprocessingStream) SetHeader(metadata.MD) error       { return nil }
func (s *fakePreprocessingStream) SendHeader(metadata.MD) error      { return nil }
func (s *fakePreprocessingStream) SetTrailer(metadata.MD)            {}
func (s *fakePreprocessingStream) SendMsg(m interface{}) error       { return nil }
func (s *fakePreprocessingStream) RecvMsg(m interface{}) error       { return nil }

// singleNodeLauncher builds a ProtocolLauncher for a one-member cluster:
// GenerateBatch/GenerateAuxInfo's broadcast step skips self, so a lone node
// can drive either to completion with no peer traffic at all, which is all
// PreprocessingServer's stream handlers need to exercise.
func singleNodeLauncher(t *testing.T) *orchestrator.ProtocolLauncher {
	t.Helper()
	cfg := config.Cluster{
		Members:          []config.Member{{NodeID: "node-1"}},
		Leader:           "node-1",
		Prime:            "safe_64_bits",
		PolynomialDegree: 0,
		Kappa:            40,
	}
	cluster, err := membership.FromConfig(cfg)
	if err != nil {
		t.Fatalf("build cluster: %v", err)
	}
	fab := fabric.New(fabric.DefaultConfig(), noopTransport{})
	launcher, err := orchestrator.NewProtocolLauncher(cluster, "node-1", fab, zeroMaterial{})
	if err != nil {
		t.Fatalf("build launcher: %v", err)
	}
	return launcher
}

func TestGeneratePreprocessingAcknowledgesEachAnnouncedBatch(t *testing.T) {
	launcher := singleNodeLauncher(t)
	srv := NewPreprocessingServer(launcher, logrus.NewEntry(logrus.StandardLogger()), nil)
	stream := newFakePreprocessingStream()

	done := make(chan error, 1)
	go func() { done <- srv.GeneratePreprocessing(stream) }()

	stream.in <- &nilvmpb.PreprocessingMessage{
		GenerationID: "gen-1",
		Element:      string(preprocessing.ElementRandomInteger),
		BatchID:      0,
		BatchSize:    1,
	}
	ack := <-stream.out
	if ack.GenerationID != "gen-1" {
		t.Fatalf("expected ack for gen-1, got %q", ack.GenerationID)
	}

	close(stream.in)
	if err := <-done; err != nil {
		t.Fatalf("GeneratePreprocessing: %v", err)
	}
}

func TestGenerateAuxiliaryMaterialInvokesCallbackOnSuccess(t *testing.T) {
	launcher := singleNodeLauncher(t)
	called := make(chan struct{}, 1)
	srv := NewPreprocessingServer(launcher, logrus.NewEntry(logrus.StandardLogger()), func() { called <- struct{}{} })
	stream := newFakePreprocessingStream()

	done := make(chan error, 1)
	go func() { done <- srv.GenerateAuxiliaryMaterial(stream) }()

	stream.in <- &nilvmpb.PreprocessingMessage{GenerationID: "startup"}
	ack := <-stream.out
	if ack.GenerationID != "startup" {
		t.Fatalf("expected ack for startup, got %q", ack.GenerationID)
	}

	select {
	case <-called:
	default:
		t.Fatal("expected onAuxMaterialOK to be invoked after a successful ceremony")
	}

	close(stream.in)
	if err := <-done; err != nil {
		t.Fatalf("GenerateAuxiliaryMaterial: %v", err)
	}
}
