package rpc

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nilvm/node/internal/orchestrator"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/rpc/nilvmpb"
)

// PreprocessingServer implements nilvmpb.PreprocessingServer: the peer side
// of a leader's batch-generation announcement. A generation protocol's own
// traffic (RAN/RAN-BIT messages) rides the ordinary Fabric/FabricServer
// transport every other protocol uses, since internal/orchestrator's
// ProtocolLauncher.drive already routes any sm.Machine over it regardless
// of whether it backs a compute or a preprocessing batch — this service
// only carries the higher-level "generate batch N of element E, size S"
// coordination spec.md §6 names as its own RPC.
type PreprocessingServer struct {
	launcher        *orchestrator.ProtocolLauncher
	log             *logrus.Entry
	onAuxMaterialOK func()
}

// NewPreprocessingServer constructs a PreprocessingServer over launcher,
// which actually drives each announced batch's protocol instances.
// onAuxMaterialOK, if non-nil, is called once after this node's own side of
// an announced CGGMP21 aux-info ceremony completes successfully — the
// caller's hook for flipping its own AuxMaterialAvailable gate.
func NewPreprocessingServer(launcher *orchestrator.ProtocolLauncher, log *logrus.Entry, onAuxMaterialOK func()) *PreprocessingServer {
	return &PreprocessingServer{launcher: launcher, log: log.WithField("component", "preprocessing-rpc"), onAuxMaterialOK: onAuxMaterialOK}
}

// GeneratePreprocessing services a leader's per-batch announcements: one
// message in, one matching acknowledgement out, looped for the life of the
// stream.
func (s *PreprocessingServer) GeneratePreprocessing(stream nilvmpb.Preprocessing_GeneratePreprocessingServer) error {
	for {
		msg, err := stream.Recv()
		if err != nil {
			return nil
		}
		element := preprocessing.Element(msg.Element)
		if err := s.launcher.GenerateBatch(stream.Context(), element, msg.BatchID, msg.BatchSize); err != nil {
			s.log.WithError(err).WithField("element", element).WithField("batch", msg.BatchID).
				Warn("preprocessing: peer batch generation failed")
			return err
		}
		if err := stream.Send(&nilvmpb.PreprocessingMessage{GenerationID: msg.GenerationID}); err != nil {
			return err
		}
	}
}

// GenerateAuxiliaryMaterial is the once-per-cluster-lifetime counterpart
// for the CGGMP21 aux-info gate (config.AuxiliaryMaterial): on each
// announced generation id, this peer runs the commit-reveal ceremony
// (ProtocolLauncher.GenerateAuxInfo) alongside the announcing leader
// before acknowledging.
func (s *PreprocessingServer) GenerateAuxiliaryMaterial(stream nilvmpb.Preprocessing_GenerateAuxiliaryMaterialServer) error {
	for {
		msg, err := stream.Recv()
		if err != nil {
			return nil
		}
		if _, err := s.launcher.GenerateAuxInfo(stream.Context(), msg.GenerationID); err != nil {
			s.log.WithError(err).WithField("generation", msg.GenerationID).
				Warn("preprocessing: peer auxiliary material generation failed")
			return err
		}
		if s.onAuxMaterialOK != nil {
			s.onAuxMaterialOK()
		}
		if err := stream.Send(&nilvmpb.PreprocessingMessage{GenerationID: msg.GenerationID}); err != nil {
			return err
		}
	}
}

// Broadcaster implements preprocessing.Generator on the leader: it drives
// the batch locally via ProtocolLauncher.GenerateBatch and simultaneously
// announces the same batch to every peer over Preprocessing.
// GeneratePreprocessing, only returning once every peer has acknowledged —
// spec.md §4.5's "on success, all nodes advance generated += batch_size
// atomically" requires the whole cluster to agree a batch committed before
// any single node's Pool.CommitBatch runs.
type Broadcaster struct {
	self     string
	peers    []Peer
	launcher *orchestrator.ProtocolLauncher
	dialer   *PeerDialer
}

// Peer identifies one cluster member other than self, by its gRPC peer id.
type Peer struct {
	NodeID string
	PeerID uint64
}

// NewBroadcaster constructs a Broadcaster. peers lists every cluster member
// other than self.
func NewBroadcaster(self string, peers []Peer, launcher *orchestrator.ProtocolLauncher, dialer *PeerDialer) *Broadcaster {
	return &Broadcaster{self: self, peers: peers, launcher: launcher, dialer: dialer}
}

// Generate implements preprocessing.Generator.
func (b *Broadcaster) Generate(ctx context.Context, element preprocessing.Element, batchID, batchSize uint64) error {
	generationID := fmt.Sprintf("%s-%d", element, batchID)

	errCh := make(chan error, len(b.peers)+1)
	go func() {
		errCh <- b.launcher.GenerateBatch(ctx, element, batchID, batchSize)
	}()

	for _, peer := range b.peers {
		peer := peer
		go func() {
			errCh <- b.announce(ctx, peer.PeerID, generationID, element, batchID, batchSize)
		}()
	}

	var firstErr error
	for i := 0; i < len(b.peers)+1; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GenerateAuxiliaryMaterial drives the cluster-wide CGGMP21 aux-info
// ceremony: this node runs ProtocolLauncher.GenerateAuxInfo locally while
// simultaneously announcing the same generationID to every peer, only
// returning once the local ceremony and every peer's matching ceremony
// have all completed. Intended to run once at cluster startup, gated by
// config.Network.AuxiliaryMaterial.CGGMP21AuxInfo.Enabled.
func (b *Broadcaster) GenerateAuxiliaryMaterial(ctx context.Context, generationID string) ([32]byte, error) {
	type result struct {
		material [32]byte
		err      error
	}
	results := make(chan result, len(b.peers)+1)

	go func() {
		material, err := b.launcher.GenerateAuxInfo(ctx, generationID)
		results <- result{material: material, err: err}
	}()
	for _, peer := range b.peers {
		peer := peer
		go func() {
			results <- result{err: b.announceAuxiliaryMaterial(ctx, peer.PeerID, generationID)}
		}()
	}

	var material [32]byte
	var firstErr error
	for i := 0; i < len(b.peers)+1; i++ {
		r := <-results
		if r.material != ([32]byte{}) {
			material = r.material
		}
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
	}
	if firstErr != nil {
		return [32]byte{}, firstErr
	}
	return material, nil
}

func (b *Broadcaster) announceAuxiliaryMaterial(ctx context.Context, peer uint64, generationID string) error {
	client, err := b.dialer.Preprocessing(peer)
	if err != nil {
		return err
	}
	stream, err := client.GenerateAuxiliaryMaterial(ctx)
	if err != nil {
		return err
	}
	if err := stream.Send(&nilvmpb.PreprocessingMessage{GenerationID: generationID}); err != nil {
		return err
	}
	ack, err := stream.Recv()
	if err != nil {
		return fmt.Errorf("rpc: peer %d ack for auxiliary material %s: %w", peer, generationID, err)
	}
	if ack.GenerationID != generationID {
		return fmt.Errorf("rpc: peer %d acked mismatched generation %q, want %q", peer, ack.GenerationID, generationID)
	}
	return nil
}

func (b *Broadcaster) announce(ctx context.Context, peer uint64, generationID string, element preprocessing.Element, batchID, batchSize uint64) error {
	client, err := b.dialer.Preprocessing(peer)
	if err != nil {
		return err
	}
	stream, err := client.GeneratePreprocessing(ctx)
	if err != nil {
		return err
	}
	if err := stream.Send(&nilvmpb.PreprocessingMessage{
		GenerationID: generationID,
		Element:      string(element),
		BatchID:      batchID,
		BatchSize:    batchSize,
	}); err != nil {
		return err
	}
	ack, err := stream.Recv()
	if err != nil {
		return fmt.Errorf("rpc: peer %d ack for batch %s: %w", peer, generationID, err)
	}
	if ack.GenerationID != generationID {
		return fmt.Errorf("rpc: peer %d acked mismatched generation %q, want %q", peer, ack.GenerationID, generationID)
	}
	return nil
}
