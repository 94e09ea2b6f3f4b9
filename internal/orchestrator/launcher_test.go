package orchestrator_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nilvm/node/internal/config"
	"github.com/nilvm/node/internal/fabric"
	"github.com/nilvm/node/internal/membership"
	"github.com/nilvm/node/internal/orchestrator"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/protocol"
)

// router wires a fixed set of fabric.Fabric instances together in-process,
// standing in for the real gRPC transport internal/rpc provides: sending
// to peer N just calls that peer's Fabric.Deliver directly.
type router struct {
	fabrics map[uint64]*fabric.Fabric
}

func (r *router) Send(ctx context.Context, peer uint64, env fabric.Envelope) error {
	return r.fabrics[peer].Deliver(env)
}

// threeNodeCluster builds three ProtocolLaunchers, each wired to its own
// Fabric over a shared in-process router, simulating a real three-node
// deployment tightly enough to exercise GenerateBatch/GenerateAuxInfo's
// full multi-node message flow without any real network.
func threeNodeCluster(t *testing.T) ([]*orchestrator.ProtocolLauncher, membership.Cluster) {
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

	rt := &router{fabrics: map[uint64]*fabric.Fabric{}}
	launchers := make([]*orchestrator.ProtocolLauncher, 3)
	for i := 1; i <= 3; i++ {
		fab := fabric.New(fabric.DefaultConfig(), rt)
		rt.fabrics[uint64(i)] = fab

		member, _ := cluster.MemberAt(uint64(i))
		launcher, err := orchestrator.NewProtocolLauncher(cluster, member.NodeID, fab, zeroMaterial{})
		if err != nil {
			t.Fatalf("build launcher %d: %v", i, err)
		}
		launchers[i-1] = launcher
	}
	return launchers, cluster
}

// zeroMaterial satisfies orchestrator.MaterialSource for tests that never
// reach a code path resolving correlated randomness: GenerateBatch and
// GenerateAuxInfo both drive protocols that generate their own randomness
// rather than consume preprocessed material, so every method here is
// unreachable and only exists to satisfy the interface.
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

func TestGenerateBatchRunsAcrossAllThreeNodes(t *testing.T) {
	launchers, _ := threeNodeCluster(t)

	errCh := make(chan error, len(launchers))
	for _, l := range launchers {
		l := l
		go func() {
			errCh <- l.GenerateBatch(context.Background(), preprocessing.ElementRandomInteger, 0, 2)
		}()
	}

	deadline := time.After(5 * time.Second)
	for range launchers {
		select {
		case err := <-errCh:
			if err != nil {
				t.Fatalf("GenerateBatch: %v", err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for GenerateBatch across the cluster")
		}
	}
}

func TestGenerateAuxInfoProducesIdenticalMaterialAcrossNodes(t *testing.T) {
	launchers, _ := threeNodeCluster(t)

	type result struct {
		material [32]byte
		err      error
	}
	results := make(chan result, len(launchers))
	for _, l := range launchers {
		l := l
		go func() {
			material, err := l.GenerateAuxInfo(context.Background(), "startup")
			results <- result{material: material, err: err}
		}()
	}

	deadline := time.After(5 * time.Second)
	var first [32]byte
	for i := 0; i < len(launchers); i++ {
		select {
		case r := <-results:
			if r.err != nil {
				t.Fatalf("GenerateAuxInfo: %v", r.err)
			}
			if i == 0 {
				first = r.material
			} else if r.material != first {
				t.Fatalf("node %d derived different material than node 1", i)
			}
		case <-deadline:
			t.Fatal("timed out waiting for GenerateAuxInfo across the cluster")
		}
	}
}
