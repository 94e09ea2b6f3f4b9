// Command nilvmd is one nilVM cluster node: it loads its static
// configuration, wires the compute orchestrator, preprocessing scheduler,
// and peer-to-peer fabric against gRPC, and serves spec.md §6's client and
// peer surfaces until signaled to stop.
//
// Grounded on the example pack's server-entrypoint shape (config load,
// wire collaborators bottom-up, serve in the background, block on
// SIGINT/SIGTERM, shut down gracefully) rather than the teacher, which has
// no cmd/ binary of its own — republicprotocol/tau's core packages are
// wired by hand inside test harnesses, never by a running process.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nilvm/node/internal/audit"
	"github.com/nilvm/node/internal/config"
	"github.com/nilvm/node/internal/fabric"
	"github.com/nilvm/node/internal/membership"
	"github.com/nilvm/node/internal/metrics"
	"github.com/nilvm/node/internal/orchestrator"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/program"
	"github.com/nilvm/node/internal/rpc"
	"github.com/nilvm/node/internal/storage"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	if err := run(log); err != nil {
		log.WithError(err).Fatal("nilvmd: fatal")
	}
}

func run(log *logrus.Entry) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	self := membership.NodeID(cfg.Identity.NodeID)
	cluster, err := membership.FromConfig(cfg.Cluster)
	if err != nil {
		return fmt.Errorf("build cluster: %w", err)
	}
	selfPeer, ok := cluster.PeerID(self)
	if !ok {
		return fmt.Errorf("identity.node_id %q is not a cluster member", self)
	}
	log = log.WithField("node_id", string(self))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Storage ──────────────────────────────────────────────────────────
	books, err := storage.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("open bookkeeping: %w", err)
	}
	defer books.Close()

	blobs, err := storage.NewBlobStore(ctx, storage.S3Config{
		Bucket:   cfg.Storage.S3Bucket,
		Region:   cfg.Storage.S3Region,
		Endpoint: cfg.Storage.S3Endpoint,
	})
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	values := storage.NewValueStore(blobs)
	perms := storage.NewPermissionsStore(blobs)
	outputs := storage.NewOutputStore(blobs)
	programs := storage.NewProgramStore(blobs, program.Build)

	// ── Metrics ──────────────────────────────────────────────────────────
	mtx := metrics.New()
	metricsSrv := mtx.Server(cfg.Runtime.MetricsBindEndpoint)
	go func() {
		log.WithField("endpoint", cfg.Runtime.MetricsBindEndpoint).Info("nilvmd: serving metrics")
		if err := metricsSrv.ListenAndServe(); err != nil {
			log.WithError(err).Warn("nilvmd: metrics server stopped")
		}
	}()

	// ── Fabric / peer transport ─────────────────────────────────────────
	dialer := rpc.NewPeerDialer(cluster)
	defer dialer.Close()

	transport := rpc.NewGRPCTransport(dialer)
	fab := fabric.New(fabric.DefaultConfig(), transport)

	// ── Preprocessing material and launcher ─────────────────────────────
	seed, err := hex.DecodeString(cfg.Cluster.PRSSSeed)
	if err != nil {
		return fmt.Errorf("decode cluster.prss_seed: %w", err)
	}
	material := orchestrator.NewPRSSSource(seed, selfPeer, uint64(cluster.PolynomialDegree()), cluster.Field())

	launcher, err := orchestrator.NewProtocolLauncher(cluster, self, fab, material)
	if err != nil {
		return fmt.Errorf("build protocol launcher: %w", err)
	}

	// ── Preprocessing scheduler ──────────────────────────────────────────
	var peers []rpc.Peer
	for _, m := range cluster.Members() {
		if m.NodeID == self {
			continue
		}
		peer, _ := cluster.PeerID(m.NodeID)
		peers = append(peers, rpc.Peer{NodeID: string(m.NodeID), PeerID: peer})
	}
	broadcaster := rpc.NewBroadcaster(string(self), peers, launcher, dialer)

	manager := preprocessing.NewManager(preprocessing.DefaultConfig(), broadcaster.Generate, func() bool {
		return cluster.IsLeader(self)
	}, log)
	go manager.Run(ctx)
	go observePools(ctx, mtx, manager)

	pools := map[preprocessing.Element]*preprocessing.Pool{}
	for _, e := range preprocessing.Elements {
		pools[e] = manager.Pool(e)
	}

	// ── Compute orchestrator ─────────────────────────────────────────────
	orch := orchestrator.New(orchestrator.Config{
		Pools: pools,
		AuditConfig: audit.Config{
			MaxMemorySize:    cfg.ProgramAuditor.MaxMemorySize,
			MaxInstructions:  cfg.ProgramAuditor.MaxInstructions,
			MaxPreprocessing: cfg.ProgramAuditor.MaxPreprocessing,
		},
		Launcher:        launcher,
		Programs:        programs,
		Values:          values,
		Outputs:         outputs,
		DefaultDeadline: 5 * time.Minute,
	}, log)

	// ── gRPC surface ─────────────────────────────────────────────────────
	auxEnabled := cfg.Network.AuxiliaryMaterial.CGGMP21AuxInfo.Enabled
	var auxMaterialReady atomic.Bool
	auxMaterialReady.Store(!auxEnabled) // nothing to wait for when the gate is off

	srv := rpc.NewServer(rpc.Deps{
		Self:                 self,
		Cluster:              cluster,
		Orchestrator:         orch,
		Manager:              manager,
		Fabric:               fab,
		Bookkeeping:          books,
		Values:               values,
		Permissions:          perms,
		Pricing:              rpc.DefaultPricing(),
		Dialer:               dialer,
		Log:                  log,
		AuxMaterialAvailable: auxMaterialReady.Load,
	})
	preprocSrv := rpc.NewPreprocessingServer(launcher, log, func() { auxMaterialReady.Store(true) })

	grpcSrv, err := rpc.StartGrpc(cfg.Runtime.GRPC.BindEndpoint, srv, preprocSrv, log)
	if err != nil {
		return fmt.Errorf("start grpc: %w", err)
	}

	// ── One-time CGGMP21 auxiliary material ceremony ────────────────────
	// Only the leader drives this; every other member's own
	// auxMaterialReady flips inside PreprocessingServer.GenerateAuxiliaryMaterial
	// once it finishes its side of the same ceremony, announced by the
	// leader below. Run once this node's own gRPC surface is serving
	// (above); every other cluster member is expected to reach the same
	// point at roughly the same time during a fresh cluster bring-up, the
	// same ordering assumption the rest of the pack's cluster-bootstrap
	// scripts make.
	if auxEnabled && cluster.IsLeader(self) {
		auxCtx, auxCancel := context.WithTimeout(ctx, 30*time.Second)
		_, auxErr := broadcaster.GenerateAuxiliaryMaterial(auxCtx, "startup")
		auxCancel()
		if auxErr != nil {
			return fmt.Errorf("generate auxiliary material: %w", auxErr)
		}
		auxMaterialReady.Store(true)
		log.Info("nilvmd: auxiliary material ceremony complete")
	}

	<-ctx.Done()
	log.Info("nilvmd: shutting down")

	grpcSrv.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := metrics.Shutdown(shutdownCtx, metricsSrv); err != nil {
		log.WithError(err).Warn("nilvmd: metrics shutdown error")
	}

	return nil
}

// observePools periodically mirrors every element's pool counters into the
// metrics registry, since Pool itself has no Prometheus dependency.
func observePools(ctx context.Context, mtx *metrics.Metrics, manager *preprocessing.Manager) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, e := range preprocessing.Elements {
				snap := manager.Pool(e).Snapshot()
				mtx.ObservePoolSnapshot(string(e), snap.Generated, snap.Reserved, snap.Deleted)
			}
		}
	}
}
