package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nilvm/node/internal/config"
)

const sampleYAML = `
identity:
  node_id: node-a
  key_algorithm: ed25519
cluster:
  members:
    - node_id: node-a
      public_key: aaaa
      endpoint: localhost:14311
    - node_id: node-b
      public_key: bbbb
      endpoint: localhost:14312
  leader: node-a
  prime: safe_256_bits
  polynomial_degree: 1
  kappa: 40
network:
  preprocessing:
    Compare:
      batch_size: 128
      generation_threshold: 64
      target_offset_jump: 256
  auxiliary_material:
    cggmp21_aux_info:
      enabled: true
runtime:
  max_concurrent_actions: 32
  grpc:
    bind_endpoint: 0.0.0.0:14311
    tls: false
storage:
  sqlite_path: /var/lib/nilvm/node.db
  s3_bucket: nilvm-blobs
program_auditor:
  max_memory_size: 4096
`

func writeTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadParsesClusterAndPreprocessing(t *testing.T) {
	path := writeTempConfig(t)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Identity.NodeID != "node-a" {
		t.Fatalf("unexpected node id: %q", cfg.Identity.NodeID)
	}
	if len(cfg.Cluster.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(cfg.Cluster.Members))
	}
	if cfg.Cluster.Leader != "node-a" {
		t.Fatalf("unexpected leader: %q", cfg.Cluster.Leader)
	}
	pp, ok := cfg.Network.Preprocessing["Compare"]
	if !ok {
		t.Fatal("expected Compare preprocessing config")
	}
	if pp.BatchSize != 128 {
		t.Fatalf("unexpected batch size: %d", pp.BatchSize)
	}
	if !cfg.Network.AuxiliaryMaterial.CGGMP21AuxInfo.Enabled {
		t.Fatal("expected cggmp21 aux info enabled")
	}
	if cfg.ProgramAuditor.MaxMemorySize != 4096 {
		t.Fatalf("unexpected max memory size: %d", cfg.ProgramAuditor.MaxMemorySize)
	}
}

func TestLoadAppliesGRPCDefaultWhenUnset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("identity:\n  node_id: solo\n"), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Runtime.GRPC.BindEndpoint != "0.0.0.0:14311" {
		t.Fatalf("expected default bind endpoint, got %q", cfg.Runtime.GRPC.BindEndpoint)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := config.Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
