// Package config loads a node's static configuration: the YAML file named
// by CONFIG_PATH, overlaid with environment variable overrides bound via
// viper's automatic-env double-underscore nesting replacer. It is grounded
// on the rest of the example pack rather than the teacher (republicprotocol
// /tau has no config file at all — cluster membership there is wired by
// hand in tests), following orbas1-Synnergy's pkg/config.Load shape: a
// single mapstructure-tagged Config struct, viper.ReadInConfig plus
// viper.AutomaticEnv, viper.Unmarshal.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Identity is a node's own cluster membership entry.
type Identity struct {
	NodeID       string `mapstructure:"node_id" yaml:"node_id"`
	PrivateKey   string `mapstructure:"private_key" yaml:"private_key"`     // PEM or hex-encoded, per KeyAlgorithm
	KeyAlgorithm string `mapstructure:"key_algorithm" yaml:"key_algorithm"` // "ed25519" or "secp256k1"
}

// Member is one entry in the cluster's static membership list.
type Member struct {
	NodeID    string `mapstructure:"node_id" yaml:"node_id"`
	PublicKey string `mapstructure:"public_key" yaml:"public_key"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
}

// Cluster is the fixed membership and cryptographic parameters spec.md §2
// requires every node to agree on.
type Cluster struct {
	Members          []Member `mapstructure:"members" yaml:"members"`
	Leader           string   `mapstructure:"leader" yaml:"leader"` // node_id of the static leader
	Prime            string   `mapstructure:"prime" yaml:"prime"`   // field.Name, e.g. "safe_256_bits"
	PolynomialDegree int      `mapstructure:"polynomial_degree" yaml:"polynomial_degree"`
	Kappa            int      `mapstructure:"kappa" yaml:"kappa"`
	PRSSSeed         string   `mapstructure:"prss_seed" yaml:"prss_seed"` // hex-encoded, shared by every member (orchestrator.PRSSSource)
}

// PreprocessingElementConfig is one element's scheduling policy, per
// spec.md §4.5.
type PreprocessingElementConfig struct {
	BatchSize           uint64 `mapstructure:"batch_size" yaml:"batch_size"`
	GenerationThreshold uint64 `mapstructure:"generation_threshold" yaml:"generation_threshold"`
	TargetOffsetJump    uint64 `mapstructure:"target_offset_jump" yaml:"target_offset_jump"`
}

// AuxiliaryMaterial configures the once-per-cluster-lifetime CGGMP21 aux
// info generation gate for threshold-ECDSA.
type AuxiliaryMaterial struct {
	CGGMP21AuxInfo struct {
		Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	} `mapstructure:"cggmp21_aux_info" yaml:"cggmp21_aux_info"`
}

// Network groups the preprocessing schedule and auxiliary material gate.
type Network struct {
	Preprocessing     map[string]PreprocessingElementConfig `mapstructure:"preprocessing" yaml:"preprocessing"`
	AuxiliaryMaterial AuxiliaryMaterial                     `mapstructure:"auxiliary_material" yaml:"auxiliary_material"`
}

// GRPC is the node's gRPC server surface.
type GRPC struct {
	BindEndpoint string `mapstructure:"bind_endpoint" yaml:"bind_endpoint"`
	TLS          bool   `mapstructure:"tls" yaml:"tls"`
}

// Runtime is the node's local resource limits and transport bind point.
type Runtime struct {
	MaxConcurrentActions int    `mapstructure:"max_concurrent_actions" yaml:"max_concurrent_actions"`
	GRPC                 GRPC   `mapstructure:"grpc" yaml:"grpc"`
	MetricsBindEndpoint  string `mapstructure:"metrics_bind_endpoint" yaml:"metrics_bind_endpoint"`
}

// Storage names the bookkeeping database and object storage bucket CO's
// ProgramStore/ValueStore/OutputStore implementations connect to.
type Storage struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	S3Bucket   string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Region   string `mapstructure:"s3_region" yaml:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
}

// Payments is out of CO's scope (spec.md §1) but still a config section a
// node must parse to pass through to the external payments/receipt
// collaborator.
type Payments struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// ProgramAuditor is PA's per-kind and per-preprocessing-element ceilings.
type ProgramAuditor struct {
	MaxMemorySize    int            `mapstructure:"max_memory_size" yaml:"max_memory_size"`
	MaxInstructions  map[string]int `mapstructure:"max_instructions" yaml:"max_instructions"`
	MaxPreprocessing map[string]int `mapstructure:"max_preprocessing" yaml:"max_preprocessing"`
}

// Config is the whole of a node's static configuration, matching spec.md
// §6's config surface exactly.
type Config struct {
	Identity       Identity       `mapstructure:"identity" yaml:"identity"`
	Cluster        Cluster        `mapstructure:"cluster" yaml:"cluster"`
	Network        Network        `mapstructure:"network" yaml:"network"`
	Runtime        Runtime        `mapstructure:"runtime" yaml:"runtime"`
	Storage        Storage        `mapstructure:"storage" yaml:"storage"`
	Payments       Payments       `mapstructure:"payments" yaml:"payments"`
	ProgramAuditor ProgramAuditor `mapstructure:"program_auditor" yaml:"program_auditor"`
}

// defaults mirrors spec.md §6's stated node binary defaults.
func defaults() Config {
	cfg := Config{}
	cfg.Runtime.GRPC.BindEndpoint = "0.0.0.0:14311"
	cfg.Runtime.MaxConcurrentActions = 64
	cfg.Runtime.MetricsBindEndpoint = "0.0.0.0:34111"
	return cfg
}

// Load reads the YAML file at path, overlays environment variable
// overrides (double-underscore nesting, e.g. IDENTITY__NODE_ID maps to
// identity.node_id), and returns the populated Config.
func Load(path string) (Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv reads CONFIG_PATH and calls Load with it. It is the entry
// point cmd/nilvmd uses at startup.
func LoadFromEnv() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		return Config{}, fmt.Errorf("config: CONFIG_PATH not set")
	}
	return Load(path)
}
