package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"
)

// Upstream describes one upstream Sv2 node a role connects out to (the
// translator's pool connection, the Job Declarator Server's pool
// connection, or a Template Receiver's template-provider connection).
type Upstream struct {
	Address string `toml:"address"`
	Port    int    `toml:"port"`
	// PubKeyHex is the upstream's Noise static public key, hex-encoded; empty
	// means this role speaks plain (unencrypted) Sv2 frames to it.
	PubKeyHex string `toml:"pubkey"`
}

// VarDiff mirrors vardiff.Config in TOML-friendly field names and types.
type VarDiff struct {
	TargetShareTimeSeconds float64 `toml:"target_share_time_seconds"`
	VariancePercent        float64 `toml:"variance_percent"`
	MinDifficulty          float64 `toml:"min_difficulty"`
	MaxDifficulty          float64 `toml:"max_difficulty"`
	InitialDifficulty      float64 `toml:"initial_difficulty"`
}

// RoleConfig is the TOML-loaded configuration surface every role binary
// shares: listen address, upstream list, supported Sv2 version range, the
// role's own Noise static keypair, and vardiff bounds.
type RoleConfig struct {
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`

	Upstreams []Upstream `toml:"upstreams"`

	MinProtocolVersion uint16 `toml:"min_protocol_version"`
	MaxProtocolVersion uint16 `toml:"max_protocol_version"`

	NoiseStaticKeyPath string `toml:"noise_static_key_path"`

	VarDiff VarDiff `toml:"vardiff"`

	MetricsListenAddress string `toml:"metrics_listen_address"`
	MetricsEnabled       bool   `toml:"metrics_enabled"`

	KeepaliveInterval time.Duration `toml:"-"`
}

// DefaultRoleConfig returns the configuration a role boots with absent a
// config file, suitable for local development against a single upstream.
func DefaultRoleConfig() RoleConfig {
	return RoleConfig{
		ListenAddress:      "0.0.0.0",
		ListenPort:         34255,
		MinProtocolVersion: 2,
		MaxProtocolVersion: 2,
		VarDiff: VarDiff{
			TargetShareTimeSeconds: 10,
			VariancePercent:        30,
			MinDifficulty:          0.001,
			MaxDifficulty:          1_000_000,
			InitialDifficulty:      1,
		},
		MetricsListenAddress: "127.0.0.1:9333",
		MetricsEnabled:       true,
		KeepaliveInterval:    30 * time.Second,
	}
}

// LoadRoleConfig reads a TOML config file at path, falling back to
// DefaultRoleConfig for any field the file leaves at its zero value, then
// applies the SV2BRIDGE_-prefixed environment variable overrides this
// repository's containerized deployments use.
func LoadRoleConfig(path string) (RoleConfig, error) {
	cfg := DefaultRoleConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return RoleConfig{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return RoleConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		// The vardiff fields are float64; accept integer literals for them.
		for _, key := range []string{"target_share_time_seconds", "variance_percent", "min_difficulty", "max_difficulty", "initial_difficulty"} {
			if v, ok := tree.Get("vardiff." + key).(int64); ok {
				tree.Set("vardiff."+key, float64(v))
			}
		}
		loaded := DefaultRoleConfig()
		if err := tree.Unmarshal(&loaded); err != nil {
			return RoleConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg = loaded
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets a container deployment override the handful of
// fields that commonly differ per-environment without editing the TOML
// file baked into the image.
func applyEnvOverrides(cfg *RoleConfig) {
	cfg.ListenAddress = GetEnv("SV2BRIDGE_LISTEN_ADDRESS", cfg.ListenAddress)
	cfg.ListenPort = GetEnvInt("SV2BRIDGE_LISTEN_PORT", cfg.ListenPort)
	cfg.MetricsListenAddress = GetEnv("SV2BRIDGE_METRICS_ADDRESS", cfg.MetricsListenAddress)
	cfg.MetricsEnabled = GetEnvBool("SV2BRIDGE_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.NoiseStaticKeyPath = GetEnv("SV2BRIDGE_NOISE_KEY_PATH", cfg.NoiseStaticKeyPath)
	cfg.KeepaliveInterval = GetEnvDuration("SV2BRIDGE_KEEPALIVE_INTERVAL", cfg.KeepaliveInterval)
	cfg.VarDiff.MinDifficulty = GetEnvFloat64("SV2BRIDGE_VARDIFF_MIN_DIFFICULTY", cfg.VarDiff.MinDifficulty)
	cfg.VarDiff.MaxDifficulty = GetEnvFloat64("SV2BRIDGE_VARDIFF_MAX_DIFFICULTY", cfg.VarDiff.MaxDifficulty)
}

// TargetShareTime converts the TOML's float-seconds field into a
// time.Duration for vardiff.Config.
func (v VarDiff) TargetShareTime() time.Duration {
	return time.Duration(v.TargetShareTimeSeconds * float64(time.Second))
}
