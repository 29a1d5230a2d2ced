// Package common provides shared utilities for cryptagraph CLI commands.
//
// This package contains the YAML configuration shared by the standalone
// binaries (node, search) and helper functions used across them to reduce
// code duplication:
//
//   - Configuration loading with defaults
//   - Mask parsing and node configuration assembly
//   - Round store construction from the postgres section
//   - Logger construction matching the module-wide format
package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/psve/cryptagraph/checkpoint"
	"github.com/psve/cryptagraph/cipher"
	"github.com/psve/cryptagraph/cluster"
	rootcommon "github.com/psve/cryptagraph/common"
	"github.com/psve/cryptagraph/search"
)

// Config is the YAML configuration shared by the node and search commands.
type Config struct {
	// ListenAddr is the node's HTTP address, serving both the peer frame
	// endpoint and the inspection API.
	ListenAddr string `yaml:"listen_addr"`
	// MetricsAddr serves Prometheus scrapes when set.
	MetricsAddr string `yaml:"metrics_addr"`
	// EnablePprof mounts the pprof handlers on the node API.
	EnablePprof bool `yaml:"pprof"`

	Log LogConfig `yaml:"log"`

	Cluster ClusterConfig `yaml:"cluster"`
	Search  SearchConfig  `yaml:"search"`

	// CheckpointDir receives one mask file per finalized round when set.
	CheckpointDir string `yaml:"checkpoint_dir"`
	// ResumeRound picks up an interrupted search after that many finalized
	// rounds, reloaded from the postgres store by the root.
	ResumeRound int `yaml:"resume_round"`

	// Postgres enables the durable round store when host is set.
	Postgres checkpoint.PostgresConfig `yaml:"postgres"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	JSON  bool `yaml:"json"`
	Debug bool `yaml:"debug"`
}

// ClusterConfig places the local rank in the reduce tree.
type ClusterConfig struct {
	// Rank of this node. Rank 0 is the root.
	Rank int `yaml:"rank"`
	// Peers lists the base URL of every rank in rank order, this node
	// included.
	Peers []string `yaml:"peers"`
	// Fanout is the child count per node of the reduce tree.
	Fanout int `yaml:"fanout"`
}

// SearchConfig holds the search parameters. Every rank of a cluster must
// run with identical values.
type SearchConfig struct {
	Cipher      string `yaml:"cipher"`
	Alpha       string `yaml:"alpha"`
	Rounds      int    `yaml:"rounds"`
	Limit       int    `yaml:"limit"`
	Budget      int    `yaml:"budget"`
	Parallelism int    `yaml:"parallelism"`
	Direction   string `yaml:"direction"`
	Strict      bool   `yaml:"strict"`
}

// DefaultConfig returns a configuration with single-node defaults. The
// alpha mask has no default and must come from the file or a flag.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8080",
		Cluster: ClusterConfig{
			Fanout: 2,
		},
		Search: SearchConfig{
			Cipher: "present",
			Rounds: 5,
			Limit:  1 << 16,
			Budget: 4,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(body, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger for a binary.
func NewLogger(service string, cfg LogConfig) *slog.Logger {
	return rootcommon.SetupLogger(&rootcommon.LoggingOpts{
		Debug:   cfg.Debug,
		JSON:    cfg.JSON,
		Service: service,
		UID:     true,
	})
}

// ParseMask parses a 64-bit mask from a hex string, with or without the
// 0x prefix.
func ParseMask(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(s), "0x")
	mask, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid mask %q: %w", s, err)
	}
	return mask, nil
}

// NewStore opens the postgres round store when one is configured and
// returns nil otherwise.
func NewStore(cfg *Config) (checkpoint.Store, error) {
	if cfg.Postgres.Host == "" {
		return nil, nil
	}
	return checkpoint.NewPostgresStore(&cfg.Postgres)
}

// NodeConfig translates the file configuration into a cluster node
// configuration. Transport, Store and Log are left to the caller, which
// knows how the rank talks to its peers.
func (cfg *Config) NodeConfig() (*cluster.NodeConfig, error) {
	ciph, err := cipher.ByName(cfg.Search.Cipher)
	if err != nil {
		return nil, err
	}
	alpha, err := ParseMask(cfg.Search.Alpha)
	if err != nil {
		return nil, fmt.Errorf("alpha: %w", err)
	}
	dir, err := search.ParseDirection(cfg.Search.Direction)
	if err != nil {
		return nil, err
	}

	return &cluster.NodeConfig{
		Topology: cluster.Topology{
			Rank:   cfg.Cluster.Rank,
			World:  len(cfg.Cluster.Peers),
			Fanout: cfg.Cluster.Fanout,
		},
		Cipher:        ciph,
		Direction:     dir,
		Alpha:         alpha,
		Rounds:        cfg.Search.Rounds,
		Limit:         cfg.Search.Limit,
		Budget:        cfg.Search.Budget,
		Parallelism:   cfg.Search.Parallelism,
		Strict:        cfg.Search.Strict,
		ResumeRound:   cfg.ResumeRound,
		CheckpointDir: cfg.CheckpointDir,
	}, nil
}
