// Command node runs one rank of a cryptagraph search cluster.
//
// Every rank runs the same binary with the same search parameters; only
// the rank number differs. Rank 0 is the root of the reduce tree: it
// seeds the search, finalizes every round and serves the final result.
//
// # Configuration File
//
// Create a YAML file with node settings:
//
//	listen_addr: ":8080"
//	metrics_addr: ":9090"
//	log:
//	  json: true
//	cluster:
//	  rank: 0
//	  fanout: 2
//	  peers:
//	    - "http://search-0.internal:8080"
//	    - "http://search-1.internal:8080"
//	    - "http://search-2.internal:8080"
//	search:
//	  cipher: present
//	  alpha: "0x1"
//	  rounds: 7
//	  limit: 1048576
//	  budget: 4
//	  direction: forward
//	checkpoint_dir: "/var/lib/cryptagraph"
//	postgres:
//	  host: db.internal
//	  port: 5432
//	  user: cryptagraph
//	  password: secret
//	  database: cryptagraph
//
// # Endpoints
//
// Peer traffic:
//   - POST /v1/frame/{kind} - Collective frames from other ranks
//
// Operators:
//   - GET /api/v1/status - Search progress of this rank
//   - GET /api/v1/result - Final mask set, once the search is done
//   - GET /livez, /readyz - Health checks
//
// # Usage
//
//	go run ./cmd/node --config=node.yaml
//	go run ./cmd/node --config=node.yaml --rank=1
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/psve/cryptagraph/api/httpserver"
	"github.com/psve/cryptagraph/cluster"
	"github.com/psve/cryptagraph/cmd/common"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		listenAddr  = flag.String("listen-addr", "", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Prometheus listen address")
		rank        = flag.Int("rank", -1, "Rank of this node in the peer list")
		peers       = flag.String("peers", "", "Comma-separated base URLs of all ranks")
		cipherName  = flag.String("cipher", "", "Cipher to analyze")
		alphaHex    = flag.String("alpha", "", "Input mask seeding the search (hex)")
		rounds      = flag.Int("rounds", 0, "Substitution layers to cross")
		limit       = flag.Int("limit", 0, "Masks kept per round")
		budget      = flag.Int("budget", 0, "Active S-box lanes per candidate")
		direction   = flag.String("direction", "", "Trail direction: forward or backward")
		resumeRound = flag.Int("resume", -1, "Resume after this many finalized rounds")
		logJSON     = flag.Bool("log-json", false, "Log JSON lines")
		logDebug    = flag.Bool("log-debug", false, "Log debug messages")
	)
	flag.Parse()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	applyFlagOverrides(cfg, *listenAddr, *metricsAddr, *rank, *peers, *cipherName,
		*alphaHex, *rounds, *limit, *budget, *direction, *resumeRound, *logJSON, *logDebug)

	if err := validateConfig(cfg); err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if ctx.Err() != nil {
			return
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func applyFlagOverrides(cfg *common.Config, listenAddr, metricsAddr string, rank int,
	peers, cipherName, alphaHex string, rounds, limit, budget int, direction string,
	resumeRound int, logJSON, logDebug bool) {

	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if rank >= 0 {
		cfg.Cluster.Rank = rank
	}
	if peers != "" {
		parts := strings.Split(peers, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.Cluster.Peers = parts
	}
	if cipherName != "" {
		cfg.Search.Cipher = cipherName
	}
	if alphaHex != "" {
		cfg.Search.Alpha = alphaHex
	}
	if rounds != 0 {
		cfg.Search.Rounds = rounds
	}
	if limit != 0 {
		cfg.Search.Limit = limit
	}
	if budget != 0 {
		cfg.Search.Budget = budget
	}
	if direction != "" {
		cfg.Search.Direction = direction
	}
	if resumeRound >= 0 {
		cfg.ResumeRound = resumeRound
	}
	if logJSON {
		cfg.Log.JSON = true
	}
	if logDebug {
		cfg.Log.Debug = true
	}
}

func validateConfig(cfg *common.Config) error {
	if len(cfg.Cluster.Peers) == 0 {
		return fmt.Errorf("cluster.peers is required (via --peers or config file)")
	}
	if cfg.Search.Alpha == "" {
		return fmt.Errorf("search.alpha is required (via --alpha or config file)")
	}
	return nil
}

func run(ctx context.Context, cfg *common.Config) error {
	log := common.NewLogger("node", cfg.Log)

	nodeCfg, err := cfg.NodeConfig()
	if err != nil {
		return err
	}
	nodeCfg.Log = log

	store, err := common.NewStore(cfg)
	if err != nil {
		return fmt.Errorf("round store: %w", err)
	}
	if store != nil {
		defer store.Close()
		nodeCfg.Store = store
	}

	transport, err := cluster.NewHTTPTransport(&cluster.HTTPTransportConfig{
		Topology: nodeCfg.Topology,
		Peers:    cfg.Cluster.Peers,
		Limit:    cfg.Search.Limit,
		Log:      log,
	})
	if err != nil {
		return err
	}
	defer transport.Close()
	nodeCfg.Transport = transport

	node, err := cluster.NewNode(nodeCfg)
	if err != nil {
		return err
	}

	// Frame posts from peers stay open until the local round loop consumes
	// them, so the server runs without read or write timeouts.
	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              cfg.MetricsAddr,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log,
		DrainDuration:            time.Second,
		GracefulShutdownDuration: 10 * time.Second,
	}, transport, httpserver.NewNodeHandler(node))
	if err != nil {
		return err
	}
	srv.RunInBackground()
	defer srv.Shutdown()

	if err := transport.WaitReady(ctx); err != nil {
		return fmt.Errorf("waiting for peers: %w", err)
	}

	final, err := node.Run(ctx)
	if err != nil {
		return err
	}

	log.Info("Search done, serving results until shutdown", "masks", len(final))
	<-ctx.Done()
	return nil
}
