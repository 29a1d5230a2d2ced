// Command search runs a complete mask search on a single machine.
//
// The search spreads over a configurable number of in-process ranks that
// talk through channels, exercising the same tree collectives a
// distributed deployment uses. The final mask set prints to stdout once
// the last round is reduced; progress logs go to stderr.
//
// # Usage
//
//	go run ./cmd/search 0x1
//	go run ./cmd/search --cipher=gift64 --rounds=6 --limit=1048576 0x21
//	go run ./cmd/search --nodes=4 --budget=4 --top=10 0x1
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/psve/cryptagraph/cipher"
	"github.com/psve/cryptagraph/cluster"
	"github.com/psve/cryptagraph/cmd/common"
	"github.com/psve/cryptagraph/search"
)

type options struct {
	cipherName    string
	alpha         uint64
	rounds        int
	limit         int
	budget        int
	direction     string
	strict        bool
	nodes         int
	fanout        int
	parallelism   int
	top           int
	checkpointDir string
	logDebug      bool
}

func main() {
	var (
		cipherName    = flag.String("cipher", "present", "Cipher to analyze: "+strings.Join(cipher.Names(), ", "))
		rounds        = flag.Int("rounds", 5, "Substitution layers to cross")
		limit         = flag.Int("limit", 1<<16, "Masks kept per round")
		budget        = flag.Int("budget", 4, "Active S-box lanes per candidate")
		direction     = flag.String("direction", "forward", "Trail direction: forward or backward")
		strict        = flag.Bool("strict", false, "Abort when a candidate has no trail back")
		nodes         = flag.Int("nodes", 1, "In-process ranks to spread the search over")
		fanout        = flag.Int("fanout", 2, "Reduce tree fanout")
		parallelism   = flag.Int("parallelism", 0, "Expansion goroutines per rank, GOMAXPROCS when 0")
		top           = flag.Int("top", 25, "Masks to print, 0 for all")
		checkpointDir = flag.String("checkpoint-dir", "", "Write one mask file per finalized round")
		logDebug      = flag.Bool("log-debug", false, "Log debug messages")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: search [flags] <alpha-hex>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	alpha, err := common.ParseMask(flag.Arg(0))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	opts := &options{
		cipherName:    *cipherName,
		alpha:         alpha,
		rounds:        *rounds,
		limit:         *limit,
		budget:        *budget,
		direction:     *direction,
		strict:        *strict,
		nodes:         *nodes,
		fanout:        *fanout,
		parallelism:   *parallelism,
		top:           *top,
		checkpointDir: *checkpointDir,
		logDebug:      *logDebug,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		if ctx.Err() != nil {
			return
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	ciph, err := cipher.ByName(opts.cipherName)
	if err != nil {
		return err
	}
	dir, err := search.ParseDirection(opts.direction)
	if err != nil {
		return err
	}
	if opts.nodes < 1 {
		return fmt.Errorf("%d nodes, need at least 1", opts.nodes)
	}

	log := common.NewLogger("search", common.LogConfig{Debug: opts.logDebug})

	world := cluster.NewLocalWorld(opts.nodes)
	results := make([][]search.ScoredMask, opts.nodes)

	g, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < opts.nodes; rank++ {
		rank := rank
		node, err := cluster.NewNode(&cluster.NodeConfig{
			Topology: cluster.Topology{
				Rank:   rank,
				World:  opts.nodes,
				Fanout: opts.fanout,
			},
			Transport:     world.Rank(rank),
			Cipher:        ciph,
			Direction:     dir,
			Alpha:         opts.alpha,
			Rounds:        opts.rounds,
			Limit:         opts.limit,
			Budget:        opts.budget,
			Parallelism:   opts.parallelism,
			Strict:        opts.strict,
			CheckpointDir: opts.checkpointDir,
			Log:           log,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			final, err := node.Run(ctx)
			if err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			results[rank] = final
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	printMasks(os.Stdout, results[0], opts.top)
	return nil
}

func printMasks(w io.Writer, final []search.ScoredMask, top int) {
	if len(final) == 0 {
		fmt.Fprintln(w, "No masks survived the search")
		return
	}

	// Reduce order is weakest first; report the strongest at the top.
	for i, j := 0, len(final)-1; i < j; i, j = i+1, j-1 {
		final[i], final[j] = final[j], final[i]
	}

	total := 0.0
	for _, m := range final {
		total += m.ELP
	}

	shown := final
	if top > 0 && len(shown) > top {
		shown = shown[:top]
	}

	fmt.Fprintf(w, "Masks: %d  Set ELP: %.6g (2^%.2f)\n\n", len(final), total, math.Log2(total))
	fmt.Fprintf(w, "%-18s  %-12s  %s\n", "MASK", "ELP", "LOG2")
	for _, m := range shown {
		fmt.Fprintf(w, "0x%016x  %-12.6g  %.2f\n", m.Mask, m.ELP, math.Log2(m.ELP))
	}
}
