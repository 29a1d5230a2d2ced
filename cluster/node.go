package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/psve/cryptagraph/checkpoint"
	"github.com/psve/cryptagraph/cipher"
	"github.com/psve/cryptagraph/metrics"
	"github.com/psve/cryptagraph/search"
)

// NodeConfig assembles one rank of the search cluster.
type NodeConfig struct {
	Topology  Topology
	Transport Transport
	Cipher    cipher.Cipher
	Direction search.Direction

	// Alpha seeds the search: the input mask of the first round.
	Alpha uint64
	// Rounds is the number of substitution layers to cross.
	Rounds int
	// Limit bounds the mask set kept per round.
	Limit int
	// Budget caps the active S-box lanes per expanded candidate.
	Budget int
	// Parallelism caps concurrent expansion tasks, GOMAXPROCS when 0.
	Parallelism int
	// Strict aborts the search when a candidate cannot be traced back to
	// the previous round instead of scoring it zero.
	Strict bool

	// ResumeRound picks up an interrupted search after that many
	// finalized rounds. The root reloads the round set from Store.
	ResumeRound int
	// CheckpointDir receives one mask file per finalized round when set.
	CheckpointDir string
	// Store persists finalized rounds when set. Only the root reads and
	// writes it.
	Store checkpoint.Store

	Log *slog.Logger
}

// Validate checks the parts every rank needs. Store requirements are
// checked at run time because only the root touches it.
func (cfg *NodeConfig) Validate() error {
	if err := cfg.Topology.Validate(); err != nil {
		return err
	}
	if cfg.Transport == nil {
		return errors.New("no transport configured")
	}
	if cfg.Cipher == nil {
		return errors.New("no cipher configured")
	}
	if cfg.Alpha == 0 {
		return errors.New("alpha mask must be nonzero")
	}
	if cfg.Rounds < 1 {
		return fmt.Errorf("%d rounds, need at least 1", cfg.Rounds)
	}
	if cfg.Limit < 1 {
		return fmt.Errorf("mask set limit %d, need at least 1", cfg.Limit)
	}
	if cfg.Budget < 1 {
		return fmt.Errorf("lane budget %d, need at least 1", cfg.Budget)
	}
	if cfg.ResumeRound < 0 || cfg.ResumeRound >= cfg.Rounds {
		return fmt.Errorf("resume round %d outside 0..%d", cfg.ResumeRound, cfg.Rounds-1)
	}
	return nil
}

// Status is a point-in-time snapshot of a node, served unauthenticated
// by the node's API.
type Status struct {
	Rank      int    `json:"rank"`
	World     int    `json:"world"`
	Cipher    string `json:"cipher"`
	Alpha     string `json:"alpha"`
	Direction string `json:"direction"`
	Rounds    int    `json:"rounds"`
	Limit     int    `json:"limit"`
	Budget    int    `json:"budget"`

	Round         int     `json:"round"`
	Sources       int     `json:"sources"`
	CollectorSize int     `json:"collectorSize"`
	SetELP        float64 `json:"setELP"`
	BestELP       float64 `json:"bestELP"`
	Done          bool    `json:"done"`
}

// Node runs one rank of the distributed search.
type Node struct {
	cfg      *NodeConfig
	topo     Topology
	comm     *Comm
	expander *search.Expander
	collect  *search.Collector
	log      *slog.Logger

	mu     sync.RWMutex
	status Status
	final  []search.ScoredMask
}

// NewNode validates cfg and assembles the rank.
func NewNode(cfg *NodeConfig) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.GOMAXPROCS(0)
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("rank", cfg.Topology.Rank)

	return &Node{
		cfg:      cfg,
		topo:     cfg.Topology,
		comm:     NewComm(cfg.Topology, cfg.Transport, cfg.Limit, log),
		expander: search.NewExpander(cfg.Cipher, cfg.Direction, cfg.Budget, cfg.Strict),
		collect:  search.NewCollector(cfg.Limit),
		log:      log,
		status: Status{
			Rank:      cfg.Topology.Rank,
			World:     cfg.Topology.World,
			Cipher:    cfg.Cipher.Name(),
			Alpha:     fmt.Sprintf("%#x", cfg.Alpha),
			Direction: cfg.Direction.String(),
			Rounds:    cfg.Rounds,
			Limit:     cfg.Limit,
			Budget:    cfg.Budget,
		},
	}, nil
}

// Status returns a snapshot of the node's progress.
func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// Result returns a copy of the final mask set in ascending ELP order,
// empty until the search is done.
func (n *Node) Result() []search.ScoredMask {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]search.ScoredMask, len(n.final))
	copy(out, n.final)
	return out
}

// Run executes the full search and returns the finalized mask set of the
// last round. Every rank returns the same set; the root additionally
// checkpointed it round by round.
func (n *Node) Run(ctx context.Context) ([]search.ScoredMask, error) {
	var list []search.ScoredMask

	start := n.cfg.ResumeRound
	if start > 0 && n.topo.IsRoot() {
		resumed, err := n.loadResumeState(ctx)
		if err != nil {
			return nil, err
		}
		list = resumed
	}

	n.log.Info("Starting mask search",
		"cipher", n.cfg.Cipher.Name(),
		"alpha", fmt.Sprintf("%#x", n.cfg.Alpha),
		"direction", n.cfg.Direction.String(),
		"rounds", n.cfg.Rounds,
		"limit", n.cfg.Limit,
		"budget", n.cfg.Budget,
		"world", n.topo.World,
		"startRound", start,
	)

	for r := start; r < n.cfg.Rounds; r++ {
		roundStart := time.Now()

		var (
			prev    search.MaskSet
			sources []search.ScoredMask
		)
		if r == 0 {
			// The root expands the seed alone in the first round.
			if n.topo.IsRoot() {
				prev = search.MaskSet{n.cfg.Alpha: 1.0}
				sources = []search.ScoredMask{{Mask: n.cfg.Alpha, ELP: 1.0}}
			}
		} else {
			if err := n.comm.Barrier(ctx, uint64(r)); err != nil {
				return nil, fmt.Errorf("round %d barrier: %w", r+1, err)
			}
			var err error
			list, err = n.comm.Broadcast(ctx, list)
			if err != nil {
				return nil, fmt.Errorf("round %d broadcast: %w", r+1, err)
			}
			prev = search.NewMaskSet(list)
			lo, hi := n.topo.Slice(len(list))
			sources = list[lo:hi]
		}
		n.setProgress(r+1, len(sources))

		expandStart := time.Now()
		n.expander.Stats().Reset()
		if err := n.expander.CollectRound(ctx, sources, prev, n.collect, n.cfg.Parallelism); err != nil {
			return nil, fmt.Errorf("round %d expansion: %w", r+1, err)
		}
		n.flushStats(time.Since(expandStart))

		if err := n.comm.Reduce(ctx, n.collect); err != nil {
			return nil, fmt.Errorf("round %d reduce: %w", r+1, err)
		}

		if n.topo.IsRoot() {
			list = n.collect.Flatten()
			if err := n.finalize(ctx, list, r+1); err != nil {
				return nil, err
			}
		}
		metrics.RecordRound(r+1, time.Since(roundStart).Seconds())
	}

	// A final distribution hands the result to every rank.
	if err := n.comm.Barrier(ctx, uint64(n.cfg.Rounds)); err != nil {
		return nil, fmt.Errorf("final barrier: %w", err)
	}
	final, err := n.comm.Broadcast(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("final broadcast: %w", err)
	}
	n.setDone(final)
	n.log.Info("Search finished", "masks", len(final))
	return final, nil
}

// loadResumeState pulls the last finalized round from the store and
// checks it against the configured resume point.
func (n *Node) loadResumeState(ctx context.Context) ([]search.ScoredMask, error) {
	if n.cfg.Store == nil {
		return nil, errors.New("resume requested without a round store")
	}
	rec, ok, err := n.cfg.Store.LatestRound(ctx, n.cfg.Cipher.Name(), n.cfg.Alpha, n.cfg.Direction.String())
	if err != nil {
		return nil, fmt.Errorf("loading resume state: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no stored rounds for %s alpha %#x %s", n.cfg.Cipher.Name(), n.cfg.Alpha, n.cfg.Direction)
	}
	if rec.Round != n.cfg.ResumeRound {
		return nil, fmt.Errorf("store holds round %d, configured to resume at %d", rec.Round, n.cfg.ResumeRound)
	}
	n.log.Info("Resuming search", "round", rec.Round, "masks", len(rec.Masks))
	return rec.Masks, nil
}

// finalize runs on the root once per round: the flattened merge is
// pushed through the cipher's bit permutation, logged, and persisted
// before any rank sees it.
func (n *Node) finalize(ctx context.Context, list []search.ScoredMask, round int) error {
	permute := n.cfg.Cipher.Permute
	if n.cfg.Direction == search.Backward {
		permute = n.cfg.Cipher.InvPermute
	}
	total := 0.0
	for i := range list {
		list[i].Mask = permute(list[i].Mask)
		total += list[i].ELP
	}
	best := 0.0
	if len(list) > 0 {
		best = list[len(list)-1].ELP
	}

	n.log.Info("Round finalized", "round", round, "masks", len(list), "setELP", total, "bestELP", best)
	n.setRoundResult(total, best)

	if n.cfg.CheckpointDir != "" {
		path, err := checkpoint.WriteMasks(n.cfg.CheckpointDir, n.cfg.Alpha, round, list)
		if err != nil {
			return fmt.Errorf("checkpointing round %d: %w", round, err)
		}
		n.log.Debug("Checkpoint written", "path", path)
	}
	if n.cfg.Store != nil {
		rec := checkpoint.RoundRecord{
			Cipher:    n.cfg.Cipher.Name(),
			Alpha:     n.cfg.Alpha,
			Direction: n.cfg.Direction.String(),
			Round:     round,
			Masks:     list,
		}
		if err := n.cfg.Store.SaveRound(ctx, rec); err != nil {
			return fmt.Errorf("storing round %d: %w", round, err)
		}
	}
	return nil
}

func (n *Node) flushStats(expandTime time.Duration) {
	st := n.expander.Stats()
	metrics.AddMasksExpanded(st.Sources.Load())
	metrics.AddMasksAccepted(st.Accepted.Load())
	metrics.AddMasksRejected(st.Rejected() + st.Discarded.Load())
	metrics.RecordExpandDuration(expandTime.Seconds())
	size := n.collect.Len()
	metrics.RecordCollectorSize(size)

	n.mu.Lock()
	n.status.CollectorSize = size
	n.mu.Unlock()
}

func (n *Node) setProgress(round, sources int) {
	n.mu.Lock()
	n.status.Round = round
	n.status.Sources = sources
	n.mu.Unlock()
}

func (n *Node) setRoundResult(total, best float64) {
	n.mu.Lock()
	n.status.SetELP = total
	n.status.BestELP = best
	n.mu.Unlock()
}

func (n *Node) setDone(final []search.ScoredMask) {
	total := 0.0
	for _, sm := range final {
		total += sm.ELP
	}
	best := 0.0
	if len(final) > 0 {
		best = final[len(final)-1].ELP
	}

	n.mu.Lock()
	n.status.Done = true
	n.status.SetELP = total
	n.status.BestELP = best
	n.final = final
	n.mu.Unlock()
}
