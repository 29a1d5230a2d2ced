package search

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/psve/cryptagraph/approx"
	"github.com/psve/cryptagraph/cipher"
)

// ErrNoBackTrail reports a candidate whose back-propagation matched
// nothing in the previous round's set. Every candidate is assembled from
// a mask of that set, so a miss means the sets have diverged.
var ErrNoBackTrail = errors.New("candidate has no trail back to previous round")

// Expander runs weight-bounded substitution-layer expansion for one
// cipher and direction. Both tables are in ELP form, so back-propagated
// scores accumulate squared correlations.
type Expander struct {
	lanes  int
	budget int
	strict bool
	fwd    approx.Table
	bwd    approx.Table
	stats  Stats
}

// NewExpander builds an expander with the given budget of active S-box
// lanes per candidate. In strict mode a back-propagation miss aborts the
// round instead of scoring zero.
func NewExpander(c cipher.Cipher, dir Direction, budget int, strict bool) *Expander {
	fwd, bwd := approx.Tables(c.Sbox())
	fwd, bwd = fwd.ELP(), bwd.ELP()
	if dir == Backward {
		fwd, bwd = bwd, fwd
	}
	if budget < 0 {
		budget = 0
	}
	return &Expander{
		lanes:  c.Lanes(),
		budget: budget,
		strict: strict,
		fwd:    fwd,
		bwd:    bwd,
	}
}

// Stats exposes the counters accumulated since the last Reset.
func (e *Expander) Stats() *Stats {
	return &e.stats
}

// CollectRound expands every source mask against prev into dst, one task
// per source, at most parallelism tasks at a time. The first task error
// cancels the rest.
func (e *Expander) CollectRound(ctx context.Context, sources []ScoredMask, prev MaskSet, dst *Collector, parallelism int) error {
	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for _, src := range sources {
		src := src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.stats.Sources.Inc()
			return e.ExpandFrom(src.Mask, prev, dst)
		})
	}
	return g.Wait()
}

// ExpandFrom expands a single source mask, offering every surviving
// candidate to dst.
func (e *Expander) ExpandFrom(src uint64, prev MaskSet, dst *Collector) error {
	return e.fill(src, 0, prev, dst, 0, 0)
}

// fill recurses over the active lanes of pin, assembling candidate output
// masks lane by lane. Each active lane consumes one unit of budget; a
// source with more active lanes than budget yields nothing.
func (e *Expander) fill(pin, pout uint64, prev MaskSet, dst *Collector, used, lane int) error {
	for ; lane < e.lanes; lane++ {
		val := (pin >> (lane * 4)) & 0xf
		if val == 0 {
			continue
		}
		if used == e.budget {
			return nil
		}
		for _, apx := range e.fwd[val] {
			if err := e.fill(pin, pout|apx.Output<<(lane*4), prev, dst, used+1, lane+1); err != nil {
				return err
			}
		}
		return nil
	}

	// All lanes assembled: score the candidate.
	e.stats.Candidates.Inc()
	if dst.Contains(pout) {
		return nil
	}
	elp, matched := e.backPropagate(pout, 0, 1.0, prev, 0)
	if !matched && e.strict {
		return fmt.Errorf("%w: %#x", ErrNoBackTrail, pout)
	}
	if elp < approx.Tiny {
		e.stats.Discarded.Inc()
		return nil
	}
	if dst.Add(pout, elp) {
		e.stats.Accepted.Inc()
	}
	return nil
}

// backPropagate sums, over every single-round trail from pin back into
// prev, the product of the trail's squared correlations with the source
// mask's accumulated potential. The boolean reports whether any trail
// landed in prev.
func (e *Expander) backPropagate(pin, pout uint64, elp float64, prev MaskSet, lane int) (float64, bool) {
	for ; lane < e.lanes; lane++ {
		val := (pin >> (lane * 4)) & 0xf
		if val == 0 {
			continue
		}
		sum := 0.0
		matched := false
		for _, apx := range e.bwd[val] {
			part, ok := e.backPropagate(pin, pout|apx.Output<<(lane*4), elp*apx.Corr, prev, lane+1)
			sum += part
			matched = matched || ok
		}
		return sum, matched
	}

	prevELP, ok := prev[pout]
	if !ok {
		return 0, false
	}
	return prevELP * elp, true
}
