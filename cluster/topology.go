package cluster

import "fmt"

// Root is the rank that seeds the search, finalizes every round and owns
// checkpointing.
const Root = 0

// Topology places one rank inside the reduction tree.
type Topology struct {
	Rank   int
	World  int
	Fanout int
}

// Validate checks the tree parameters.
func (t Topology) Validate() error {
	if t.World < 1 {
		return fmt.Errorf("world size %d, need at least 1", t.World)
	}
	if t.Fanout < 1 {
		return fmt.Errorf("fanout %d, need at least 1", t.Fanout)
	}
	if t.Rank < 0 || t.Rank >= t.World {
		return fmt.Errorf("rank %d outside world of %d", t.Rank, t.World)
	}
	return nil
}

// IsRoot reports whether this rank is the tree root.
func (t Topology) IsRoot() bool {
	return t.Rank == Root
}

// Parent returns the rank this node reduces into, -1 for the root. It is
// the exact inverse of Children: p == c.Parent() iff c is in p's children.
func (t Topology) Parent() int {
	if t.Rank == Root {
		return -1
	}
	return (t.Rank - 1) / t.Fanout
}

// Children returns the ranks reducing into this node, ascending.
func (t Topology) Children() []int {
	var children []int
	for i := 1; i <= t.Fanout; i++ {
		c := t.Rank*t.Fanout + i
		if c >= t.World {
			break
		}
		children = append(children, c)
	}
	return children
}

// Slice returns this rank's half-open share [lo, hi) of n work items.
// Shares are contiguous and disjoint; the last rank absorbs the
// remainder of the division.
func (t Topology) Slice(n int) (lo, hi int) {
	per := n / t.World
	lo = per * t.Rank
	hi = lo + per
	if t.Rank == t.World-1 {
		hi = n
	}
	return lo, hi
}
