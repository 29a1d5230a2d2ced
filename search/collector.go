package search

import (
	"container/heap"
	"sync"
)

// Collector keeps the best limit scored masks seen so far. Membership is
// tracked in a set alongside a min-heap ordered by ELP, so the worst
// member is always at the top and duplicate masks are rejected outright.
type Collector struct {
	mu      sync.Mutex
	limit   int
	members map[uint64]struct{}
	fitness scoredHeap
}

// NewCollector returns a collector retaining at most limit masks.
func NewCollector(limit int) *Collector {
	return &Collector{
		limit:   limit,
		members: make(map[uint64]struct{}),
	}
}

// Add offers a scored mask. Duplicate masks are rejected regardless of
// score. At capacity the candidate must beat the worst member strictly;
// ties lose, and on success the worst member is evicted.
func (c *Collector) Add(mask uint64, elp float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limit <= 0 {
		return false
	}
	if _, ok := c.members[mask]; ok {
		return false
	}
	if len(c.fitness) >= c.limit {
		worst := c.fitness[0]
		if worst.ELP >= elp {
			return false
		}
		heap.Pop(&c.fitness)
		delete(c.members, worst.Mask)
	}
	heap.Push(&c.fitness, ScoredMask{Mask: mask, ELP: elp})
	c.members[mask] = struct{}{}
	return true
}

// Contains reports whether mask is currently a member.
func (c *Collector) Contains(mask uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.members[mask]
	return ok
}

// Len returns the current member count.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fitness)
}

// PopWorst removes and returns the lowest-scoring member.
func (c *Collector) PopWorst() (ScoredMask, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.fitness) == 0 {
		return ScoredMask{}, false
	}
	sm := heap.Pop(&c.fitness).(ScoredMask)
	delete(c.members, sm.Mask)
	return sm, true
}

// Flatten drains the collector and returns its members in ascending ELP
// order. The collector is empty afterwards.
func (c *Collector) Flatten() []ScoredMask {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ScoredMask, 0, len(c.fitness))
	for len(c.fitness) > 0 {
		sm := heap.Pop(&c.fitness).(ScoredMask)
		delete(c.members, sm.Mask)
		out = append(out, sm)
	}
	return out
}

// Reset discards all members, keeping the limit.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = make(map[uint64]struct{})
	c.fitness = c.fitness[:0]
}

// scoredHeap is a min-heap over ELP.
type scoredHeap []ScoredMask

func (h scoredHeap) Len() int            { return len(h) }
func (h scoredHeap) Less(i, j int) bool  { return h[i].ELP < h[j].ELP }
func (h scoredHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x interface{}) { *h = append(*h, x.(ScoredMask)) }

func (h *scoredHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
