package search

import (
	"fmt"
	"strings"

	"go.uber.org/atomic"
)

// ScoredMask pairs a state mask with its accumulated expected linear
// potential over all trails reaching it.
type ScoredMask struct {
	Mask uint64
	ELP  float64
}

// MaskSet is a round frontier keyed by mask.
type MaskSet map[uint64]float64

// NewMaskSet indexes a flattened round list.
func NewMaskSet(list []ScoredMask) MaskSet {
	set := make(MaskSet, len(list))
	for _, sm := range list {
		set[sm.Mask] = sm.ELP
	}
	return set
}

// TotalELP sums the potential of every mask in the set.
func (s MaskSet) TotalELP() float64 {
	total := 0.0
	for _, elp := range s {
		total += elp
	}
	return total
}

// Direction selects which way masks walk the cipher: Forward expands
// through the S-box and permutation, Backward through their inverses.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// ParseDirection resolves a configuration value into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "forward", "forwards":
		return Forward, nil
	case "backward", "backwards":
		return Backward, nil
	}
	return Forward, fmt.Errorf("unknown direction %q", s)
}

// Stats counts expansion outcomes across one round. Expansion tasks
// update the counters without taking the collector lock.
type Stats struct {
	Sources    atomic.Uint64 // source masks expanded
	Candidates atomic.Uint64 // completed candidate masks
	Accepted   atomic.Uint64 // candidates admitted by the collector
	Discarded  atomic.Uint64 // candidates scoring below approx.Tiny
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.Sources.Store(0)
	s.Candidates.Store(0)
	s.Accepted.Store(0)
	s.Discarded.Store(0)
}

// Rejected returns the number of scored candidates the collector turned
// away, duplicates included.
func (s *Stats) Rejected() uint64 {
	return s.Candidates.Load() - s.Accepted.Load() - s.Discarded.Load()
}
