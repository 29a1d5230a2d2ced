package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psve/cryptagraph/approx"
	"github.com/psve/cryptagraph/testutil"
)

// refScore recomputes a candidate's hull score the slow way: for every
// previous-round mask, the product over all lanes of the squared
// correlation connecting the two masks.
func refScore(elp approx.Table, prev MaskSet, pout uint64) float64 {
	total := 0.0
	for a, prevELP := range prev {
		p := 1.0
		for lane := 0; lane < 16; lane++ {
			in := (a >> (lane * 4)) & 0xf
			out := (pout >> (lane * 4)) & 0xf
			p *= elpLookup(elp, in, out)
		}
		total += prevELP * p
	}
	return total
}

func elpLookup(table approx.Table, in, out uint64) float64 {
	for _, apx := range table[in] {
		if apx.Output == out {
			return apx.Corr
		}
	}
	return 0
}

func TestExpandSingleLane(t *testing.T) {
	e := NewExpander(testutil.ToyCipher(), Forward, 4, false)
	dst := NewCollector(16)
	prev := MaskSet{0x1: 1.0}

	require.NoError(t, e.ExpandFrom(0x1, prev, dst))
	require.Equal(t, 4, dst.Len())

	flat := dst.Flatten()
	total := 0.0
	masks := make(map[uint64]bool)
	for _, sm := range flat {
		assert.InDelta(t, 0.25, sm.ELP, 1e-15)
		total += sm.ELP
		masks[sm.Mask] = true
	}
	assert.InDelta(t, 1.0, total, 1e-15)
	for _, want := range []uint64{0x5, 0x7, 0xd, 0xf} {
		assert.True(t, masks[want], "missing candidate %#x", want)
	}
}

func TestExpandTwoLanes(t *testing.T) {
	e := NewExpander(testutil.ToyCipher(), Forward, 2, false)
	dst := NewCollector(64)
	prev := MaskSet{0x11: 1.0}

	require.NoError(t, e.ExpandFrom(0x11, prev, dst))
	require.Equal(t, 16, dst.Len())

	total := 0.0
	for _, sm := range dst.Flatten() {
		assert.InDelta(t, 0.0625, sm.ELP, 1e-15)
		total += sm.ELP
	}
	assert.InDelta(t, 1.0, total, 1e-15)
}

func TestExpandBudget(t *testing.T) {
	prev := MaskSet{0x11: 1.0}

	// No budget at all: the first active lane prunes.
	e := NewExpander(testutil.ToyCipher(), Forward, 0, false)
	dst := NewCollector(64)
	require.NoError(t, e.ExpandFrom(0x11, prev, dst))
	require.Equal(t, 0, dst.Len())

	// More active lanes than budget: every branch prunes.
	e = NewExpander(testutil.ToyCipher(), Forward, 1, false)
	dst = NewCollector(64)
	require.NoError(t, e.ExpandFrom(0x11, prev, dst))
	require.Equal(t, 0, dst.Len())
}

func TestExpandMatchesReference(t *testing.T) {
	c := testutil.ToyCipher()
	fwd, _ := approx.Tables(c.Sbox())
	elp := fwd.ELP()

	prev := MaskSet{0x1: 0.4, 0x2: 0.6}
	e := NewExpander(c, Forward, 4, false)
	dst := NewCollector(1 << 10)
	for mask := range prev {
		require.NoError(t, e.ExpandFrom(mask, prev, dst))
	}

	flat := dst.Flatten()
	require.NotEmpty(t, flat)
	seen := make(map[uint64]bool)
	for _, sm := range flat {
		require.False(t, seen[sm.Mask], "duplicate candidate %#x", sm.Mask)
		seen[sm.Mask] = true
		assert.InDelta(t, refScore(elp, prev, sm.Mask), sm.ELP, 1e-12, "mask %#x", sm.Mask)
	}
}

func TestExpandBackward(t *testing.T) {
	e := NewExpander(testutil.ToyCipher(), Backward, 4, false)
	dst := NewCollector(16)
	prev := MaskSet{0x5: 1.0}

	require.NoError(t, e.ExpandFrom(0x5, prev, dst))

	flat := dst.Flatten()
	require.NotEmpty(t, flat)
	total := 0.0
	byMask := make(map[uint64]float64)
	for _, sm := range flat {
		total += sm.ELP
		byMask[sm.Mask] = sm.ELP
	}

	// Column Parseval: squared correlations into a fixed output mask sum
	// to one for a bijective S-box.
	assert.InDelta(t, 1.0, total, 1e-15)
	assert.InDelta(t, 0.25, byMask[0x1], 1e-15)
}

func TestExpandStrictMode(t *testing.T) {
	e := NewExpander(testutil.ToyCipher(), Forward, 4, true)
	dst := NewCollector(16)

	err := e.ExpandFrom(0x1, MaskSet{}, dst)
	require.ErrorIs(t, err, ErrNoBackTrail)

	// Outside strict mode a miss just scores zero and is dropped.
	e = NewExpander(testutil.ToyCipher(), Forward, 4, false)
	require.NoError(t, e.ExpandFrom(0x1, MaskSet{}, dst))
	require.Equal(t, 0, dst.Len())
}

func TestCollectRound(t *testing.T) {
	c := testutil.ToyCipher()
	prev := MaskSet{0x1: 1.0}
	sources := []ScoredMask{{Mask: 0x1, ELP: 1.0}}

	// Expand the single-lane frontier, then its result.
	e := NewExpander(c, Forward, 4, false)
	dst := NewCollector(1 << 12)
	require.NoError(t, e.CollectRound(context.Background(), sources, prev, dst, 4))
	round1 := dst.Flatten()
	require.Len(t, round1, 4)

	prev = NewMaskSet(round1)
	e.Stats().Reset()
	require.NoError(t, e.CollectRound(context.Background(), round1, prev, dst, 4))
	require.EqualValues(t, 4, e.Stats().Sources.Load())
	require.NotZero(t, dst.Len())

	// The same frontier expanded sequentially gives the same set.
	seq := NewCollector(1 << 12)
	for _, src := range round1 {
		require.NoError(t, e.ExpandFrom(src.Mask, prev, seq))
	}
	a, b := dst.Flatten(), seq.Flatten()
	require.Equal(t, len(a), len(b))
	bSet := NewMaskSet(b)
	for _, sm := range a {
		assert.InDelta(t, bSet[sm.Mask], sm.ELP, 1e-12)
	}
}

func TestCollectRoundError(t *testing.T) {
	e := NewExpander(testutil.ToyCipher(), Forward, 4, true)
	dst := NewCollector(16)
	sources := []ScoredMask{{Mask: 0x1, ELP: 1.0}, {Mask: 0x2, ELP: 1.0}}

	err := e.CollectRound(context.Background(), sources, MaskSet{}, dst, 1)
	require.ErrorIs(t, err, ErrNoBackTrail)
}

func TestExpandStats(t *testing.T) {
	e := NewExpander(testutil.ToyCipher(), Forward, 4, false)
	dst := NewCollector(2)
	prev := MaskSet{0x1: 1.0}

	require.NoError(t, e.ExpandFrom(0x1, prev, dst))
	st := e.Stats()
	assert.EqualValues(t, 4, st.Candidates.Load())
	assert.EqualValues(t, 2, st.Accepted.Load())
	assert.EqualValues(t, 0, st.Discarded.Load())
	assert.EqualValues(t, 2, st.Rejected())

	st.Reset()
	assert.EqualValues(t, 0, st.Candidates.Load())
}
