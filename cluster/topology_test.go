package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologyValidate(t *testing.T) {
	require.NoError(t, Topology{Rank: 0, World: 1, Fanout: 2}.Validate())
	require.NoError(t, Topology{Rank: 3, World: 4, Fanout: 1}.Validate())

	require.Error(t, Topology{Rank: 0, World: 0, Fanout: 2}.Validate())
	require.Error(t, Topology{Rank: 0, World: 1, Fanout: 0}.Validate())
	require.Error(t, Topology{Rank: -1, World: 4, Fanout: 2}.Validate())
	require.Error(t, Topology{Rank: 4, World: 4, Fanout: 2}.Validate())
}

func TestTopologyBinaryTree(t *testing.T) {
	topo := func(rank int) Topology { return Topology{Rank: rank, World: 7, Fanout: 2} }

	assert.True(t, topo(0).IsRoot())
	assert.False(t, topo(1).IsRoot())

	assert.Equal(t, -1, topo(0).Parent())
	assert.Equal(t, []int{1, 2}, topo(0).Children())
	assert.Equal(t, 0, topo(1).Parent())
	assert.Equal(t, []int{3, 4}, topo(1).Children())
	assert.Equal(t, 0, topo(2).Parent())
	assert.Equal(t, []int{5, 6}, topo(2).Children())
	assert.Equal(t, 1, topo(3).Parent())
	assert.Empty(t, topo(3).Children())
	assert.Equal(t, 2, topo(6).Parent())
	assert.Empty(t, topo(6).Children())
}

// Parent and Children must agree for every shape, or the tree deadlocks.
func TestTopologyParentChildrenDual(t *testing.T) {
	for world := 1; world <= 20; world++ {
		for fanout := 1; fanout <= 4; fanout++ {
			covered := map[int]bool{0: true}
			for rank := 0; rank < world; rank++ {
				tp := Topology{Rank: rank, World: world, Fanout: fanout}
				for _, c := range tp.Children() {
					require.Less(t, c, world)
					require.Equal(t, rank, Topology{Rank: c, World: world, Fanout: fanout}.Parent(),
						"world %d fanout %d: child %d of %d", world, fanout, c, rank)
					covered[c] = true
				}
				if rank != 0 {
					p := tp.Parent()
					require.GreaterOrEqual(t, p, 0)
					require.Contains(t, Topology{Rank: p, World: world, Fanout: fanout}.Children(), rank,
						"world %d fanout %d: rank %d not child of parent %d", world, fanout, rank, p)
				}
			}
			require.Len(t, covered, world, "world %d fanout %d: orphaned ranks", world, fanout)
		}
	}
}

func TestTopologySlice(t *testing.T) {
	for _, world := range []int{1, 2, 3, 4, 7} {
		for _, n := range []int{0, 1, 5, 16, 17, 100} {
			next := 0
			for rank := 0; rank < world; rank++ {
				lo, hi := Topology{Rank: rank, World: world, Fanout: 2}.Slice(n)
				require.Equal(t, next, lo, "world %d n %d rank %d", world, n, rank)
				require.LessOrEqual(t, lo, hi)
				next = hi
			}
			require.Equal(t, n, next, "world %d n %d: slices do not tile", world, n)
		}
	}

	// The last rank absorbs the remainder.
	lo, hi := Topology{Rank: 3, World: 4, Fanout: 2}.Slice(10)
	assert.Equal(t, 6, lo)
	assert.Equal(t, 10, hi)
}
