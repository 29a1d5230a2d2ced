package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	for value, want := range map[string]Direction{
		"":          Forward,
		"forward":   Forward,
		"Forwards":  Forward,
		"backward":  Backward,
		"BACKWARDS": Backward,
	} {
		d, err := ParseDirection(value)
		require.NoError(t, err, value)
		assert.Equal(t, want, d, value)
	}

	_, err := ParseDirection("sideways")
	require.Error(t, err)

	assert.Equal(t, "forward", Forward.String())
	assert.Equal(t, "backward", Backward.String())
}

func TestMaskSet(t *testing.T) {
	list := []ScoredMask{
		{Mask: 0x1, ELP: 0.25},
		{Mask: 0x2, ELP: 0.5},
		{Mask: 0x3, ELP: 0.125},
	}
	set := NewMaskSet(list)
	require.Len(t, set, 3)
	assert.Equal(t, 0.5, set[0x2])
	assert.InDelta(t, 0.875, set.TotalELP(), 1e-15)

	assert.Empty(t, NewMaskSet(nil))
}
