package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psve/cryptagraph/search"
)

func TestWriteReadMasks(t *testing.T) {
	dir := t.TempDir()
	list := []search.ScoredMask{
		{Mask: 0x1, ELP: 0.125},
		{Mask: 0xdeadbeefcafef00d, ELP: 0.25},
		{Mask: ^uint64(0), ELP: 0.5},
	}

	path, err := WriteMasks(dir, 0x1, 3, list)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1-r3.masks"), path)

	masks, err := ReadMasks(path)
	require.NoError(t, err)
	require.Len(t, masks, len(list))
	for i, sm := range list {
		assert.Equal(t, sm.Mask, masks[i])
	}

	// No leftover temp files.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteMasksCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "checkpoints")

	path, err := WriteMasks(dir, 0xabc, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc-r1.masks"), path)

	masks, err := ReadMasks(path)
	require.NoError(t, err)
	assert.Empty(t, masks)
}

func TestWriteMasksOverwrites(t *testing.T) {
	dir := t.TempDir()

	_, err := WriteMasks(dir, 0x2, 1, []search.ScoredMask{{Mask: 0x10, ELP: 1}})
	require.NoError(t, err)
	path, err := WriteMasks(dir, 0x2, 1, []search.ScoredMask{{Mask: 0x20, ELP: 1}, {Mask: 0x30, ELP: 2}})
	require.NoError(t, err)

	masks, err := ReadMasks(path)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0x20, 0x30}, masks)
}

func TestReadMasksRejectsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.masks")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	_, err := ReadMasks(path)
	require.Error(t, err)
}

func TestInMemoryStoreRounds(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	defer store.Close()

	_, ok, err := store.LatestRound(ctx, "PRESENT", 0x1, "forward")
	require.NoError(t, err)
	require.False(t, ok)

	for round := 1; round <= 3; round++ {
		err := store.SaveRound(ctx, RoundRecord{
			Cipher:    "PRESENT",
			Alpha:     0x1,
			Direction: "forward",
			Round:     round,
			Masks:     []search.ScoredMask{{Mask: uint64(round), ELP: float64(round)}},
		})
		require.NoError(t, err)
	}

	rec, ok, err := store.LatestRound(ctx, "PRESENT", 0x1, "forward")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, rec.Round)
	require.Len(t, rec.Masks, 1)
	assert.Equal(t, uint64(3), rec.Masks[0].Mask)
	assert.False(t, rec.CreatedAt.IsZero())

	// Other searches are invisible.
	_, ok, err = store.LatestRound(ctx, "PRESENT", 0x1, "backward")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.LatestRound(ctx, "GIFT-64", 0x1, "forward")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	rec := RoundRecord{Cipher: "PRESENT", Alpha: 0x2, Direction: "forward", Round: 1,
		Masks: []search.ScoredMask{{Mask: 0xa, ELP: 0.5}}}
	require.NoError(t, store.SaveRound(ctx, rec))

	rec.Masks = []search.ScoredMask{{Mask: 0xb, ELP: 0.75}}
	require.NoError(t, store.SaveRound(ctx, rec))

	got, ok, err := store.LatestRound(ctx, "PRESENT", 0x2, "forward")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Masks, 1)
	assert.Equal(t, uint64(0xb), got.Masks[0].Mask)
}

func TestMaskBlobCodec(t *testing.T) {
	list := []search.ScoredMask{
		{Mask: 0x1, ELP: 0.015625},
		{Mask: 0x8000000000000000, ELP: 1e-40},
	}
	decoded, err := decodeMasks(encodeMasks(list))
	require.NoError(t, err)
	assert.Equal(t, list, decoded)

	decoded, err = decodeMasks(nil)
	require.NoError(t, err)
	assert.Empty(t, decoded)

	_, err = decodeMasks(make([]byte, 15))
	require.Error(t, err)
}
