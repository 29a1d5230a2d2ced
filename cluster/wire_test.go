package cluster

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psve/cryptagraph/search"
)

func TestFrameRoundTrip(t *testing.T) {
	list := []search.ScoredMask{
		{Mask: 0x1, ELP: 0.25},
		{Mask: 0xdeadbeefcafef00d, ELP: 1e-30},
		{Mask: ^uint64(0), ELP: 0.0078125},
	}

	frame := EncodeFrame(list)
	require.Len(t, frame, frameHeaderSize+len(list)*entrySize)

	decoded, err := DecodeFrame(frame, 16)
	require.NoError(t, err)
	assert.Equal(t, list, decoded)
}

func TestFrameEmpty(t *testing.T) {
	frame := EncodeFrame(nil)
	require.Len(t, frame, frameHeaderSize)

	decoded, err := DecodeFrame(frame, 4)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestFrameTooLarge(t *testing.T) {
	list := make([]search.ScoredMask, 5)
	for i := range list {
		list[i] = search.ScoredMask{Mask: uint64(i + 1), ELP: 1}
	}

	_, err := DecodeFrame(EncodeFrame(list), 4)
	require.ErrorIs(t, err, ErrFrameTooLarge)

	_, err = DecodeFrame(EncodeFrame(list), 5)
	require.NoError(t, err)
}

func TestFrameTruncated(t *testing.T) {
	_, err := DecodeFrame([]byte{1, 2, 3}, 16)
	require.ErrorIs(t, err, ErrFrameTruncated)

	frame := EncodeFrame([]search.ScoredMask{{Mask: 0x1, ELP: 1}})
	_, err = DecodeFrame(frame[:len(frame)-1], 16)
	require.ErrorIs(t, err, ErrFrameTruncated)

	// A lying count is a truncation too.
	bad := append([]byte(nil), frame...)
	binary.BigEndian.PutUint64(bad[:8], 2)
	_, err = DecodeFrame(bad, 16)
	require.ErrorIs(t, err, ErrFrameTruncated)
}

func TestFrameDigestMismatch(t *testing.T) {
	frame := EncodeFrame([]search.ScoredMask{{Mask: 0xabc, ELP: 0.5}})

	corrupt := append([]byte(nil), frame...)
	corrupt[frameHeaderSize] ^= 0x01
	_, err := DecodeFrame(corrupt, 16)
	require.ErrorIs(t, err, ErrFrameDigest)

	// A tampered digest fails the same way.
	corrupt = append([]byte(nil), frame...)
	corrupt[8] ^= 0x01
	_, err = DecodeFrame(corrupt, 16)
	require.ErrorIs(t, err, ErrFrameDigest)
}
