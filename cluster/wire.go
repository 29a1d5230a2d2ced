package cluster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/sha3"

	"github.com/psve/cryptagraph/search"
)

const (
	// frameHeaderSize is the entry count plus the SHA3-256 body digest.
	frameHeaderSize = 8 + 32
	// entrySize is one big-endian (mask, ELP bits) pair.
	entrySize = 16
)

var (
	ErrFrameTooLarge  = errors.New("frame exceeds mask set limit")
	ErrFrameTruncated = errors.New("frame body truncated")
	ErrFrameDigest    = errors.New("frame digest mismatch")
)

// maxFrameBytes is the largest valid frame for a given set limit.
func maxFrameBytes(limit int) int64 {
	return int64(frameHeaderSize) + int64(limit)*entrySize
}

// EncodeFrame serializes a flattened mask list: entry count and SHA3-256
// body digest, then one (mask, ELP bits) pair per entry, big-endian
// throughout.
func EncodeFrame(list []search.ScoredMask) []byte {
	body := make([]byte, 0, len(list)*entrySize)
	for _, sm := range list {
		body = binary.BigEndian.AppendUint64(body, sm.Mask)
		body = binary.BigEndian.AppendUint64(body, math.Float64bits(sm.ELP))
	}
	digest := sha3.Sum256(body)

	out := make([]byte, 0, frameHeaderSize+len(body))
	out = binary.BigEndian.AppendUint64(out, uint64(len(list)))
	out = append(out, digest[:]...)
	return append(out, body...)
}

// DecodeFrame parses a frame and validates it against the mask set
// limit. Any failure is a fatal protocol violation.
func DecodeFrame(buf []byte, limit int) ([]search.ScoredMask, error) {
	if len(buf) < frameHeaderSize {
		return nil, fmt.Errorf("%w: %d byte frame", ErrFrameTruncated, len(buf))
	}
	count := binary.BigEndian.Uint64(buf[:8])
	if limit < 0 || count > uint64(limit) {
		return nil, fmt.Errorf("%w: %d entries over limit %d", ErrFrameTooLarge, count, limit)
	}
	body := buf[frameHeaderSize:]
	if uint64(len(body)) != count*entrySize {
		return nil, fmt.Errorf("%w: %d body bytes for %d entries", ErrFrameTruncated, len(body), count)
	}
	digest := sha3.Sum256(body)
	if !bytes.Equal(digest[:], buf[8:frameHeaderSize]) {
		return nil, ErrFrameDigest
	}

	list := make([]search.ScoredMask, count)
	for i := range list {
		off := i * entrySize
		list[i].Mask = binary.BigEndian.Uint64(body[off:])
		list[i].ELP = math.Float64frombits(binary.BigEndian.Uint64(body[off+8:]))
	}
	return list, nil
}
