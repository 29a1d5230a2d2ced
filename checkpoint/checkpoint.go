package checkpoint

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/psve/cryptagraph/search"
)

// WriteMasks writes one finalized round to dir as "<alpha>-r<round>.masks":
// the masks alone as raw little-endian uint64 values, no header, in
// ascending ELP order. The file appears atomically. Returns the path
// written.
func WriteMasks(dir string, alpha uint64, round int, list []search.ScoredMask) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating checkpoint dir: %w", err)
	}

	buf := make([]byte, 0, len(list)*8)
	for _, sm := range list {
		buf = binary.LittleEndian.AppendUint64(buf, sm.Mask)
	}

	name := fmt.Sprintf("%x-r%d.masks", alpha, round)
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+".tmp")
	if err != nil {
		return "", fmt.Errorf("creating checkpoint: %w", err)
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("publishing checkpoint: %w", err)
	}
	return path, nil
}

// ReadMasks loads the masks of a checkpoint file written by WriteMasks.
func ReadMasks(path string) ([]uint64, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("%s: %d bytes is not a mask file", path, len(buf))
	}
	masks := make([]uint64, len(buf)/8)
	for i := range masks {
		masks[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return masks, nil
}
