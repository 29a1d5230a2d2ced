package approx

import (
	"math"
	"math/bits"
	"sort"

	"github.com/psve/cryptagraph/cipher"
)

// Tiny is the magnitude floor for correlations and ELP contributions.
// Table rows are truncated below it and candidate scores under it are
// discarded by the search.
const Tiny = 6e-50

// Approx is a single linear approximation of a 4-bit S-box: the parity of
// Input over the S-box input agrees with the parity of Output over the
// S-box output with correlation Corr.
type Approx struct {
	Input  uint64
	Output uint64
	Weight int
	Corr   float64
}

// Table holds one row of approximations per 4-bit parity mask, each row
// sorted by descending correlation magnitude.
type Table [16][]Approx

// Tables enumerates the linear approximation table of sb and returns two
// views of it: fwd indexed by input mask, and bwd indexed by output mask
// with input and output swapped in each entry. Correlations are signed,
// entries with |corr| below Tiny are dropped.
func Tables(sb cipher.Sbox) (fwd, bwd Table) {
	for a := uint64(0); a < 16; a++ {
		for b := uint64(0); b < 16; b++ {
			hits := 0
			for x := uint64(0); x < 16; x++ {
				if Parity(a&x) == Parity(b&uint64(sb[x])) {
					hits++
				}
			}
			corr := 2.0*float64(hits)/16.0 - 1.0
			fwd[a] = append(fwd[a], Approx{Input: a, Output: b, Weight: bits.OnesCount64(b), Corr: corr})
			bwd[b] = append(bwd[b], Approx{Input: b, Output: a, Weight: bits.OnesCount64(a), Corr: corr})
		}
	}

	for v := 0; v < 16; v++ {
		fwd[v] = trimRow(fwd[v])
		bwd[v] = trimRow(bwd[v])
	}
	return fwd, bwd
}

func trimRow(row []Approx) []Approx {
	sort.SliceStable(row, func(i, j int) bool {
		return math.Abs(row[i].Corr) > math.Abs(row[j].Corr)
	})
	for i, apx := range row {
		if math.Abs(apx.Corr) < Tiny {
			return row[:i]
		}
	}
	return row
}

// ELP returns a copy of t with every correlation squared, turning signed
// correlations into expected-linear-potential contributions.
func (t Table) ELP() Table {
	var out Table
	for v := range t {
		row := make([]Approx, len(t[v]))
		copy(row, t[v])
		for i := range row {
			row[i].Corr *= row[i].Corr
		}
		out[v] = row
	}
	return out
}

// Parity returns the XOR over all bits of x.
func Parity(x uint64) uint64 {
	return uint64(bits.OnesCount64(x)) & 1
}

// Weight returns the Hamming weight of x.
func Weight(x uint64) int {
	return bits.OnesCount64(x)
}

// NibbleWeight returns the number of nonzero 4-bit lanes of x.
func NibbleWeight(x uint64) int {
	n := 0
	for ; x != 0; x >>= 4 {
		if x&0xf != 0 {
			n++
		}
	}
	return n
}
