package cipher

// PRESENT (Bogdanov et al., CHES 2007), 64-bit state.

var presentSbox = Sbox{
	0xc, 0x5, 0x6, 0xb, 0x9, 0x0, 0xa, 0xd,
	0x3, 0xe, 0xf, 0x8, 0x4, 0x7, 0x1, 0x2,
}

// NewPresent returns the PRESENT cipher. Its bit permutation sends bit i
// to bit 16*(i mod 4) + i/4.
func NewPresent() *SPN {
	var perm [64]int
	for i := range perm {
		perm[i] = (i%4)*16 + i/4
	}
	return New("PRESENT", presentSbox, perm)
}
