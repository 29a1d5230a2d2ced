package cipher

// RECTANGLE (Zhang et al., 2015). The ShiftRows layer is expressed here
// as a single bit permutation over the nibble-sliced 64-bit state.

var rectangleSbox = Sbox{
	0x6, 0x5, 0xc, 0xa, 0x1, 0xe, 0x7, 0x9,
	0xb, 0x0, 0x3, 0xd, 0x8, 0xf, 0x4, 0x2,
}

var rectanglePerm = [64]int{
	0, 5, 50, 55, 4, 9, 54, 59, 8, 13, 58, 63, 12, 17, 62, 3,
	16, 21, 2, 7, 20, 25, 6, 11, 24, 29, 10, 15, 28, 33, 14, 19,
	32, 37, 18, 23, 36, 41, 22, 27, 40, 45, 26, 31, 44, 49, 30, 35,
	48, 53, 34, 39, 52, 57, 38, 43, 56, 61, 42, 47, 60, 1, 46, 51,
}

// NewRectangle returns the RECTANGLE cipher.
func NewRectangle() *SPN {
	return New("RECTANGLE", rectangleSbox, rectanglePerm)
}
