package cipher

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownCipher is returned by ByName for names outside the registry.
var ErrUnknownCipher = errors.New("unknown cipher")

// Sbox is a 4-bit substitution box.
type Sbox [16]uint8

// Inverse returns the inverse S-box. The box must be bijective.
func (s Sbox) Inverse() Sbox {
	var inv Sbox
	for x, y := range s {
		inv[y&0xf] = uint8(x)
	}
	return inv
}

// Cipher describes one round of an SPN cipher at the level the search
// operates on: the substitution layer and the bit permutation between
// rounds, state packed as sixteen 4-bit lanes in a uint64.
type Cipher interface {
	Name() string
	Lanes() int
	Sbox() Sbox
	Permute(x uint64) uint64
	InvPermute(x uint64) uint64
}

// SPN is a table-driven Cipher: bit i of the permutation input moves to
// bit perm[i] of the output.
type SPN struct {
	name string
	sbox Sbox
	perm [64]int
	inv  [64]int
}

// New builds an SPN from its S-box and bit permutation table.
func New(name string, sbox Sbox, perm [64]int) *SPN {
	c := &SPN{name: name, sbox: sbox, perm: perm}
	for i, p := range perm {
		c.inv[p] = i
	}
	return c
}

func (c *SPN) Name() string { return c.name }

func (c *SPN) Lanes() int { return 16 }

func (c *SPN) Sbox() Sbox { return c.sbox }

// Permute moves bit i of x to bit position perm[i].
func (c *SPN) Permute(x uint64) uint64 {
	var out uint64
	for i := 0; i < 64; i++ {
		out |= ((x >> i) & 1) << c.perm[i]
	}
	return out
}

// InvPermute undoes Permute.
func (c *SPN) InvPermute(x uint64) uint64 {
	var out uint64
	for i := 0; i < 64; i++ {
		out |= ((x >> i) & 1) << c.inv[i]
	}
	return out
}

// ByName resolves a cipher from its registry name, case-insensitively.
func ByName(name string) (Cipher, error) {
	switch strings.ToLower(name) {
	case "present":
		return NewPresent(), nil
	case "gift", "gift64":
		return NewGift64(), nil
	case "rectangle":
		return NewRectangle(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, name)
}

// Names lists the registry names accepted by ByName.
func Names() []string {
	names := []string{"gift64", "present", "rectangle"}
	sort.Strings(names)
	return names
}
