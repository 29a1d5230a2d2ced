// Package cipher models the round structure of the supported SPN block
// ciphers as far as the mask search needs it: a 4-bit S-box layer over
// sixteen lanes followed by a 64-bit wire permutation. Ciphers are looked
// up by name through ByName.
package cipher
