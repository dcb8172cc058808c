package ccsds

import "math/bits"

// CodeBlockParity computes the single parity byte appended to each CLTU code
// block: each data byte is XORed into an accumulator which is then rotated
// left by one bit.
//
// This is NOT the CCSDS BCH(63,56) Galois-field code.  It is a detection-only
// checksum, and the exact XOR/rotate procedure is load-bearing: peers compute
// the same bytes, so it must not be "upgraded" to a real BCH encoder.
func CodeBlockParity(data []byte) byte {
	var acc byte
	for _, b := range data {
		acc = bits.RotateLeft8(acc^b, 1)
	}
	return acc
}

// VerifyCodeBlock checks an encoded code block (data bytes followed by one
// parity byte) against its trailing parity
func VerifyCodeBlock(block []byte) bool {
	if len(block) < 2 {
		return false
	}
	return CodeBlockParity(block[:len(block)-1]) == block[len(block)-1]
}
