package ccsds

// The pseudo-randomizer is an 8-bit self-synchronizing scrambler over the
// polynomial 1 + x^3 + x^5 + x^7 + x^8.  The shift register is seeded with
// 0xFF at the start of every call, so randomization and derandomization are
// the same operation.

const randomizerSeed = 0xFF

// nextRandomByte advances the shift register eight steps and returns the
// generated byte (register bit 0 emitted first, assembled MSB-first)
func nextRandomByte(state *byte) byte {
	s := *state
	var out byte
	for i := 0; i < 8; i++ {
		out = (out << 1) | (s & 1)
		feedback := ((s >> 2) ^ (s >> 4) ^ (s >> 6) ^ (s >> 7)) & 1
		s = (s >> 1) | (feedback << 7)
	}
	*state = s
	return out
}

// RandomizeSequence returns the first n bytes of the raw scrambling sequence
func RandomizeSequence(n int) []byte {
	out := make([]byte, n)
	state := byte(randomizerSeed)
	for i := range out {
		out[i] = nextRandomByte(&state)
	}
	return out
}

// RandomizeInPlace XORs p with the scrambling sequence, modifying p
func RandomizeInPlace(p []byte) {
	state := byte(randomizerSeed)
	for i := range p {
		p[i] ^= nextRandomByte(&state)
	}
}

// Randomize returns a scrambled copy of p.  Applying it twice returns the
// original bytes.
func Randomize(p []byte) []byte {
	out := make([]byte, len(p))
	state := byte(randomizerSeed)
	for i, b := range p {
		out[i] = b ^ nextRandomByte(&state)
	}
	return out
}

// Derandomize reverses Randomize.  The scrambler is its own inverse, so this
// is the identical operation under a separate name for call-site clarity.
func Derandomize(p []byte) []byte {
	return Randomize(p)
}

// DerandomizeInPlace reverses RandomizeInPlace
func DerandomizeInPlace(p []byte) {
	RandomizeInPlace(p)
}
