package ccsds

import "testing"

// TestCodeBlockParityKnownValues pins the XOR/rotate procedure byte by byte
func TestCodeBlockParityKnownValues(t *testing.T) {
	cases := []struct {
		data     []byte
		expected byte
	}{
		{[]byte{}, 0x00},
		{[]byte{0x00}, 0x00},
		// 0x01 ^ 0 = 0x01, rotate left 1 = 0x02
		{[]byte{0x01}, 0x02},
		// 0x80 rotates its MSB around to the LSB
		{[]byte{0x80}, 0x01},
		// acc=0x02 after first byte, 0x02^0x01=0x03, rol=0x06
		{[]byte{0x01, 0x01}, 0x06},
		{[]byte{0xFF}, 0xFF},
	}
	for i, c := range cases {
		if got := CodeBlockParity(c.data); got != c.expected {
			t.Errorf("case %d: parity:%02X:expected %02X", i, got, c.expected)
		}
	}
}

// TestVerifyCodeBlock tests the encode/verify pair
func TestVerifyCodeBlock(t *testing.T) {
	data := []byte{0xEB, 0x90, 0x12, 0x34, 0x56, 0x78, 0x9A}
	block := append(append([]byte{}, data...), CodeBlockParity(data))
	if !VerifyCodeBlock(block) {
		t.Error("verify failed on a freshly encoded block")
	}
	if VerifyCodeBlock([]byte{0x01}) {
		t.Error("verify passed on a block too short to hold parity")
	}
}

// TestCodeBlockCorruptionDetection flips single bits across representative
// positions.  The checksum is detection-only and non-cryptographic, so the
// assertion covers these patterns, not all possible corruptions.
func TestCodeBlockCorruptionDetection(t *testing.T) {
	data := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}
	block := append(append([]byte{}, data...), CodeBlockParity(data))

	for byteIdx := 0; byteIdx < len(block); byteIdx++ {
		for bit := 0; bit < 8; bit++ {
			corrupted := make([]byte, len(block))
			copy(corrupted, block)
			corrupted[byteIdx] ^= 1 << uint(bit)
			if VerifyCodeBlock(corrupted) {
				t.Errorf("single-bit corruption at byte %d bit %d not detected", byteIdx, bit)
			}
		}
	}
}
