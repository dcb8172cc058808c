package ccsds

import "testing"

// TestCRC16EmptyInput verifies the preset value comes back for empty input
func TestCRC16EmptyInput(t *testing.T) {
	if got := CRC16(nil); got != 0xFFFF {
		t.Errorf("crc of empty input:%04X:expected FFFF", got)
	}
	if got := CRC16([]byte{}); got != 0xFFFF {
		t.Errorf("crc of empty slice:%04X:expected FFFF", got)
	}
}

// TestCRC16CheckValue verifies the standard CCITT-FALSE check vector
func TestCRC16CheckValue(t *testing.T) {
	if got := CRC16([]byte("123456789")); got != 0x29B1 {
		t.Errorf("crc check value:%04X:expected 29B1", got)
	}
}

// TestCRC16Verify tests verification against a computed value
func TestCRC16Verify(t *testing.T) {
	data := []byte{0x08, 0xB9, 0x00, 0x00, 0x00, 0x05, 0xDE, 0xAD}
	crc := CRC16(data)
	if !VerifyCRC16(data, crc) {
		t.Error("verify failed against own crc")
	}
	if VerifyCRC16(data, crc^0x0001) {
		t.Error("verify passed against wrong crc")
	}
}

// TestAppendAndVerifyTrailing tests the append/check pair used for the FECF
func TestAppendAndVerifyTrailing(t *testing.T) {
	cases := [][]byte{
		{0x00},
		{0xFF, 0xFF},
		[]byte("DEPLOY_SOLAR_PANELS"),
	}
	for i, data := range cases {
		withCRC := AppendCRC16(data)
		if len(withCRC) != len(data)+2 {
			t.Errorf("case %d: appended length:%d:expected %d", i, len(withCRC), len(data)+2)
		}
		if !VerifyTrailingCRC16(withCRC) {
			t.Errorf("case %d: trailing verify failed", i)
		}

		// Any single corrupted byte must be caught
		for j := range withCRC {
			corrupted := make([]byte, len(withCRC))
			copy(corrupted, withCRC)
			corrupted[j] ^= 0x01
			if VerifyTrailingCRC16(corrupted) {
				t.Errorf("case %d: corruption at byte %d not detected", i, j)
			}
		}
	}

	if VerifyTrailingCRC16([]byte{0x12}) {
		t.Error("verify passed on a buffer too short to hold a crc")
	}
}
