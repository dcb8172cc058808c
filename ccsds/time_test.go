package ccsds

import (
	"errors"
	"testing"
	"time"
)

// TestCUCRoundTripDefault round-trips the default 4+3 configuration at
// exactly representable sub-second fractions
func TestCUCRoundTripDefault(t *testing.T) {
	cases := []time.Time{
		EpochCUC,
		EpochCUC.Add(1 * time.Second),
		EpochCUC.Add(1000*time.Second + 500*time.Millisecond),
		EpochCUC.Add(86400*time.Second + 250*time.Millisecond),
		time.Date(2024, time.March, 1, 12, 30, 45, 0, time.UTC),
	}
	for i, original := range cases {
		encoded, err := EncodeCUCDefault(original)
		if err != nil {
			t.Fatalf("case %d: encode failed:%v", i, err)
		}
		if len(encoded) != 7 {
			t.Errorf("case %d: encoded length:%d:expected 7", i, len(encoded))
		}
		decoded, err := DecodeCUCDefault(encoded)
		if err != nil {
			t.Fatalf("case %d: decode failed:%v", i, err)
		}
		// 3 fine bytes resolve to 1/2^24 seconds
		diff := decoded.Sub(original)
		if diff < 0 {
			diff = -diff
		}
		if diff > time.Second/(1<<24)+time.Nanosecond {
			t.Errorf("case %d: decoded %v differs from %v by %v", i, decoded, original, diff)
		}
	}
}

// TestCUCFieldWidths exercises every legal coarse/fine combination
func TestCUCFieldWidths(t *testing.T) {
	original := EpochCUC.Add(200*time.Second + 500*time.Millisecond)
	for coarse := 1; coarse <= 4; coarse++ {
		for fine := 0; fine <= 3; fine++ {
			encoded, err := EncodeCUC(original, coarse, fine)
			if err != nil {
				t.Fatalf("coarse=%d fine=%d: encode failed:%v", coarse, fine, err)
			}
			if len(encoded) != coarse+fine {
				t.Errorf("coarse=%d fine=%d: length:%d", coarse, fine, len(encoded))
			}
			decoded, err := DecodeCUC(encoded, coarse, fine)
			if err != nil {
				t.Fatalf("coarse=%d fine=%d: decode failed:%v", coarse, fine, err)
			}
			expectSeconds := int64(200)
			if got := int64(decoded.Sub(EpochCUC) / time.Second); got != expectSeconds {
				t.Errorf("coarse=%d fine=%d: seconds:%d:expected %d", coarse, fine, got, expectSeconds)
			}
			if fine > 0 {
				frac := decoded.Sub(EpochCUC) % time.Second
				if frac != 500*time.Millisecond {
					t.Errorf("coarse=%d fine=%d: fraction:%v:expected 500ms", coarse, fine, frac)
				}
			}
		}
	}
}

// TestCUCValidation covers the argument and range checks
func TestCUCValidation(t *testing.T) {
	if _, err := EncodeCUC(EpochCUC, 0, 0); !errors.Is(err, ErrFieldOutOfRange) {
		t.Errorf("coarse 0:%v:expected ErrFieldOutOfRange", err)
	}
	if _, err := EncodeCUC(EpochCUC, 5, 0); !errors.Is(err, ErrFieldOutOfRange) {
		t.Errorf("coarse 5:%v:expected ErrFieldOutOfRange", err)
	}
	if _, err := EncodeCUC(EpochCUC, 4, 4); !errors.Is(err, ErrFieldOutOfRange) {
		t.Errorf("fine 4:%v:expected ErrFieldOutOfRange", err)
	}
	if _, err := EncodeCUC(EpochCUC.Add(-time.Second), 4, 0); !errors.Is(err, ErrTimeOutOfRange) {
		t.Errorf("pre-epoch time:%v:expected ErrTimeOutOfRange", err)
	}
	// 256 seconds doesn't fit in one coarse byte
	if _, err := EncodeCUC(EpochCUC.Add(256*time.Second), 1, 0); !errors.Is(err, ErrTimeOutOfRange) {
		t.Errorf("coarse overflow:%v:expected ErrTimeOutOfRange", err)
	}
	// 2^32 seconds doesn't fit in four coarse bytes either
	if _, err := EncodeCUC(EpochCUC.Add((1<<32)*time.Second), 4, 0); !errors.Is(err, ErrTimeOutOfRange) {
		t.Errorf("4-byte coarse overflow:%v:expected ErrTimeOutOfRange", err)
	}
	if _, err := EncodeCUC(EpochCUC.Add(((1<<32)-1)*time.Second), 4, 0); err != nil {
		t.Errorf("max 4-byte coarse value rejected:%v", err)
	}
	if _, err := DecodeCUC([]byte{0x01}, 4, 3); !errors.Is(err, ErrTruncatedPacket) {
		t.Errorf("short buffer:%v:expected ErrTruncatedPacket", err)
	}
}

// TestCDSBasicRoundTrip round-trips the 6-byte form
func TestCDSBasicRoundTrip(t *testing.T) {
	original := EpochCDS.Add(100*24*time.Hour + 12*time.Hour + 345*time.Millisecond)
	encoded, err := EncodeCDS(original)
	if err != nil {
		t.Fatalf("encode failed:%v", err)
	}
	if len(encoded) != CDSBasicLength {
		t.Fatalf("encoded length:%d:expected %d", len(encoded), CDSBasicLength)
	}
	if encoded[0] != 0 || encoded[1] != 100 {
		t.Errorf("day field:%02X%02X:expected 0064", encoded[0], encoded[1])
	}

	decoded, err := DecodeCDS(encoded)
	if err != nil {
		t.Fatalf("decode failed:%v", err)
	}
	if !decoded.Equal(original) {
		t.Errorf("decoded:%v:expected %v", decoded, original)
	}
}

// TestCDSExtendedRoundTrip round-trips the 8-byte form at microsecond resolution
func TestCDSExtendedRoundTrip(t *testing.T) {
	original := EpochCDS.Add(20000*24*time.Hour + 3*time.Hour + 7*time.Millisecond + 891*time.Microsecond)
	encoded, err := EncodeCDSExtended(original)
	if err != nil {
		t.Fatalf("encode failed:%v", err)
	}
	if len(encoded) != CDSExtendedLength {
		t.Fatalf("encoded length:%d:expected %d", len(encoded), CDSExtendedLength)
	}
	// Microseconds sit in the upper 10 bits of the trailing field
	sub := int(encoded[6])<<8 | int(encoded[7])
	if sub>>6 != 891 {
		t.Errorf("sub-ms field:%d:expected 891", sub>>6)
	}

	decoded, err := DecodeCDS(encoded)
	if err != nil {
		t.Fatalf("decode failed:%v", err)
	}
	if !decoded.Equal(original) {
		t.Errorf("decoded:%v:expected %v", decoded, original)
	}
}

// TestCDSValidation covers range rejection on both sides
func TestCDSValidation(t *testing.T) {
	// 86,400,000 milliseconds of day is out of range
	bad := []byte{0x00, 0x01, 0x05, 0x26, 0x5C, 0x00}
	if _, err := DecodeCDS(bad); !errors.Is(err, ErrTimeOutOfRange) {
		t.Errorf("ms overflow:%v:expected ErrTimeOutOfRange", err)
	}

	// 1000 microseconds in the extended field is out of range
	bad = []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x00, byte(1000 >> 2), byte(1000 << 6 & 0xFF)}
	if _, err := DecodeCDS(bad); !errors.Is(err, ErrTimeOutOfRange) {
		t.Errorf("microsecond overflow:%v:expected ErrTimeOutOfRange", err)
	}

	if _, err := DecodeCDS(make([]byte, 7)); err == nil {
		t.Error("7-byte buffer accepted")
	}
	if _, err := EncodeCDS(EpochCDS.Add(-time.Hour)); !errors.Is(err, ErrTimeOutOfRange) {
		t.Errorf("pre-epoch time:%v:expected ErrTimeOutOfRange", err)
	}
}

// TestITOSFormat pins the human-readable timestamp layout
func TestITOSFormat(t *testing.T) {
	ts := time.Date(2024, time.February, 10, 13, 5, 9, 42000000, time.UTC)
	if got := ITOSFormat(ts); got != "24-041-13:05:09.042" {
		t.Errorf("itos format:%s:expected 24-041-13:05:09.042", got)
	}
}
