package ccsds

import (
	"fmt"
	"time"
)

// EpochCUC defines what an unsegmented time code of 0 corresponds to
var EpochCUC = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// EpochCDS is the day-segmented time code epoch
var EpochCDS = time.Date(1958, time.January, 1, 0, 0, 0, 0, time.UTC)

// Default CUC field widths: 4 coarse bytes of seconds, 3 fine bytes of
// sub-second fraction, 7 bytes on the wire
const (
	DefaultCUCCoarseLength = 4
	DefaultCUCFineLength   = 3
)

// CDS field sizes
const (
	CDSBasicLength    = 6
	CDSExtendedLength = 8

	millisPerDay = 86400000
)

// EncodeCUC writes an unsegmented time code: coarseBytes (1-4) of whole
// seconds since EpochCUC, then fineBytes (0-3) of the sub-second fraction
// scaled to 2^(fineBytes*8), both big-endian.
func EncodeCUC(t time.Time, coarseBytes, fineBytes int) ([]byte, error) {
	if coarseBytes < 1 || coarseBytes > 4 {
		return nil, fieldRangeError("coarseBytes", coarseBytes, 4)
	}
	if fineBytes < 0 || fineBytes > 3 {
		return nil, fieldRangeError("fineBytes", fineBytes, 3)
	}
	d := t.Sub(EpochCUC)
	if d < 0 {
		return nil, fmt.Errorf("%w: time precedes CUC epoch", ErrTimeOutOfRange)
	}
	seconds := uint64(d / time.Second)
	if seconds >= uint64(1)<<(coarseBytes*8) {
		return nil, fmt.Errorf("%w: %d seconds does not fit in %d coarse bytes", ErrTimeOutOfRange, seconds, coarseBytes)
	}

	out := make([]byte, coarseBytes+fineBytes)
	for i := 0; i < coarseBytes; i++ {
		out[i] = byte(seconds >> uint(8*(coarseBytes-1-i)))
	}

	if fineBytes > 0 {
		fraction := float64(d%time.Second) / float64(time.Second)
		fine := uint64(fraction * float64(uint64(1)<<(fineBytes*8)))
		for i := 0; i < fineBytes; i++ {
			out[coarseBytes+i] = byte(fine >> uint(8*(fineBytes-1-i)))
		}
	}
	return out, nil
}

// DecodeCUC is the inverse of EncodeCUC for the same field widths
func DecodeCUC(p []byte, coarseBytes, fineBytes int) (time.Time, error) {
	if coarseBytes < 1 || coarseBytes > 4 {
		return time.Time{}, fieldRangeError("coarseBytes", coarseBytes, 4)
	}
	if fineBytes < 0 || fineBytes > 3 {
		return time.Time{}, fieldRangeError("fineBytes", fineBytes, 3)
	}
	if len(p) < coarseBytes+fineBytes {
		return time.Time{}, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedPacket, coarseBytes+fineBytes, len(p))
	}

	var seconds uint64
	for i := 0; i < coarseBytes; i++ {
		seconds = seconds<<8 | uint64(p[i])
	}
	var fine uint64
	for i := 0; i < fineBytes; i++ {
		fine = fine<<8 | uint64(p[coarseBytes+i])
	}

	t := EpochCUC.Add(time.Duration(seconds) * time.Second)
	if fineBytes > 0 {
		fraction := float64(fine) / float64(uint64(1)<<(fineBytes*8))
		t = t.Add(time.Duration(fraction * float64(time.Second)))
	}
	return t, nil
}

// EncodeCUCDefault encodes with the default 4+3 field widths
func EncodeCUCDefault(t time.Time) ([]byte, error) {
	return EncodeCUC(t, DefaultCUCCoarseLength, DefaultCUCFineLength)
}

// DecodeCUCDefault decodes the default 4+3 field widths
func DecodeCUCDefault(p []byte) (time.Time, error) {
	return DecodeCUC(p, DefaultCUCCoarseLength, DefaultCUCFineLength)
}

// EncodeCDS writes the 6-byte day-segmented time code: a 2-byte day count
// since EpochCDS and 4 bytes of milliseconds of day
func EncodeCDS(t time.Time) ([]byte, error) {
	days, millis, _, err := cdsSplit(t)
	if err != nil {
		return nil, err
	}
	return []byte{
		byte(days >> 8), byte(days),
		byte(millis >> 24), byte(millis >> 16), byte(millis >> 8), byte(millis),
	}, nil
}

// EncodeCDSExtended writes the 8-byte form, appending a 2-byte field whose
// upper 10 bits hold microseconds within the millisecond
func EncodeCDSExtended(t time.Time) ([]byte, error) {
	days, millis, micros, err := cdsSplit(t)
	if err != nil {
		return nil, err
	}
	sub := uint16(micros) << 6
	return []byte{
		byte(days >> 8), byte(days),
		byte(millis >> 24), byte(millis >> 16), byte(millis >> 8), byte(millis),
		byte(sub >> 8), byte(sub),
	}, nil
}

func cdsSplit(t time.Time) (days, millis, micros int64, err error) {
	d := t.Sub(EpochCDS)
	if d < 0 {
		return 0, 0, 0, fmt.Errorf("%w: time precedes CDS epoch", ErrTimeOutOfRange)
	}
	days = int64(d / (24 * time.Hour))
	if days > 0xFFFF {
		return 0, 0, 0, fmt.Errorf("%w: day count %d does not fit in 16 bits", ErrTimeOutOfRange, days)
	}
	rem := d % (24 * time.Hour)
	millis = int64(rem / time.Millisecond)
	micros = int64(rem%time.Millisecond) / int64(time.Microsecond)
	return days, millis, micros, nil
}

// DecodeCDS reads a day-segmented time code, auto-detecting the 6-byte basic
// and 8-byte extended forms by length.  Out-of-range milliseconds or
// microseconds fail rather than wrap.
func DecodeCDS(p []byte) (time.Time, error) {
	if len(p) != CDSBasicLength && len(p) != CDSExtendedLength {
		return time.Time{}, fmt.Errorf("%w: CDS time code must be %d or %d bytes, have %d",
			ErrTruncatedPacket, CDSBasicLength, CDSExtendedLength, len(p))
	}
	days := int64(p[0])<<8 | int64(p[1])
	millis := int64(p[2])<<24 | int64(p[3])<<16 | int64(p[4])<<8 | int64(p[5])
	if millis >= millisPerDay {
		return time.Time{}, fmt.Errorf("%w: %d milliseconds of day", ErrTimeOutOfRange, millis)
	}

	t := EpochCDS.Add(time.Duration(days) * 24 * time.Hour).Add(time.Duration(millis) * time.Millisecond)
	if len(p) == CDSExtendedLength {
		micros := int64(p[6])<<8 | int64(p[7])
		micros >>= 6
		if micros > 999 {
			return time.Time{}, fmt.Errorf("%w: %d microseconds", ErrTimeOutOfRange, micros)
		}
		t = t.Add(time.Duration(micros) * time.Microsecond)
	}
	return t, nil
}

// ITOSFormat converts a time to a string similar to the way ITOS formats it
func ITOSFormat(t time.Time) string {
	return fmt.Sprintf("%02d-%03d-%02d:%02d:%02d.%03d", t.Year()-2000, t.YearDay(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1000000)
}
