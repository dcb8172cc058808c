package ccsds

import (
	"github.com/sigurn/crc16"
)

// The frame error control field is CRC-16/CCITT-FALSE: polynomial 0x1021,
// initial value 0xFFFF, MSB-first, no final xor.
var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// CRC16 computes the frame error control field value over p.
// An empty input yields the initial value 0xFFFF.
func CRC16(p []byte) uint16 {
	return crc16.Checksum(p, crcTable)
}

// VerifyCRC16 recomputes the CRC over p and compares it against expected
func VerifyCRC16(p []byte, expected uint16) bool {
	return CRC16(p) == expected
}

// AppendCRC16 returns a new slice holding p followed by its big-endian CRC-16
func AppendCRC16(p []byte) []byte {
	crc := CRC16(p)
	out := make([]byte, len(p)+2)
	copy(out, p)
	out[len(p)] = byte(crc >> 8)
	out[len(p)+1] = byte(crc)
	return out
}

// VerifyTrailingCRC16 checks a buffer whose last two bytes are the big-endian
// CRC-16 of everything before them
func VerifyTrailingCRC16(p []byte) bool {
	if len(p) < 2 {
		return false
	}
	crc := CRC16(p[:len(p)-2])
	return p[len(p)-2] == byte(crc>>8) && p[len(p)-1] == byte(crc)
}
