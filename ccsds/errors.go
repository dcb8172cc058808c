package ccsds

import (
	"errors"
	"fmt"
)

// Errors returned when wire data fails to decode.  These are sentinel values so
// callers can distinguish corruption modes with errors.Is.
var (
	// ErrInvalidStartSequence indicates a CLTU that doesn't begin with 0xEB90
	ErrInvalidStartSequence = errors.New("cltu: invalid start sequence")

	// ErrMissingTailSequence indicates a CLTU without seven consecutive 0xC5 tail bytes
	ErrMissingTailSequence = errors.New("cltu: missing tail sequence")

	// ErrBlockParityMismatch indicates a CLTU code block whose parity byte doesn't match its data
	ErrBlockParityMismatch = errors.New("cltu: code block parity mismatch")

	// ErrInvalidVersion indicates a packet or frame with an unexpected version field
	ErrInvalidVersion = errors.New("invalid version field")

	// ErrTruncatedPacket indicates a buffer shorter than its own length field claims
	ErrTruncatedPacket = errors.New("truncated packet")

	// ErrTruncatedFrame indicates a buffer too short to hold a frame primary header
	ErrTruncatedFrame = errors.New("truncated frame")

	// ErrTimeOutOfRange indicates a time code with an out-of-range sub-field
	ErrTimeOutOfRange = errors.New("time code field out of range")

	// ErrFieldOutOfRange indicates a builder argument outside its legal range.
	// It is always wrapped with the field name and offending value.
	ErrFieldOutOfRange = errors.New("field out of range")
)

// fieldRangeError wraps ErrFieldOutOfRange with the field name, value and legal maximum
func fieldRangeError(field string, value, max int) error {
	return fmt.Errorf("%w: %s=%d (max %d)", ErrFieldOutOfRange, field, value, max)
}
