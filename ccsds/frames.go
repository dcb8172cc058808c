package ccsds

import "encoding/binary"

// DefaultFrameLength is the transfer frame size used when a builder isn't
// configured otherwise
const DefaultFrameLength = 1115

// PrimaryHeaderLength is the transfer frame primary header size
const PrimaryHeaderLength = 6

// OCFLength is the operational control field size (holds a CLCW)
const OCFLength = 4

// FECFLength is the frame error control field size (CRC-16)
const FECFLength = 2

// MaxSpacecraftID is the largest encodable spacecraft id (10 bits)
const MaxSpacecraftID = 1023

// MaxVirtualChannelID is the largest encodable virtual channel id (3 bits)
const MaxVirtualChannelID = 7

// MaxFrameCount is the largest combined master/virtual channel frame count (16 bits)
const MaxFrameCount = 65535

// commandFrameFlag is bit 15 of the data field status word.  Using it as the
// command/telemetry discriminator is a convention of this system, not a CCSDS
// rule; peers on this link set it the same way.
const commandFrameFlag = 0x8000

// TransferFrameHeader is the decoded 6-byte primary header shared by
// telemetry and command transfer frames.  It is immutable once parsed.
type TransferFrameHeader struct {
	Version          int // 2 bits, always 0
	SpacecraftID     int // 10 bits
	VirtualChannelID int // 3 bits
	OCFPresent       bool
	MasterCount      int // 8 bits
	VirtualCount     int // 8 bits
	DataFieldStatus  uint16
}

// FrameCount returns the combined 16-bit rolling frame count
func (h TransferFrameHeader) FrameCount() int {
	return h.MasterCount<<8 | h.VirtualCount
}

// IsCommandFrame reports whether the data field status marks this as a
// command frame (bit 15, a local convention)
func (h TransferFrameHeader) IsCommandFrame() bool {
	return h.DataFieldStatus&commandFrameFlag != 0
}

// IsTelemetryFrame is the complement of IsCommandFrame
func (h TransferFrameHeader) IsTelemetryFrame() bool {
	return !h.IsCommandFrame()
}

// Bytes encodes the header back into its 6-byte wire form
func (h TransferFrameHeader) Bytes() []byte {
	out := make([]byte, PrimaryHeaderLength)
	word0 := uint16(h.Version&0x3)<<14 | uint16(h.SpacecraftID&0x3FF)<<4 | uint16(h.VirtualChannelID&0x7)<<1
	if h.OCFPresent {
		word0 |= 1
	}
	binary.BigEndian.PutUint16(out[0:2], word0)
	out[2] = byte(h.MasterCount)
	out[3] = byte(h.VirtualCount)
	binary.BigEndian.PutUint16(out[4:6], h.DataFieldStatus)
	return out
}

// ParseFrameHeader decodes the primary header from the first 6 bytes of a frame
func ParseFrameHeader(frame []byte) (TransferFrameHeader, error) {
	if len(frame) < PrimaryHeaderLength {
		return TransferFrameHeader{}, ErrTruncatedFrame
	}
	word0 := binary.BigEndian.Uint16(frame[0:2])
	return TransferFrameHeader{
		Version:          int(word0 >> 14),
		SpacecraftID:     int(word0>>4) & 0x3FF,
		VirtualChannelID: int(word0>>1) & 0x7,
		OCFPresent:       word0&1 != 0,
		MasterCount:      int(frame[2]),
		VirtualCount:     int(frame[3]),
		DataFieldStatus:  binary.BigEndian.Uint16(frame[4:6]),
	}, nil
}

// IsValidFrame reports whether the buffer is at least large enough to hold a
// primary header and FECF.  It never fails with an error; use it to filter.
func IsValidFrame(frame []byte) bool {
	return len(frame) >= PrimaryHeaderLength+FECFLength
}

// ExtractSpacecraftID reads the spacecraft id without building a header
func ExtractSpacecraftID(frame []byte) int {
	return (int(frame[0]&0x3F) << 4) | int(frame[1]>>4)
}

// ExtractVirtualChannelID reads the virtual channel id without building a header
func ExtractVirtualChannelID(frame []byte) int {
	return int(frame[1]>>1) & 0x7
}

// ExtractFrameCount reads the combined 16-bit frame count without building a header
func ExtractFrameCount(frame []byte) int {
	return int(frame[2])<<8 | int(frame[3])
}

// A Frame is a complete transfer frame as a byte slice.  The methods read
// header fields in place without allocation.
type Frame []byte

// SpacecraftID returns the spacecraft id field (10 bits)
func (frame Frame) SpacecraftID() int {
	return ExtractSpacecraftID(frame)
}

// VirtualChannel returns the virtual channel number [0-7]
func (frame Frame) VirtualChannel() int {
	return ExtractVirtualChannelID(frame)
}

// FrameCount returns the combined frame count (wraps at 2^16)
func (frame Frame) FrameCount() int {
	return ExtractFrameCount(frame)
}

// HasOCF reports whether the header flags an operational control field
func (frame Frame) HasOCF() bool {
	return frame[1]&1 != 0
}

// DataField returns the frame's data field given the total frame layout.
// The trailer is the FECF plus the OCF when present.
func (frame Frame) DataField() []byte {
	end := len(frame) - FECFLength
	if frame.HasOCF() {
		end -= OCFLength
	}
	return frame[PrimaryHeaderLength:end]
}

// OCF returns the 4-byte operational control field, or nil when absent
func (frame Frame) OCF() []byte {
	if !frame.HasOCF() {
		return nil
	}
	return frame[len(frame)-FECFLength-OCFLength : len(frame)-FECFLength]
}

// VerifyFECF checks the trailing CRC-16 against the rest of the frame
func (frame Frame) VerifyFECF() bool {
	return VerifyTrailingCRC16(frame)
}
