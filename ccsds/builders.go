package ccsds

import "encoding/binary"

// TelemetryFrameBuilder assembles downlink transfer frames: primary header,
// data field, a 4-byte operational control field holding a CLCW, then the
// FECF.  Zero-value fields fall back to defaults where one exists.
type TelemetryFrameBuilder struct {
	SpacecraftID     int
	VirtualChannelID int
	FrameLength      int // defaults to DefaultFrameLength
	DataFieldStatus  uint16
}

// CommandFrameBuilder assembles uplink transfer frames: primary header, data
// field, FECF.  Command frames carry no OCF.
type CommandFrameBuilder struct {
	SpacecraftID     int
	VirtualChannelID int
	FrameLength      int // defaults to DefaultFrameLength
	DataFieldStatus  uint16
}

func validateFrameConfig(scid, vcid, frameCount, frameLength, trailerLength int) error {
	if scid < 0 || scid > MaxSpacecraftID {
		return fieldRangeError("spacecraftID", scid, MaxSpacecraftID)
	}
	if vcid < 0 || vcid > MaxVirtualChannelID {
		return fieldRangeError("virtualChannelID", vcid, MaxVirtualChannelID)
	}
	if frameCount < 0 || frameCount > MaxFrameCount {
		return fieldRangeError("frameCount", frameCount, MaxFrameCount)
	}
	// At least one data byte must fit
	min := PrimaryHeaderLength + trailerLength + 1
	if frameLength < min {
		return fieldRangeError("frameLength", frameLength, min)
	}
	return nil
}

// buildFrame lays out a fixed-size frame: header, payload left-justified in
// the data field (zero-padded or silently truncated), optional OCF, FECF.
func buildFrame(scid, vcid, frameCount int, status uint16, frameLength int, payload, ocf []byte) Frame {
	frame := make([]byte, frameLength)
	hdr := TransferFrameHeader{
		SpacecraftID:     scid,
		VirtualChannelID: vcid,
		OCFPresent:       ocf != nil,
		MasterCount:      frameCount >> 8,
		VirtualCount:     frameCount & 0xFF,
		DataFieldStatus:  status,
	}
	copy(frame, hdr.Bytes())

	dataEnd := frameLength - FECFLength
	if ocf != nil {
		dataEnd -= OCFLength
	}
	copy(frame[PrimaryHeaderLength:dataEnd], payload)
	if ocf != nil {
		copy(frame[dataEnd:], ocf)
	}

	crc := CRC16(frame[:frameLength-FECFLength])
	binary.BigEndian.PutUint16(frame[frameLength-FECFLength:], crc)
	return frame
}

// Build produces a complete telemetry frame carrying payload and the given
// CLCW in the OCF.  Out-of-range header fields and an undersized frame
// length fail before any buffer is allocated.  Payloads longer than the data
// field are silently truncated; callers are expected to pre-size.
func (b TelemetryFrameBuilder) Build(frameCount int, payload []byte, clcw CLCW) (Frame, error) {
	frameLength := b.FrameLength
	if frameLength == 0 {
		frameLength = DefaultFrameLength
	}
	if err := validateFrameConfig(b.SpacecraftID, b.VirtualChannelID, frameCount, frameLength, OCFLength+FECFLength); err != nil {
		return nil, err
	}
	return buildFrame(b.SpacecraftID, b.VirtualChannelID, frameCount, b.DataFieldStatus, frameLength, payload, clcw.Bytes()), nil
}

// Build produces a complete command frame carrying payload.  The data field
// status is forced to mark the frame as a command (bit 15).
func (b CommandFrameBuilder) Build(frameCount int, payload []byte) (Frame, error) {
	frameLength := b.FrameLength
	if frameLength == 0 {
		frameLength = DefaultFrameLength
	}
	if err := validateFrameConfig(b.SpacecraftID, b.VirtualChannelID, frameCount, frameLength, FECFLength); err != nil {
		return nil, err
	}
	status := b.DataFieldStatus | commandFrameFlag
	return buildFrame(b.SpacecraftID, b.VirtualChannelID, frameCount, status, frameLength, payload, nil), nil
}
