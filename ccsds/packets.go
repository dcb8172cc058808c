package ccsds

import (
	"fmt"
	"io"
	"os"
)

// Space packet limits fixed by the 6-byte primary header layout
const (
	// PacketHeaderLength is the space packet primary header size
	PacketHeaderLength = 6

	// MaxAPID is the largest application process id (11 bits)
	MaxAPID = 2047

	// MaxSequenceCount is the largest packet sequence count (14 bits)
	MaxSequenceCount = 16383

	// MaxPacketDataLength is the largest data field (the length field stores length-1 in 16 bits)
	MaxPacketDataLength = 65536
)

// Sequence flag values selecting a packet's segmentation role
const (
	SegmentContinuation = 0
	SegmentFirst        = 1
	SegmentLast         = 2
	Unsegmented         = 3
)

// A Packet is a byte slice holding a space packet.  The methods read header
// fields in place without allocation, for cheap routing and filtering before
// committing to a full parse.
type Packet []byte

// Version returns the packet version number (3 bits, always 0 on this link)
func (packet Packet) Version() int {
	return int(packet[0] >> 5)
}

// APID returns the CCSDS application ID from the header of a packet
func (packet Packet) APID() int {
	return (int(0x7&packet[0]) << 8) + int(packet[1])
}

// IsTelecommand reports the packet type bit (1 = telecommand, 0 = telemetry)
func (packet Packet) IsTelecommand() bool {
	return packet[0]&0x10 != 0
}

// HasSecondaryHeader reports the secondary header flag.  The secondary
// header itself is caller-managed content inside the data field.
func (packet Packet) HasSecondaryHeader() bool {
	return packet[0]&0x08 != 0
}

// SequenceFlags returns the 2-bit segmentation role
func (packet Packet) SequenceFlags() int {
	return int(packet[2] >> 6)
}

// SequenceCount returns the CCSDS packet sequence counter from the header of a Packet
func (packet Packet) SequenceCount() int {
	return (0x3FFF & (int(packet[2]) << 8)) | int(packet[3])
}

// Length returns the CCSDS packet length field from the header of a Packet.
// This is the data field length - 1, or the total packet length - 7.
func (packet Packet) Length() int {
	return (int(packet[4]) << 8) + int(packet[5])
}

// DataLength returns the actual data field length
func (packet Packet) DataLength() int {
	return packet.Length() + 1
}

// TotalLength returns the full packet size including the header
func (packet Packet) TotalLength() int {
	return packet.Length() + 7
}

// Data returns the packet's data field.  The slice aliases the packet; use
// ParseSpacePacket for an owned copy.
func (packet Packet) Data() []byte {
	return packet[PacketHeaderLength : PacketHeaderLength+packet.DataLength()]
}

// ExtractAPID reads the APID from a raw buffer without full parsing
func ExtractAPID(p []byte) int {
	return Packet(p).APID()
}

// ExtractSequenceCount reads the sequence count from a raw buffer without full parsing
func ExtractSequenceCount(p []byte) int {
	return Packet(p).SequenceCount()
}

// IsValidPacket reports whether the buffer holds a structurally complete
// space packet: version 0 and enough bytes for the declared data length.  It
// never fails with an error; use it to filter.
func IsValidPacket(p []byte) bool {
	if len(p) < PacketHeaderLength {
		return false
	}
	pkt := Packet(p)
	return pkt.Version() == 0 && len(p) >= PacketHeaderLength+pkt.DataLength()
}

// SpacePacketConfig carries the builder inputs for a space packet header
type SpacePacketConfig struct {
	APID               int
	IsTelecommand      bool
	HasSecondaryHeader bool
	SequenceFlags      int // defaults to Unsegmented when left zero-valued via BuildSpacePacket
	SequenceCount      int
}

// BuildSpacePacket assembles an unsegmented space packet, the common case
func BuildSpacePacket(apid, sequenceCount int, data []byte) (Packet, error) {
	return BuildSpacePacketWithConfig(SpacePacketConfig{
		APID:          apid,
		SequenceFlags: Unsegmented,
		SequenceCount: sequenceCount,
	}, data)
}

// BuildSpacePacketWithConfig assembles a space packet with full header
// control.  Arguments are validated before the buffer is allocated.
func BuildSpacePacketWithConfig(cfg SpacePacketConfig, data []byte) (Packet, error) {
	if cfg.APID < 0 || cfg.APID > MaxAPID {
		return nil, fieldRangeError("apid", cfg.APID, MaxAPID)
	}
	if cfg.SequenceCount < 0 || cfg.SequenceCount > MaxSequenceCount {
		return nil, fieldRangeError("sequenceCount", cfg.SequenceCount, MaxSequenceCount)
	}
	if cfg.SequenceFlags < 0 || cfg.SequenceFlags > 3 {
		return nil, fieldRangeError("sequenceFlags", cfg.SequenceFlags, 3)
	}
	if len(data) < 1 || len(data) > MaxPacketDataLength {
		return nil, fieldRangeError("dataLength", len(data), MaxPacketDataLength)
	}

	packet := make(Packet, PacketHeaderLength+len(data))
	packet[0] = byte(cfg.APID >> 8 & 0x7)
	if cfg.IsTelecommand {
		packet[0] |= 0x10
	}
	if cfg.HasSecondaryHeader {
		packet[0] |= 0x08
	}
	packet[1] = byte(cfg.APID)
	packet[2] = byte(cfg.SequenceFlags<<6) | byte(cfg.SequenceCount>>8&0x3F)
	packet[3] = byte(cfg.SequenceCount)
	lengthField := len(data) - 1
	packet[4] = byte(lengthField >> 8)
	packet[5] = byte(lengthField)
	copy(packet[PacketHeaderLength:], data)
	return packet, nil
}

// SpacePacket is a fully parsed packet.  The data field is an owned copy, so
// the value stays valid after the source buffer is reused.
type SpacePacket struct {
	APID               int
	IsTelecommand      bool
	HasSecondaryHeader bool
	SequenceFlags      int
	SequenceCount      int

	data []byte
}

// Data returns a copy of the packet's data field
func (p SpacePacket) Data() []byte {
	out := make([]byte, len(p.data))
	copy(out, p.data)
	return out
}

// DataLength returns the data field size without copying
func (p SpacePacket) DataLength() int {
	return len(p.data)
}

// ParseSpacePacket validates and decodes a space packet, copying the data
// field out of the source buffer.  A nonzero version fails with
// ErrInvalidVersion; a buffer shorter than the declared length fails with
// ErrTruncatedPacket.
func ParseSpacePacket(p []byte) (SpacePacket, error) {
	if len(p) < PacketHeaderLength {
		return SpacePacket{}, fmt.Errorf("%w: %d bytes is too short for a packet header", ErrTruncatedPacket, len(p))
	}
	pkt := Packet(p)
	if pkt.Version() != 0 {
		return SpacePacket{}, fmt.Errorf("%w: packet version %d", ErrInvalidVersion, pkt.Version())
	}
	dataLength := pkt.DataLength()
	if len(p) < PacketHeaderLength+dataLength {
		return SpacePacket{}, fmt.Errorf("%w: header declares %d data bytes, buffer holds %d",
			ErrTruncatedPacket, dataLength, len(p)-PacketHeaderLength)
	}

	data := make([]byte, dataLength)
	copy(data, p[PacketHeaderLength:])
	return SpacePacket{
		APID:               pkt.APID(),
		IsTelecommand:      pkt.IsTelecommand(),
		HasSecondaryHeader: pkt.HasSecondaryHeader(),
		SequenceFlags:      pkt.SequenceFlags(),
		SequenceCount:      pkt.SequenceCount(),
		data:               data,
	}, nil
}

// ReadPacketsCallback reads from a byte stream, identifies CCSDS packet boundaries and passes each packet to a callback
func ReadPacketsCallback(stream io.Reader, callback func(p *Packet)) error {
	return readPacketsInner(stream, make(Packet, MaxPacketDataLength+PacketHeaderLength), callback)
}

// ReadPacketsChannel reads from a byte stream, identifies CCSDS packet boundaries and passes each packet to a channel
func ReadPacketsChannel(stream io.Reader, channel chan *Packet) error {
	return readPacketsInner(stream, make(Packet, MaxPacketDataLength+PacketHeaderLength), func(p *Packet) { channel <- p })
}

func readPacketsInner(stream io.Reader, pktbuf Packet, callback func(p *Packet)) error {
	pktptr, err, totalBytesRead := 0, error(nil), 0
	for err == nil {
		// Read packet header
		pktptr = 0
		toread := PacketHeaderLength
		for toread > 0 {
			// Account for bytes delivered alongside io.EOF
			bytesRead, err := stream.Read(pktbuf[pktptr : pktptr+toread])
			toread = toread - bytesRead
			pktptr = pktptr + bytesRead
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}

		if toread == PacketHeaderLength {
			// Clean EOF on a packet boundary
			return nil
		}
		if toread > 0 {
			return fmt.Errorf("stream ends with partial packet in the header")
		}

		// Read the packet body
		toread = pktbuf.DataLength()
		packetLength := toread + PacketHeaderLength
		for toread > 0 {
			bytesRead, err := stream.Read(pktbuf[pktptr : pktptr+toread])
			toread = toread - bytesRead
			pktptr = pktptr + bytesRead
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}

		if toread > 0 {
			return fmt.Errorf("stream ends with partial packet in the packet body.  Packet length was %d.  Total bytes read was %d", packetLength, totalBytesRead+(packetLength-toread))
		}

		// Do the callback
		callback(&pktbuf)

		totalBytesRead = totalBytesRead + packetLength
	}
	return nil
}

// A PacketIterator generates a sequence of packets, calling a function on each
type PacketIterator interface {
	Iterate(f func(p *Packet)) error
}

// PacketFile a binary file containing a sequence of CCSDS packets without any headers.
// It implements PacketIterator
type PacketFile struct {
	Filename string
}

// Iterate reads a packet file, splits into packets and passes each packet to a callback.
// This creates and reuses a byte slice for all packets.  If the callback needs to pass the packet
// to something else, it needs to copy it
func (source PacketFile) Iterate(callback func(p *Packet)) error {
	file, err := os.Open(source.Filename)
	if err != nil {
		return err
	}
	defer file.Close()

	err = readPacketsInner(file, make(Packet, MaxPacketDataLength+PacketHeaderLength), callback)
	if err != nil {
		return fmt.Errorf("%s: filename=%s", err.Error(), source.Filename)
	}
	return nil
}
