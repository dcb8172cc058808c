package ccsds

import "encoding/binary"

// CLCW is the 32-bit communications link control word carried in a telemetry
// frame's operational control field.  It reports command-link status back to
// the uplink originator.  Decoded values are immutable.
//
// Bit layout, MSB first:
//
//	bit 31     control word type
//	bits 29-30 version
//	bits 26-28 status field (0 = nominal)
//	bits 24-25 COP in effect
//	bits 18-23 virtual channel id
//	bit 15     no RF available
//	bit 14     no bit lock
//	bit 13     lockout
//	bit 12     wait
//	bit 11     retransmit
//	bits 9-10  FARM-B counter
//	bits 0-7   report value (last acknowledged command frame count)
type CLCW struct {
	ControlWordType  int // 1 bit
	Version          int // 2 bits
	Status           int // 3 bits
	COPInEffect      int // 2 bits
	VirtualChannelID int // 6 bits
	NoRFAvailable    bool
	NoBitLock        bool
	Lockout          bool
	Wait             bool
	Retransmit       bool
	FARMBCounter     int // 2 bits
	ReportValue      int // 8 bits
}

// MaxCLCWVirtualChannelID is the largest virtual channel id a CLCW can carry (6 bits)
const MaxCLCWVirtualChannelID = 63

// MaxCLCWReportValue is the largest report value (8 bits)
const MaxCLCWReportValue = 255

// IsNominal reports whether the status field is zero and none of the link
// status flags are raised
func (c CLCW) IsNominal() bool {
	return c.Status == 0 && !c.NoRFAvailable && !c.NoBitLock && !c.Lockout && !c.Wait && !c.Retransmit
}

// Encode packs every field into the 32-bit wire word
func (c CLCW) Encode() uint32 {
	var w uint32
	w |= uint32(c.ControlWordType&0x1) << 31
	w |= uint32(c.Version&0x3) << 29
	w |= uint32(c.Status&0x7) << 26
	w |= uint32(c.COPInEffect&0x3) << 24
	w |= uint32(c.VirtualChannelID&0x3F) << 18
	if c.NoRFAvailable {
		w |= 1 << 15
	}
	if c.NoBitLock {
		w |= 1 << 14
	}
	if c.Lockout {
		w |= 1 << 13
	}
	if c.Wait {
		w |= 1 << 12
	}
	if c.Retransmit {
		w |= 1 << 11
	}
	w |= uint32(c.FARMBCounter&0x3) << 9
	w |= uint32(c.ReportValue & 0xFF)
	return w
}

// Bytes returns the word in big-endian wire order, sized for an OCF
func (c CLCW) Bytes() []byte {
	out := make([]byte, OCFLength)
	binary.BigEndian.PutUint32(out, c.Encode())
	return out
}

// EncodeCLCW builds a nominal CLCW word from a virtual channel id and report
// value, every other field zero
func EncodeCLCW(vcid, reportValue int) (uint32, error) {
	if vcid < 0 || vcid > MaxCLCWVirtualChannelID {
		return 0, fieldRangeError("vcid", vcid, MaxCLCWVirtualChannelID)
	}
	if reportValue < 0 || reportValue > MaxCLCWReportValue {
		return 0, fieldRangeError("reportValue", reportValue, MaxCLCWReportValue)
	}
	return CLCW{VirtualChannelID: vcid, ReportValue: reportValue}.Encode(), nil
}

// DecodeCLCW unpacks a 32-bit wire word into its fields
func DecodeCLCW(w uint32) CLCW {
	return CLCW{
		ControlWordType:  int(w>>31) & 0x1,
		Version:          int(w>>29) & 0x3,
		Status:           int(w>>26) & 0x7,
		COPInEffect:      int(w>>24) & 0x3,
		VirtualChannelID: int(w>>18) & 0x3F,
		NoRFAvailable:    w&(1<<15) != 0,
		NoBitLock:        w&(1<<14) != 0,
		Lockout:          w&(1<<13) != 0,
		Wait:             w&(1<<12) != 0,
		Retransmit:       w&(1<<11) != 0,
		FARMBCounter:     int(w>>9) & 0x3,
		ReportValue:      int(w) & 0xFF,
	}
}

// ParseCLCW decodes a CLCW from 4 big-endian bytes, typically a frame's OCF
func ParseCLCW(p []byte) (CLCW, error) {
	if len(p) < OCFLength {
		return CLCW{}, ErrTruncatedFrame
	}
	return DecodeCLCW(binary.BigEndian.Uint32(p)), nil
}
