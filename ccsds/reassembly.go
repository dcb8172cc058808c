package ccsds

import (
	"errors"
	"fmt"
)

// Reassembly errors
var (
	// ErrUnexpectedContinuation indicates a continuation or last segment with no first segment in progress
	ErrUnexpectedContinuation = errors.New("reassembly: continuation without a first segment")

	// ErrSequenceGap indicates segments whose sequence counts are not consecutive mod 16384
	ErrSequenceGap = errors.New("reassembly: sequence count gap")
)

// perApidState holds an in-progress segmented payload
type perApidState struct {
	buf     []byte
	lastSeq int
}

// A PacketAssembler reassembles segmented space packets per APID using the
// sequence flags: an unsegmented packet passes straight through, a first
// segment opens a buffer, continuations append, and a last segment closes
// and yields the accumulated payload.
//
// The assembler is the one stateful piece of this package.  It is not safe
// for concurrent use; give each ingest goroutine its own.
type PacketAssembler struct {
	inProgress map[int]*perApidState
}

// NewPacketAssembler returns an assembler with no reassembly in progress
func NewPacketAssembler() *PacketAssembler {
	return &PacketAssembler{inProgress: make(map[int]*perApidState)}
}

// Feed accepts the next packet for its APID stream.  When a complete payload
// is available (an unsegmented packet, or a last segment closing a sequence)
// it is returned with done=true.  Segments must arrive with consecutive
// sequence counts mod 16384; a gap or an out-of-place segment drops any
// partial payload for that APID and returns an error.
func (a *PacketAssembler) Feed(p Packet) ([]byte, bool, error) {
	if !IsValidPacket(p) {
		return nil, false, fmt.Errorf("%w: fed to assembler", ErrTruncatedPacket)
	}
	apid := p.APID()
	seq := p.SequenceCount()

	switch p.SequenceFlags() {
	case Unsegmented:
		// An unsegmented packet aborts any partial sequence on this APID
		delete(a.inProgress, apid)
		out := make([]byte, p.DataLength())
		copy(out, p.Data())
		return out, true, nil

	case SegmentFirst:
		st := &perApidState{lastSeq: seq}
		st.buf = append(st.buf, p.Data()...)
		a.inProgress[apid] = st
		return nil, false, nil

	case SegmentContinuation:
		st, ok := a.inProgress[apid]
		if !ok {
			return nil, false, fmt.Errorf("%w: apid=%d seq=%d", ErrUnexpectedContinuation, apid, seq)
		}
		if seq != (st.lastSeq+1)%(MaxSequenceCount+1) {
			delete(a.inProgress, apid)
			return nil, false, fmt.Errorf("%w: apid=%d expected=%d got=%d", ErrSequenceGap, apid, (st.lastSeq+1)%(MaxSequenceCount+1), seq)
		}
		st.buf = append(st.buf, p.Data()...)
		st.lastSeq = seq
		return nil, false, nil

	default: // SegmentLast
		st, ok := a.inProgress[apid]
		if !ok {
			return nil, false, fmt.Errorf("%w: apid=%d seq=%d", ErrUnexpectedContinuation, apid, seq)
		}
		if seq != (st.lastSeq+1)%(MaxSequenceCount+1) {
			delete(a.inProgress, apid)
			return nil, false, fmt.Errorf("%w: apid=%d expected=%d got=%d", ErrSequenceGap, apid, (st.lastSeq+1)%(MaxSequenceCount+1), seq)
		}
		delete(a.inProgress, apid)
		return append(st.buf, p.Data()...), true, nil
	}
}

// Pending reports whether a partial payload is buffered for the APID
func (a *PacketAssembler) Pending(apid int) bool {
	_, ok := a.inProgress[apid]
	return ok
}

// Reset drops all partial payloads
func (a *PacketAssembler) Reset() {
	a.inProgress = make(map[int]*perApidState)
}

// SegmentPayload splits an oversized payload into space packets of at most
// maxData data bytes each, assigning sequence flags and consecutive sequence
// counts starting at startSeq.  A payload that fits in one packet yields a
// single unsegmented packet.
func SegmentPayload(apid, startSeq, maxData int, payload []byte) ([]Packet, error) {
	if maxData < 1 || maxData > MaxPacketDataLength {
		return nil, fieldRangeError("maxData", maxData, MaxPacketDataLength)
	}
	if len(payload) == 0 {
		return nil, fieldRangeError("payloadLength", 0, MaxPacketDataLength)
	}

	if len(payload) <= maxData {
		p, err := BuildSpacePacketWithConfig(SpacePacketConfig{
			APID: apid, SequenceFlags: Unsegmented, SequenceCount: startSeq,
		}, payload)
		if err != nil {
			return nil, err
		}
		return []Packet{p}, nil
	}

	var packets []Packet
	seq := startSeq
	for off := 0; off < len(payload); off += maxData {
		end := off + maxData
		if end > len(payload) {
			end = len(payload)
		}
		flags := SegmentContinuation
		if off == 0 {
			flags = SegmentFirst
		} else if end == len(payload) {
			flags = SegmentLast
		}
		p, err := BuildSpacePacketWithConfig(SpacePacketConfig{
			APID: apid, SequenceFlags: flags, SequenceCount: seq,
		}, payload[off:end])
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
		seq = (seq + 1) % (MaxSequenceCount + 1)
	}
	return packets, nil
}
