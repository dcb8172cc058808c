package ccsds

import (
	"bytes"
	"fmt"
)

// CLTU layout constants
const (
	// CLTUStartByte0 and CLTUStartByte1 form the 0xEB90 start sequence
	CLTUStartByte0 = 0xEB
	CLTUStartByte1 = 0x90

	// CLTUTailByte repeated CLTUTailLength times forms the tail sequence
	CLTUTailByte   = 0xC5
	CLTUTailLength = 7

	// CLTUFillByte pads the final code block's data out to CLTUBlockDataLength
	CLTUFillByte = 0x55

	// CLTUBlockDataLength is the number of data bytes per code block
	CLTUBlockDataLength = 7

	// CLTUBlockLength is the encoded code block size (data plus parity)
	CLTUBlockLength = 8

	// CLTUStartLength is the start sequence size
	CLTUStartLength = 2
)

// CodeBlockCount returns the number of code blocks needed to carry payloadLen bytes
func CodeBlockCount(payloadLen int) int {
	return (payloadLen + CLTUBlockDataLength - 1) / CLTUBlockDataLength
}

// CLTUSize returns the total encoded size of a CLTU carrying payloadLen bytes
func CLTUSize(payloadLen int) int {
	return CLTUStartLength + CodeBlockCount(payloadLen)*CLTUBlockLength + CLTUTailLength
}

// EncodeCLTU wraps a command frame (or any payload) in a command link
// transmission unit: start sequence, 8-byte code blocks of 7 data bytes plus
// one parity byte, then the tail sequence.  The final block's data is padded
// with fill bytes.
func EncodeCLTU(payload []byte) []byte {
	out := make([]byte, 0, CLTUSize(len(payload)))
	out = append(out, CLTUStartByte0, CLTUStartByte1)

	var block [CLTUBlockDataLength]byte
	for off := 0; off < len(payload); off += CLTUBlockDataLength {
		n := copy(block[:], payload[off:])
		for i := n; i < CLTUBlockDataLength; i++ {
			block[i] = CLTUFillByte
		}
		out = append(out, block[:]...)
		out = append(out, CodeBlockParity(block[:]))
	}

	for i := 0; i < CLTUTailLength; i++ {
		out = append(out, CLTUTailByte)
	}
	return out
}

// DecodeCLTU reverses EncodeCLTU when the original payload length is not
// known.  It rejects a unit without the exact start sequence
// (ErrInvalidStartSequence), without a tail of seven 0xC5 bytes at a code
// block boundary (ErrMissingTailSequence), or with any code block whose
// parity doesn't verify (ErrBlockParityMismatch).  Trailing bytes equal to
// the fill value are stripped heuristically, so a payload whose own last
// bytes are 0x55 comes back short; use DecodeCLTUPayload when the payload
// length is known.
func DecodeCLTU(cltu []byte) ([]byte, error) {
	payload, err := decodeCodeBlocks(cltu)
	if err != nil {
		return nil, err
	}

	// The final block carries at most 6 fill bytes
	stripped := 0
	for len(payload) > 0 && stripped < CLTUBlockDataLength-1 && payload[len(payload)-1] == CLTUFillByte {
		payload = payload[:len(payload)-1]
		stripped++
	}
	return payload, nil
}

// DecodeCLTUPayload reverses EncodeCLTU exactly for a known payload length:
// only the blockCount*7 - payloadLen pad bytes are removed, so payload bytes
// that happen to equal the fill value survive.  The unit must carry exactly
// the code blocks that payloadLen requires.
func DecodeCLTUPayload(cltu []byte, payloadLen int) ([]byte, error) {
	if payloadLen < 0 {
		return nil, fmt.Errorf("%w: payloadLength=%d", ErrFieldOutOfRange, payloadLen)
	}
	payload, err := decodeCodeBlocks(cltu)
	if err != nil {
		return nil, err
	}
	if CodeBlockCount(payloadLen)*CLTUBlockDataLength != len(payload) {
		return nil, fmt.Errorf("%w: %d code blocks cannot carry a %d byte payload",
			ErrMissingTailSequence, len(payload)/CLTUBlockDataLength, payloadLen)
	}
	return payload[:payloadLen], nil
}

// decodeCodeBlocks strips and validates the framing, returning the
// concatenated data bytes of every code block with the pad still attached
func decodeCodeBlocks(cltu []byte) ([]byte, error) {
	if len(cltu) < CLTUStartLength || cltu[0] != CLTUStartByte0 || cltu[1] != CLTUStartByte1 {
		return nil, ErrInvalidStartSequence
	}

	body := cltu[CLTUStartLength:]
	tail := bytes.Repeat([]byte{CLTUTailByte}, CLTUTailLength)
	if len(body) < CLTUTailLength || !bytes.Equal(body[len(body)-CLTUTailLength:], tail) {
		return nil, ErrMissingTailSequence
	}
	body = body[:len(body)-CLTUTailLength]
	if len(body)%CLTUBlockLength != 0 {
		return nil, ErrMissingTailSequence
	}

	payload := make([]byte, 0, (len(body)/CLTUBlockLength)*CLTUBlockDataLength)
	for off := 0; off < len(body); off += CLTUBlockLength {
		block := body[off : off+CLTUBlockLength]
		if !VerifyCodeBlock(block) {
			return nil, ErrBlockParityMismatch
		}
		payload = append(payload, block[:CLTUBlockDataLength]...)
	}
	return payload, nil
}
