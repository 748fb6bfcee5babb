// Package wire implements the binary framing of the device protocol: the
// 8 byte header, little-endian payload packing derived from packet layouts,
// and base58 UIDs.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the size of the frame header in bytes.
const HeaderSize = 8

// MaxFrameSize is a header plus the largest payload.
const MaxFrameSize = HeaderSize + 64

// ErrorCode is the 2 bit status carried in responses.
type ErrorCode uint8

const (
	ErrorCodeOK                   ErrorCode = 0
	ErrorCodeInvalidParameter     ErrorCode = 1
	ErrorCodeFunctionNotSupported ErrorCode = 2
	ErrorCodeUnknown              ErrorCode = 3
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeOK:
		return "ok"
	case ErrorCodeInvalidParameter:
		return "invalid parameter"
	case ErrorCodeFunctionNotSupported:
		return "function not supported"
	}
	return "unknown error"
}

var ErrShortFrame = errors.New("frame shorter than header")

// Header is the frame header:
//
//	0-3: UID (uint32 LE)
//	4:   length of header plus payload
//	5:   function id
//	6:   sequence number << 4 | response expected << 3
//	7:   error code << 6
type Header struct {
	UID              uint32
	Length           uint8
	FunctionID       uint8
	Sequence         uint8
	ResponseExpected bool
	ErrorCode        ErrorCode
}

// MarshalBinary encodes the header into 8 bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	if h.Sequence > 15 {
		return nil, fmt.Errorf("sequence number %d does not fit 4 bits", h.Sequence)
	}
	if h.ErrorCode > 3 {
		return nil, fmt.Errorf("error code %d does not fit 2 bits", h.ErrorCode)
	}
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.UID)
	b[4] = h.Length
	b[5] = h.FunctionID
	b[6] = h.Sequence << 4
	if h.ResponseExpected {
		b[6] |= 1 << 3
	}
	b[7] = uint8(h.ErrorCode) << 6
	return b, nil
}

// UnmarshalBinary decodes the first 8 bytes of b.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return ErrShortFrame
	}
	h.UID = binary.LittleEndian.Uint32(b[0:4])
	h.Length = b[4]
	h.FunctionID = b[5]
	h.Sequence = (b[6] >> 4) & 0x0f
	h.ResponseExpected = (b[6]>>3)&0x01 != 0
	h.ErrorCode = ErrorCode((b[7] >> 6) & 0x03)
	return nil
}

// NewFrame prepends h to payload and fills in the length.
func NewFrame(h Header, payload []byte) ([]byte, error) {
	if len(payload) > MaxFrameSize-HeaderSize {
		return nil, fmt.Errorf("payload of %d bytes exceeds the frame limit", len(payload))
	}
	h.Length = uint8(HeaderSize + len(payload))
	b, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(b, payload...), nil
}

// SplitFrame parses the header of a complete frame and returns its payload.
func SplitFrame(frame []byte) (Header, []byte, error) {
	var h Header
	if err := h.UnmarshalBinary(frame); err != nil {
		return h, nil, err
	}
	if int(h.Length) != len(frame) {
		return h, nil, fmt.Errorf("frame length field %d does not match %d bytes", h.Length, len(frame))
	}
	return h, frame[HeaderSize:], nil
}
