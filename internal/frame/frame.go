// Package frame implements the Sv2 frame layer: the 6-byte frame header,
// the plain Sv2Frame and opaque HandShakeFrame variants, and the
// size-hinting contract that lets a byte stream be decoded incrementally.
package frame

import (
	"encoding/binary"
	"fmt"

	sv2binary "github.com/ironseam/sv2bridge/internal/binary"
)

// HeaderSize is the fixed size of a frame header in bytes.
const HeaderSize = 6

// channelMsgBit is the high bit of extension_type.
const channelMsgBit = uint16(1) << 15

// Header is the 6-byte frame header: extension_type (u16 LE, MSB is the
// channel_msg flag), msg_type (u8), msg_length (u24 LE).
type Header struct {
	ExtensionType uint16
	ChannelMsg    bool
	MsgType       uint8
	MsgLength     uint32
}

// Encode writes the header to dst, which must be at least HeaderSize bytes.
func (h Header) Encode(dst []byte) (int, error) {
	if len(dst) < HeaderSize {
		return 0, &sv2binary.WriteErr{Expected: HeaderSize, Actual: len(dst)}
	}
	ext := h.ExtensionType &^ channelMsgBit
	if h.ChannelMsg {
		ext |= channelMsgBit
	}
	binary.LittleEndian.PutUint16(dst[0:2], ext)
	dst[2] = h.MsgType
	if _, err := sv2binary.EncodeU24(h.MsgLength, dst[3:6]); err != nil {
		return 0, err
	}
	return HeaderSize, nil
}

// DecodeHeader parses a 6-byte frame header.
func DecodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, &sv2binary.OutOfBoundErr{Wanted: HeaderSize, Got: len(src)}
	}
	ext := binary.LittleEndian.Uint16(src[0:2])
	msgLen, _, err := sv2binary.DecodeU24(src[3:6])
	if err != nil {
		return Header{}, err
	}
	return Header{
		ExtensionType: ext &^ channelMsgBit,
		ChannelMsg:    ext&channelMsgBit != 0,
		MsgType:       src[2],
		MsgLength:     msgLen,
	}, nil
}

// ErrUnexpectedHeaderLength names a header buffer that is not exactly
// HeaderSize bytes. DecodeHeader does not return it: a short buffer is
// reported as an OutOfBoundErr.
var ErrUnexpectedHeaderLength = fmt.Errorf("frame: unexpected header length, want %d", HeaderSize)

// Sv2Frame is a complete plain (post-handshake or pre-Noise) frame: a
// header plus a payload whose length equals header.MsgLength. Payload may
// be the raw undecoded bytes (cheap path, e.g. when relaying) or may have
// already been handed to a protocol decoder by the caller.
type Sv2Frame struct {
	Header  Header
	Payload []byte
}

// NewSv2Frame builds a frame from a message type and an already-encoded
// payload.
func NewSv2Frame(extensionType uint16, channelMsg bool, msgType uint8, payload []byte) Sv2Frame {
	return Sv2Frame{
		Header: Header{
			ExtensionType: extensionType,
			ChannelMsg:    channelMsg,
			MsgType:       msgType,
			MsgLength:     uint32(len(payload)),
		},
		Payload: payload,
	}
}

// GetSize returns the total wire size of the frame (header + payload).
func (f Sv2Frame) GetSize() int { return HeaderSize + len(f.Payload) }

// Encode writes header followed by payload into dst.
func (f Sv2Frame) Encode(dst []byte) (int, error) {
	size := f.GetSize()
	if len(dst) < size {
		return 0, &sv2binary.WriteErr{Expected: size, Actual: len(dst)}
	}
	n, err := f.Header.Encode(dst)
	if err != nil {
		return 0, err
	}
	copy(dst[n:size], f.Payload)
	return size, nil
}

// SizeHint inspects buf (which need not be complete) and reports the frame
// layer's three-valued signal:
//
//   - if len(buf) < HeaderSize: returns (HeaderSize-len(buf), false, nil) —
//     that many more bytes are needed just to read the header.
//   - else, having read msg_length: returns (delta, true, nil) where delta
//     is 0 when the frame is exactly complete, negative when buf has that
//     many bytes too few, and positive when buf holds that many bytes past
//     the end of this frame (a second frame may already be present).
func SizeHint(buf []byte) (delta int, headerRead bool, err error) {
	if len(buf) < HeaderSize {
		return HeaderSize - len(buf), false, nil
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return 0, false, err
	}
	total := HeaderSize + int(h.MsgLength)
	return len(buf) - total, true, nil
}

// DecodeSv2Frame consumes exactly one complete frame from the front of buf
// and returns it along with the number of bytes consumed. It requires
// SizeHint(buf) to indicate completeness (delta >= 0); callers should check
// that first when streaming.
func DecodeSv2Frame(buf []byte) (Sv2Frame, int, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Sv2Frame{}, 0, err
	}
	total := HeaderSize + int(h.MsgLength)
	if len(buf) < total {
		return Sv2Frame{}, 0, &sv2binary.OutOfBoundErr{Wanted: total, Got: len(buf)}
	}
	payload := make([]byte, h.MsgLength)
	copy(payload, buf[HeaderSize:total])
	return Sv2Frame{Header: h, Payload: payload}, total, nil
}

// HandShakeFrame is an opaque byte buffer exchanged during the Noise
// handshake. It carries no header; its length is implied entirely by the
// current handshake step.
type HandShakeFrame struct {
	Payload []byte
}

func (f HandShakeFrame) GetSize() int { return len(f.Payload) }

func (f HandShakeFrame) Encode(dst []byte) (int, error) {
	if len(dst) < len(f.Payload) {
		return 0, &sv2binary.WriteErr{Expected: len(f.Payload), Actual: len(dst)}
	}
	copy(dst, f.Payload)
	return len(f.Payload), nil
}

// HandshakeStepLen returns the fixed wire length of the given handshake
// step number (0-indexed, matching noise.Step), or ok=false for the
// variable-length steps (2 and 3). Their payloads carry no length prefix
// (the cipher list is the bare protocol-name bytes), so the caller supplies
// their length.
func HandshakeStepLen(step int) (n int, ok bool) {
	switch step {
	case 0:
		return 32, true
	case 1:
		return 170, true
	default:
		return 0, false
	}
}
