package frame

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ironseam/sv2bridge/internal/noise"
)

// Mode is the FrameStream's current decoding mode.
type Mode int

const (
	ModeHandshake Mode = iota
	ModeTransport
)

// ErrUnexpectedHeader names a malformed stream header; kept distinct from
// the package-level ErrUnexpectedHeaderLength. Stream.Decode does not
// return it: a short header is reported as a *Need.
var ErrUnexpectedHeader = errors.New("frame: stream saw malformed header")

// Need signals that the stream could not emit a frame from the bytes
// buffered so far; Missing bytes must arrive before another Decode call can
// succeed.
type Need struct {
	Missing int
}

func (n *Need) Error() string { return fmt.Sprintf("frame: need %d more bytes", n.Missing) }

// Stream couples an internal byte buffer with frame decoding, transitioning
// from handshake mode to transport mode exactly once, at a frame boundary.
// It is single-producer/single-consumer: one goroutine
// feeds bytes via Push, the same one calls Decode to drain frames.
type Stream struct {
	buf       bytes.Buffer
	mode      Mode
	codec     *noise.NoiseCodec // nil in plain (non-Noise) transport
	handshake *noise.Sv2Handshake
	initiator bool
}

// NewPlainStream builds a Stream that never encrypts: it starts directly in
// transport mode with no Noise codec, for roles that speak raw Sv2 frames.
func NewPlainStream() *Stream {
	return &Stream{mode: ModeTransport}
}

// NewHandshakeStream builds a Stream that begins in handshake mode, reading
// raw HandShakeFrame payloads until the caller installs a transport codec
// via CompleteHandshake.
func NewHandshakeStream(hs *noise.Sv2Handshake, initiator bool) *Stream {
	return &Stream{mode: ModeHandshake, handshake: hs, initiator: initiator}
}

// Push appends newly-read bytes to the stream's internal buffer.
func (s *Stream) Push(b []byte) { s.buf.Write(b) }

// CompleteHandshake switches the stream into transport mode, installing the
// negotiated Noise codec (nil for a plain, unencrypted transport). The
// switch may only happen once and only at a frame boundary, which Decode
// enforces by construction: handshake mode is simply abandoned once the
// caller observes the final step's output.
func (s *Stream) CompleteHandshake(codec *noise.NoiseCodec) {
	s.codec = codec
	s.mode = ModeTransport
	s.handshake = nil
}

// DecodeHandshakeFrame reads exactly n bytes (the fixed length of the
// current handshake step) as an opaque HandShakeFrame. It returns a *Need
// error if fewer than n bytes are buffered.
func (s *Stream) DecodeHandshakeFrame(n int) (HandShakeFrame, error) {
	if s.mode != ModeHandshake {
		return HandShakeFrame{}, errors.New("frame: stream not in handshake mode")
	}
	avail := s.buf.Bytes()
	if len(avail) < n {
		return HandShakeFrame{}, &Need{Missing: n - len(avail)}
	}
	payload := make([]byte, n)
	copy(payload, avail[:n])
	s.buf.Next(n)
	return HandShakeFrame{Payload: payload}, nil
}

// Decode attempts to emit the next complete Sv2Frame from the buffered
// bytes. It returns a *Need error when more bytes must arrive first. When a
// Noise codec is installed, the payload is decrypted (a decryption failure
// is terminal for the connection and is returned as a plain error wrapping
// the codec's error, never as a *Need, so the caller can distinguish it
// from a mere "need more bytes" condition).
func (s *Stream) Decode() (Sv2Frame, error) {
	if s.mode != ModeTransport {
		return Sv2Frame{}, errors.New("frame: stream not in transport mode")
	}
	avail := s.buf.Bytes()
	if len(avail) < HeaderSize {
		return Sv2Frame{}, &Need{Missing: HeaderSize - len(avail)}
	}
	h, err := DecodeHeader(avail)
	if err != nil {
		return Sv2Frame{}, err
	}
	total := HeaderSize + int(h.MsgLength)
	if len(avail) < total {
		return Sv2Frame{}, &Need{Missing: total - len(avail)}
	}

	rawPayload := make([]byte, h.MsgLength)
	copy(rawPayload, avail[HeaderSize:total])
	s.buf.Next(total)

	payload := rawPayload
	if s.codec != nil {
		payload, err = s.codec.Decrypt(rawPayload)
		if err != nil {
			return Sv2Frame{}, fmt.Errorf("frame: decrypt failed (terminal): %w", err)
		}
	}
	return Sv2Frame{Header: h, Payload: payload}, nil
}

// Encode serializes a frame for the wire, encrypting its payload first if a
// Noise codec is installed.
func (s *Stream) Encode(f Sv2Frame) ([]byte, error) {
	payload := f.Payload
	if s.codec != nil {
		var err error
		payload, err = s.codec.Encrypt(payload)
		if err != nil {
			return nil, err
		}
		f = Sv2Frame{Header: Header{
			ExtensionType: f.Header.ExtensionType,
			ChannelMsg:    f.Header.ChannelMsg,
			MsgType:       f.Header.MsgType,
			MsgLength:     uint32(len(payload)),
		}, Payload: payload}
	}
	dst := make([]byte, f.GetSize())
	if _, err := f.Encode(dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// Mode reports the stream's current mode.
func (s *Stream) Mode() Mode { return s.mode }
