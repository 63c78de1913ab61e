package noise

import (
	"errors"
	"time"
)

// CertValidityWindow is the default validity window for a responder's
// static-key certificate (364 days), matching the reference Sv2 handshake's
// 31,449,600-second constant.
const CertValidityWindow = 31449600 * time.Second

// Handshake-phase errors. Calling a step from the wrong role, or in the
// wrong phase, is a programming error surfaced to the caller rather than a
// wire error.
var (
	ErrInvalidStepForInitiator = errors.New("noise: invalid step for initiator")
	ErrInvalidStepForResponder = errors.New("noise: invalid step for responder")
	ErrNotInHandShakeState     = errors.New("noise: not in handshake state")
	ErrCertificateExpired      = errors.New("noise: certificate outside validity window")
	ErrInvalidCertificate      = errors.New("noise: malformed certificate payload")
)

// Step identifies one of the five handshake transitions.
type Step int

const (
	Step0 Step = iota // initiator: produce ephemeral key
	Step1             // responder: produce encrypted responder payload
	Step2             // initiator: produce cipher-list proposal
	Step3             // responder: choose cipher, build transport codec
	Step4             // initiator: accept chosen cipher, build transport codec

	stepDone Step = -1
)

// CertWireSize is the serialized certificate's fixed length: version (u16),
// valid_from (u32), not_valid_after (u32), signature (64 bytes). Carried as
// the responder's encrypted handshake payload, it is what brings the step-1
// message to its 170-byte wire length.
const CertWireSize = 2 + 4 + 4 + 64

// Certificate carries the responder's static-key signature together with
// the validity window the initiator must check it against.
type Certificate struct {
	Version   uint16
	ValidFrom time.Time
	ValidTo   time.Time
	Signature Signature
}

// Signature is the 64-byte signature over the responder's static key.
type Signature [64]byte

// CheckValidity verifies now falls within the certificate's window.
func (c Certificate) CheckValidity(now time.Time) error {
	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return ErrCertificateExpired
	}
	return nil
}

// encode serializes the certificate into its 74-byte little-endian wire
// form. Timestamps are truncated to unix seconds.
func (c Certificate) encode() []byte {
	out := make([]byte, CertWireSize)
	out[0] = byte(c.Version)
	out[1] = byte(c.Version >> 8)
	putUnixU32(out[2:6], c.ValidFrom)
	putUnixU32(out[6:10], c.ValidTo)
	copy(out[10:], c.Signature[:])
	return out
}

// decodeCertificate parses the 74-byte wire form.
func decodeCertificate(b []byte) (Certificate, error) {
	if len(b) != CertWireSize {
		return Certificate{}, ErrInvalidCertificate
	}
	var c Certificate
	c.Version = uint16(b[0]) | uint16(b[1])<<8
	c.ValidFrom = unixU32(b[2:6])
	c.ValidTo = unixU32(b[6:10])
	copy(c.Signature[:], b[10:])
	return c, nil
}

func putUnixU32(dst []byte, t time.Time) {
	s := uint32(t.Unix())
	dst[0] = byte(s)
	dst[1] = byte(s >> 8)
	dst[2] = byte(s >> 16)
	dst[3] = byte(s >> 24)
}

func unixU32(src []byte) time.Time {
	s := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
	return time.Unix(int64(s), 0)
}

// Sv2Handshake wraps the two-message Noise_NX core with the five-step API
// the Sv2 wire protocol expects: a cipher-suite negotiation layered on top
// of the completed Noise transport. Only one cipher suite
// (ChaChaPoly-SHA256, the one nxHandshake already implements) is
// supported, so steps 2-4 are a confirmation handshake rather than a real
// negotiation. The wire-visible step count is unchanged; the actual
// cryptography is exactly Noise_NX.
type Sv2Handshake struct {
	core *nxHandshake
	step Step
}

// NewInitiatorSv2Handshake starts an initiator-side five-step handshake.
func NewInitiatorSv2Handshake() (*Sv2Handshake, error) {
	core, err := newInitiatorCore()
	if err != nil {
		return nil, err
	}
	return &Sv2Handshake{core: core, step: Step0}, nil
}

// NewResponderSv2Handshake starts a responder-side five-step handshake.
func NewResponderSv2Handshake(staticKey *DHKeyPair) (*Sv2Handshake, error) {
	core, err := newResponderCore(staticKey)
	if err != nil {
		return nil, err
	}
	return &Sv2Handshake{core: core, step: Step0}, nil
}

// Step0 (initiator): emit the 32-byte ephemeral public key message (-> e).
func (h *Sv2Handshake) Step0() ([]byte, error) {
	if !h.core.initiator {
		return nil, ErrInvalidStepForInitiator
	}
	if h.step != Step0 {
		return nil, ErrNotInHandShakeState
	}
	msg, err := h.core.writeE(nil)
	if err != nil {
		return nil, err
	}
	h.step = Step2
	return msg, nil
}

// Step1 (responder): consume the initiator's ephemeral key and produce the
// 170-byte encrypted responder payload (<- e, ee, s, es) carrying the
// serialized certificate. now is used to validate cert's window before
// sending; the component itself carries no clock.
func (h *Sv2Handshake) Step1(initiatorMsg []byte, now time.Time, cert Certificate) ([]byte, error) {
	if h.core.initiator {
		return nil, ErrInvalidStepForResponder
	}
	if h.step != Step0 {
		return nil, ErrNotInHandShakeState
	}
	if err := cert.CheckValidity(now); err != nil {
		return nil, err
	}
	if _, err := h.core.readE(initiatorMsg); err != nil {
		return nil, err
	}
	msg, err := h.core.writeEESES(cert.encode())
	if err != nil {
		return nil, err
	}
	h.step = Step3
	return msg, nil
}

// Step2 (initiator): consume the responder payload, validate the
// certificate it carries against the supplied clock, and emit a cipher-list
// proposal. Since only one cipher is supported, the proposal is a
// single-element list naming it.
func (h *Sv2Handshake) Step2(responderMsg []byte, now time.Time) ([]byte, error) {
	if !h.core.initiator {
		return nil, ErrInvalidStepForInitiator
	}
	if h.step != Step2 {
		return nil, ErrNotInHandShakeState
	}
	payload, err := h.core.readEESES(responderMsg)
	if err != nil {
		return nil, err
	}
	cert, err := decodeCertificate(payload)
	if err != nil {
		return nil, err
	}
	if err := cert.CheckValidity(now); err != nil {
		return nil, err
	}
	h.step = Step4
	return []byte(ProtocolName), nil
}

// Step3 (responder): receive the cipher-list proposal, choose a cipher
// (the only one available), and build the transport codec.
func (h *Sv2Handshake) Step3(cipherList []byte) (*NoiseCodec, error) {
	if h.core.initiator {
		return nil, ErrInvalidStepForResponder
	}
	if h.step != Step3 {
		return nil, ErrNotInHandShakeState
	}
	if string(cipherList) != ProtocolName {
		return nil, ErrHandshakeFailed
	}
	send, recv, err := h.core.transportKeys()
	if err != nil {
		return nil, err
	}
	h.step = stepDone
	return newNoiseCodec(send, recv), nil
}

// Step4 (initiator): accept the chosen cipher and build the transport
// codec.
func (h *Sv2Handshake) Step4(chosenCipher []byte) (*NoiseCodec, error) {
	if !h.core.initiator {
		return nil, ErrInvalidStepForInitiator
	}
	if h.step != Step4 {
		return nil, ErrNotInHandShakeState
	}
	if string(chosenCipher) != ProtocolName {
		return nil, ErrHandshakeFailed
	}
	send, recv, err := h.core.transportKeys()
	if err != nil {
		return nil, err
	}
	h.step = stepDone
	return newNoiseCodec(send, recv), nil
}

// NoiseCodec offers the post-handshake AEAD encrypt/decrypt pair both
// sides use once Step3/Step4 complete.
type NoiseCodec struct {
	channel *transportCipher
}

func newNoiseCodec(send, recv *aeadState) *NoiseCodec {
	return &NoiseCodec{channel: newTransportCipher(send, recv)}
}

// Encrypt AEAD-seals buf's contents into a fresh slice.
func (c *NoiseCodec) Encrypt(buf []byte) ([]byte, error) { return c.channel.seal(buf) }

// Decrypt opens an AEAD-sealed buffer. Authentication failure is terminal
// for the connection.
func (c *NoiseCodec) Decrypt(buf []byte) ([]byte, error) { return c.channel.open(buf) }
