package noise

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// ProtocolName is the Noise protocol name Sv2 negotiates: Noise_NX over
// X25519, ChaCha20-Poly1305 AEAD, SHA-256 hashing.
const ProtocolName = "Noise_NX_25519_ChaChaPoly_SHA256"

const (
	DHKeySize  = 32 // X25519 key size
	SymKeySize = 32 // ChaCha20-Poly1305 key size
	NonceSize  = 12 // AEAD nonce size
	TagSize    = 16 // Poly1305 tag size
	MaxNonce   = ^uint64(0) - 1
)

var (
	ErrInvalidKeySize   = errors.New("noise: invalid key size")
	ErrHandshakeFailed  = errors.New("noise: handshake failed")
	ErrInvalidMessage   = errors.New("noise: invalid handshake message")
	ErrNonceOverflow    = errors.New("noise: nonce overflow, rekey required")
	ErrDecryptionFailed = errors.New("noise: decryption failed")
	ErrNotEstablished   = errors.New("noise: transport keys not derived yet")
	ErrInvalidPublicKey = errors.New("noise: peer produced an invalid (low-order) public key")
)

// DHKeyPair is an X25519 key pair: the translator's ephemeral keys and the
// pool's long-lived static key are both represented this way.
type DHKeyPair struct {
	Private [DHKeySize]byte
	Public  [DHKeySize]byte
}

// GenerateDHKeyPair draws a fresh, correctly-clamped X25519 key pair.
func GenerateDHKeyPair() (*DHKeyPair, error) {
	kp := &DHKeyPair{}
	if _, err := io.ReadFull(rand.Reader, kp.Private[:]); err != nil {
		return nil, err
	}
	kp.Private[0] &= 248
	kp.Private[31] &= 127
	kp.Private[31] |= 64

	curve25519.ScalarBaseMult(&kp.Public, &kp.Private)
	return kp, nil
}

// sharedSecret performs X25519 Diffie-Hellman against a peer's public key,
// rejecting the all-zero output curve25519 produces for a low-order peer
// key (the handshake must not silently proceed on such input).
func (kp *DHKeyPair) sharedSecret(peerPublic [DHKeySize]byte) ([DHKeySize]byte, error) {
	var shared [DHKeySize]byte
	curve25519.ScalarMult(&shared, &kp.Private, &peerPublic)

	var zero [DHKeySize]byte
	if shared == zero {
		return shared, ErrInvalidPublicKey
	}
	return shared, nil
}

// aeadNonce packs a Noise nonce counter into the 12-byte little-endian form
// ChaCha20-Poly1305 expects (4 zero bytes followed by the 8-byte counter).
func aeadNonce(counter uint64) []byte {
	n := make([]byte, NonceSize)
	n[4] = byte(counter)
	n[5] = byte(counter >> 8)
	n[6] = byte(counter >> 16)
	n[7] = byte(counter >> 24)
	n[8] = byte(counter >> 32)
	n[9] = byte(counter >> 40)
	n[10] = byte(counter >> 48)
	n[11] = byte(counter >> 56)
	return n
}

// aeadState is a single directional AEAD key plus its strictly increasing
// nonce counter, used both as a handshake-transcript cipher and, once split,
// as one half of the post-handshake transport.
type aeadState struct {
	mu    sync.Mutex
	nonce uint64
	aead  cipher.AEAD
}

func newAEADState(key [SymKeySize]byte) (*aeadState, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return &aeadState{aead: aead}, nil
}

func (a *aeadState) seal(plaintext, ad []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.nonce >= MaxNonce {
		return nil, ErrNonceOverflow
	}
	out := a.aead.Seal(nil, aeadNonce(a.nonce), plaintext, ad)
	a.nonce++
	return out, nil
}

func (a *aeadState) open(ciphertext, ad []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.nonce >= MaxNonce {
		return nil, ErrNonceOverflow
	}
	out, err := a.aead.Open(nil, aeadNonce(a.nonce), ciphertext, ad)
	a.nonce++
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return out, nil
}

func (a *aeadState) currentNonce() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nonce
}

// handshakeTranscript is Noise's running (chaining key, handshake hash)
// pair: every token processed during the NX exchange absorbs into the hash
// and, for DH tokens, ratchets the chaining key into a fresh transcript
// cipher used to seal/open the remainder of that message.
type handshakeTranscript struct {
	chainKey [SymKeySize]byte
	hash     [32]byte
	cipher   *aeadState // nil until the first ratchet
}

func newHandshakeTranscript() *handshakeTranscript {
	t := &handshakeTranscript{}
	name := []byte(ProtocolName)
	if len(name) <= 32 {
		copy(t.hash[:], name)
	} else {
		t.hash = sha256.Sum256(name)
	}
	t.chainKey = t.hash
	return t
}

// absorb mixes raw bytes (an ephemeral or static public key) into the
// transcript hash. Noise calls this MixHash.
func (t *handshakeTranscript) absorb(data []byte) {
	t.hash = sha256.Sum256(append(append([]byte{}, t.hash[:]...), data...))
}

// ratchet folds a freshly computed DH shared secret into the chaining key
// and derives the transcript cipher used for the rest of the message.
// Noise calls this MixKey.
func (t *handshakeTranscript) ratchet(dhOutput []byte) {
	k1, k2 := hkdfTwoKeys(t.chainKey[:], dhOutput)
	t.chainKey = k1
	t.cipher, _ = newAEADState(k2)
}

// seal encrypts plaintext against the transcript cipher (or passes it
// through unchanged before the first ratchet, per Noise's EncryptAndHash)
// and absorbs the result.
func (t *handshakeTranscript) seal(plaintext []byte) ([]byte, error) {
	if t.cipher == nil {
		t.absorb(plaintext)
		return plaintext, nil
	}
	ciphertext, err := t.cipher.seal(plaintext, t.hash[:])
	if err != nil {
		return nil, err
	}
	t.absorb(ciphertext)
	return ciphertext, nil
}

// open is seal's inverse (Noise's DecryptAndHash).
func (t *handshakeTranscript) open(ciphertext []byte) ([]byte, error) {
	if t.cipher == nil {
		t.absorb(ciphertext)
		return ciphertext, nil
	}
	plaintext, err := t.cipher.open(ciphertext, t.hash[:])
	if err != nil {
		return nil, err
	}
	t.absorb(ciphertext)
	return plaintext, nil
}

// finalize derives the two directional transport keys once both messages
// of the NX pattern have been processed. Noise calls this Split.
func (t *handshakeTranscript) finalize() (*aeadState, *aeadState, error) {
	k1, k2 := hkdfTwoKeys(t.chainKey[:], nil)
	c1, err := newAEADState(k1)
	if err != nil {
		return nil, nil, err
	}
	c2, err := newAEADState(k2)
	if err != nil {
		return nil, nil, err
	}
	return c1, c2, nil
}

// hkdfTwoKeys runs HKDF-SHA256 (extract via salt=chainKey, expand with no
// info) to the two 32-byte outputs every MixKey/Split step needs.
func hkdfTwoKeys(salt, ikm []byte) (k1, k2 [32]byte) {
	r := hkdf.New(sha256.New, ikm, salt, nil)
	io.ReadFull(r, k1[:])
	io.ReadFull(r, k2[:])
	return
}

// nxHandshake drives the two-message Noise_NX pattern (-> e ; <- e, ee, s,
// es). Rather than a single WriteMessage/ReadMessage entry point switched
// on a message-index counter, each side exposes the exact token sequence
// its role in the pattern requires, named after what it does on the wire.
type nxHandshake struct {
	transcript      *handshakeTranscript
	localStatic     *DHKeyPair // nil for the initiator: NX has no initiator static key
	localEphemeral  *DHKeyPair
	remoteStatic    [DHKeySize]byte
	remoteEphemeral [DHKeySize]byte
	initiator       bool
}

func newInitiatorCore() (*nxHandshake, error) {
	ephemeral, err := GenerateDHKeyPair()
	if err != nil {
		return nil, err
	}
	return &nxHandshake{
		transcript:     newHandshakeTranscript(),
		localEphemeral: ephemeral,
		initiator:      true,
	}, nil
}

func newResponderCore(staticKey *DHKeyPair) (*nxHandshake, error) {
	if staticKey == nil {
		return nil, ErrInvalidKeySize
	}
	ephemeral, err := GenerateDHKeyPair()
	if err != nil {
		return nil, err
	}
	return &nxHandshake{
		transcript:     newHandshakeTranscript(),
		localStatic:    staticKey,
		localEphemeral: ephemeral,
		initiator:      false,
	}, nil
}

// writeE is the initiator's sole outbound message: -> e, with the payload
// encrypted under whatever transcript cipher is current (none yet, so this
// is plaintext wrapped for the hash).
func (h *nxHandshake) writeE(payload []byte) ([]byte, error) {
	if !h.initiator {
		return nil, ErrHandshakeFailed
	}
	h.transcript.absorb(h.localEphemeral.Public[:])
	encPayload, err := h.transcript.seal(payload)
	if err != nil {
		return nil, err
	}
	msg := make([]byte, 0, DHKeySize+len(encPayload))
	msg = append(msg, h.localEphemeral.Public[:]...)
	msg = append(msg, encPayload...)
	return msg, nil
}

// readE is the responder's counterpart to writeE.
func (h *nxHandshake) readE(message []byte) ([]byte, error) {
	if h.initiator {
		return nil, ErrHandshakeFailed
	}
	if len(message) < DHKeySize {
		return nil, ErrInvalidMessage
	}
	copy(h.remoteEphemeral[:], message[:DHKeySize])
	h.transcript.absorb(h.remoteEphemeral[:])
	return h.transcript.open(message[DHKeySize:])
}

// writeEESES is the responder's sole outbound message: <- e, ee, s, es.
func (h *nxHandshake) writeEESES(payload []byte) ([]byte, error) {
	if h.initiator {
		return nil, ErrHandshakeFailed
	}

	var msg []byte

	// e
	h.transcript.absorb(h.localEphemeral.Public[:])
	msg = append(msg, h.localEphemeral.Public[:]...)

	// ee
	ee, err := h.localEphemeral.sharedSecret(h.remoteEphemeral)
	if err != nil {
		return nil, err
	}
	h.transcript.ratchet(ee[:])

	// s
	encStatic, err := h.transcript.seal(h.localStatic.Public[:])
	if err != nil {
		return nil, err
	}
	msg = append(msg, encStatic...)

	// es
	es, err := h.localStatic.sharedSecret(h.remoteEphemeral)
	if err != nil {
		return nil, err
	}
	h.transcript.ratchet(es[:])

	encPayload, err := h.transcript.seal(payload)
	if err != nil {
		return nil, err
	}
	msg = append(msg, encPayload...)
	return msg, nil
}

// readEESES is the initiator's counterpart to writeEESES.
func (h *nxHandshake) readEESES(message []byte) ([]byte, error) {
	if !h.initiator {
		return nil, ErrHandshakeFailed
	}

	// e
	if len(message) < DHKeySize {
		return nil, ErrInvalidMessage
	}
	copy(h.remoteEphemeral[:], message[:DHKeySize])
	h.transcript.absorb(h.remoteEphemeral[:])
	message = message[DHKeySize:]

	// ee
	ee, err := h.localEphemeral.sharedSecret(h.remoteEphemeral)
	if err != nil {
		return nil, err
	}
	h.transcript.ratchet(ee[:])

	// s
	if len(message) < DHKeySize+TagSize {
		return nil, ErrInvalidMessage
	}
	decStatic, err := h.transcript.open(message[:DHKeySize+TagSize])
	if err != nil {
		return nil, err
	}
	copy(h.remoteStatic[:], decStatic)
	message = message[DHKeySize+TagSize:]

	// es
	es, err := h.localEphemeral.sharedSecret(h.remoteStatic)
	if err != nil {
		return nil, err
	}
	h.transcript.ratchet(es[:])

	return h.transcript.open(message)
}

// complete reports whether this side has processed both NX messages.
func (h *nxHandshake) complete() bool {
	if h.initiator {
		return h.transcript.cipher != nil && h.remoteStatic != [DHKeySize]byte{}
	}
	return h.transcript.cipher != nil
}

// transportKeys derives the two directional transport ciphers, ordering
// them (send, recv) from this side's perspective: the initiator's first
// derived key is its send key, while the responder's is its receive key
// (and vice versa), since both sides ran the same HKDF over the same final
// chaining key.
func (h *nxHandshake) transportKeys() (send, recv *aeadState, err error) {
	if !h.complete() {
		return nil, nil, ErrNotEstablished
	}
	c1, c2, err := h.transcript.finalize()
	if err != nil {
		return nil, nil, err
	}
	if h.initiator {
		return c1, c2, nil
	}
	return c2, c1, nil
}

// transportCipher is an established, bidirectional post-handshake channel:
// one aeadState per direction, each with its own nonce counter.
type transportCipher struct {
	send *aeadState
	recv *aeadState
}

func newTransportCipher(send, recv *aeadState) *transportCipher {
	return &transportCipher{send: send, recv: recv}
}

func (c *transportCipher) seal(plaintext []byte) ([]byte, error) {
	return c.send.seal(plaintext, nil)
}

func (c *transportCipher) open(ciphertext []byte) ([]byte, error) {
	return c.recv.open(ciphertext, nil)
}
