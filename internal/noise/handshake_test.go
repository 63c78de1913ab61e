package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DH key pair

func TestGenerateDHKeyPair(t *testing.T) {
	kp, err := GenerateDHKeyPair()
	require.NoError(t, err)
	require.NotNil(t, kp)

	var zero [DHKeySize]byte
	assert.NotEqual(t, zero, kp.Private)
	assert.NotEqual(t, zero, kp.Public)
}

func TestGenerateDHKeyPair_Unique(t *testing.T) {
	kp1, err := GenerateDHKeyPair()
	require.NoError(t, err)
	kp2, err := GenerateDHKeyPair()
	require.NoError(t, err)

	assert.NotEqual(t, kp1.Private, kp2.Private)
	assert.NotEqual(t, kp1.Public, kp2.Public)
}

func TestDHKeyPair_SharedSecret_Agrees(t *testing.T) {
	alice, err := GenerateDHKeyPair()
	require.NoError(t, err)
	bob, err := GenerateDHKeyPair()
	require.NoError(t, err)

	sharedAlice, err := alice.sharedSecret(bob.Public)
	require.NoError(t, err)
	sharedBob, err := bob.sharedSecret(alice.Public)
	require.NoError(t, err)

	assert.Equal(t, sharedAlice, sharedBob)
}

func TestDHKeyPair_SharedSecret_RejectsLowOrderKey(t *testing.T) {
	kp, err := GenerateDHKeyPair()
	require.NoError(t, err)

	var zeroKey [DHKeySize]byte
	_, err = kp.sharedSecret(zeroKey)
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

// aeadState (transcript/transport cipher primitive)

func TestAEADState_EncryptDecrypt(t *testing.T) {
	var key [SymKeySize]byte
	for i := range key {
		key[i] = byte(i)
	}

	sender, err := newAEADState(key)
	require.NoError(t, err)
	receiver, err := newAEADState(key)
	require.NoError(t, err)

	plaintext := []byte("share submission payload")
	ad := []byte("associated data")

	ciphertext, err := sender.seal(plaintext, ad)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := receiver.open(ciphertext, ad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAEADState_NonceIncrements(t *testing.T) {
	var key [SymKeySize]byte
	a, err := newAEADState(key)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), a.currentNonce())
	_, err = a.seal([]byte("m"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a.currentNonce())
	_, err = a.seal([]byte("m"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), a.currentNonce())
}

func TestAEADState_WrongAssociatedDataFails(t *testing.T) {
	var key [SymKeySize]byte
	sender, _ := newAEADState(key)
	receiver, _ := newAEADState(key)

	ciphertext, err := sender.seal([]byte("secret"), []byte("correct ad"))
	require.NoError(t, err)

	_, err = receiver.open(ciphertext, []byte("wrong ad"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

// handshakeTranscript

func TestHandshakeTranscript_AbsorbChangesHash(t *testing.T) {
	tr := newHandshakeTranscript()
	before := tr.hash
	tr.absorb([]byte("ephemeral key bytes"))
	assert.NotEqual(t, before, tr.hash)
}

func TestHandshakeTranscript_RatchetInitializesCipher(t *testing.T) {
	tr := newHandshakeTranscript()
	assert.Nil(t, tr.cipher)
	tr.ratchet([]byte("dh output"))
	assert.NotNil(t, tr.cipher)
}

func TestHandshakeTranscript_SealBeforeRatchetIsPlaintext(t *testing.T) {
	tr := newHandshakeTranscript()
	plaintext := []byte("payload")
	out, err := tr.seal(plaintext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestHandshakeTranscript_SealAfterRatchetIsCiphertext(t *testing.T) {
	tr := newHandshakeTranscript()
	tr.ratchet([]byte("dh output"))
	plaintext := []byte("payload")
	out, err := tr.seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, out)
}

func TestHandshakeTranscript_Finalize(t *testing.T) {
	tr := newHandshakeTranscript()
	tr.ratchet([]byte("dh output"))

	c1, c2, err := tr.finalize()
	require.NoError(t, err)
	assert.NotNil(t, c1)
	assert.NotNil(t, c2)
}

// nxHandshake: the two-message NX exchange

func TestNewInitiatorCore(t *testing.T) {
	hs, err := newInitiatorCore()
	require.NoError(t, err)
	assert.True(t, hs.initiator)
	assert.NotNil(t, hs.localEphemeral)
	assert.Nil(t, hs.localStatic)
}

func TestNewResponderCore(t *testing.T) {
	staticKey, err := GenerateDHKeyPair()
	require.NoError(t, err)

	hs, err := newResponderCore(staticKey)
	require.NoError(t, err)
	assert.False(t, hs.initiator)
	assert.NotNil(t, hs.localStatic)
	assert.NotNil(t, hs.localEphemeral)
}

func TestNewResponderCore_NilStaticKey(t *testing.T) {
	_, err := newResponderCore(nil)
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestNXHandshake_FullExchange(t *testing.T) {
	serverStatic, err := GenerateDHKeyPair()
	require.NoError(t, err)

	initiator, err := newInitiatorCore()
	require.NoError(t, err)
	responder, err := newResponderCore(serverStatic)
	require.NoError(t, err)

	// -> e
	msg1, err := initiator.writeE([]byte("hello from translator"))
	require.NoError(t, err)
	assert.True(t, len(msg1) >= DHKeySize)

	payload1, err := responder.readE(msg1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello from translator"), payload1)

	// <- e, ee, s, es
	msg2, err := responder.writeEESES([]byte("hello from pool"))
	require.NoError(t, err)

	payload2, err := initiator.readEESES(msg2)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello from pool"), payload2)

	assert.True(t, initiator.complete())
	assert.True(t, responder.complete())
	assert.Equal(t, serverStatic.Public, initiator.remoteStatic)

	initSend, initRecv, err := initiator.transportKeys()
	require.NoError(t, err)
	respSend, respRecv, err := responder.transportKeys()
	require.NoError(t, err)

	shareMsg := []byte("share submission data")
	encrypted, err := initSend.seal(shareMsg, nil)
	require.NoError(t, err)
	decrypted, err := respRecv.open(encrypted, nil)
	require.NoError(t, err)
	assert.Equal(t, shareMsg, decrypted)

	jobMsg := []byte("job notification")
	encrypted2, err := respSend.seal(jobMsg, nil)
	require.NoError(t, err)
	decrypted2, err := initRecv.open(encrypted2, nil)
	require.NoError(t, err)
	assert.Equal(t, jobMsg, decrypted2)
}

func TestNXHandshake_NotCompleteBeforeExchange(t *testing.T) {
	initiator, err := newInitiatorCore()
	require.NoError(t, err)
	assert.False(t, initiator.complete())

	_, _, err = initiator.transportKeys()
	assert.ErrorIs(t, err, ErrNotEstablished)
}

func TestNXHandshake_WrongRoleFails(t *testing.T) {
	initiator, err := newInitiatorCore()
	require.NoError(t, err)

	_, err = initiator.readE(nil)
	assert.ErrorIs(t, err, ErrHandshakeFailed)

	responder, err := newResponderCore(mustDHKeyPair(t))
	require.NoError(t, err)

	_, err = responder.writeE(nil)
	assert.ErrorIs(t, err, ErrHandshakeFailed)
}

// transportCipher

func TestTransportCipher_EncryptDecrypt(t *testing.T) {
	var key [SymKeySize]byte
	for i := range key {
		key[i] = byte(i)
	}
	send, err := newAEADState(key)
	require.NoError(t, err)
	recv, err := newAEADState(key)
	require.NoError(t, err)

	c := newTransportCipher(send, recv)

	plaintext := []byte("test message")
	ciphertext, err := c.seal(plaintext)
	require.NoError(t, err)

	recv2, _ := newAEADState(key)
	c2 := newTransportCipher(nil, recv2)
	decrypted, err := c2.open(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func mustDHKeyPair(t *testing.T) *DHKeyPair {
	t.Helper()
	kp, err := GenerateDHKeyPair()
	require.NoError(t, err)
	return kp
}
