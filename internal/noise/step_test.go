package noise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCert(now time.Time) Certificate {
	return Certificate{
		ValidFrom: now.Add(-time.Hour),
		ValidTo:   now.Add(CertValidityWindow),
	}
}

func TestSv2Handshake_OutOfOrderStepFails(t *testing.T) {
	init, err := NewInitiatorSv2Handshake()
	require.NoError(t, err)

	_, err = init.Step2(nil, time.Now())
	assert.ErrorIs(t, err, ErrNotInHandShakeState)
}

func TestSv2Handshake_WrongRoleFails(t *testing.T) {
	resp, err := NewResponderSv2Handshake(mustKeyPair(t))
	require.NoError(t, err)

	_, err = resp.Step0()
	assert.ErrorIs(t, err, ErrInvalidStepForInitiator)
}

func TestSv2Handshake_FullExchange(t *testing.T) {
	static := mustKeyPair(t)
	init, err := NewInitiatorSv2Handshake()
	require.NoError(t, err)
	resp, err := NewResponderSv2Handshake(static)
	require.NoError(t, err)

	now := time.Now()
	cert := validCert(now)

	step0, err := init.Step0()
	require.NoError(t, err)

	step1, err := resp.Step1(step0, now, cert)
	require.NoError(t, err)
	assert.Len(t, step1, 170)

	cipherList, err := init.Step2(step1, now)
	require.NoError(t, err)

	respCodec, err := resp.Step3(cipherList)
	require.NoError(t, err)

	initCodec, err := init.Step4([]byte(ProtocolName))
	require.NoError(t, err)

	plaintext := []byte("SetupConnection payload bytes")
	ciphertext, err := initCodec.Encrypt(plaintext)
	require.NoError(t, err)

	decrypted, err := respCodec.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestSv2Handshake_ExpiredWireCertRejected(t *testing.T) {
	static := mustKeyPair(t)
	init, err := NewInitiatorSv2Handshake()
	require.NoError(t, err)
	resp, err := NewResponderSv2Handshake(static)
	require.NoError(t, err)

	now := time.Now()
	// Valid when the responder sends it, expired by the time the
	// initiator checks.
	cert := Certificate{
		ValidFrom: now.Add(-2 * time.Hour),
		ValidTo:   now.Add(time.Hour),
	}

	step0, err := init.Step0()
	require.NoError(t, err)
	step1, err := resp.Step1(step0, now, cert)
	require.NoError(t, err)

	_, err = init.Step2(step1, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrCertificateExpired)
}

func TestCertificate_WireRoundTrip(t *testing.T) {
	cert := Certificate{
		Version:   1,
		ValidFrom: time.Unix(1700000000, 0),
		ValidTo:   time.Unix(1731449600, 0),
	}
	for i := range cert.Signature {
		cert.Signature[i] = byte(i)
	}

	got, err := decodeCertificate(cert.encode())
	require.NoError(t, err)
	assert.Equal(t, cert.Version, got.Version)
	assert.True(t, cert.ValidFrom.Equal(got.ValidFrom))
	assert.True(t, cert.ValidTo.Equal(got.ValidTo))
	assert.Equal(t, cert.Signature, got.Signature)
}

func TestCertificate_ExpiredWindow(t *testing.T) {
	cert := Certificate{
		ValidFrom: time.Unix(0, 0),
		ValidTo:   time.Unix(100, 0),
	}
	err := cert.CheckValidity(time.Unix(200, 0))
	assert.ErrorIs(t, err, ErrCertificateExpired)
}

func mustKeyPair(t *testing.T) *DHKeyPair {
	t.Helper()
	kp, err := GenerateDHKeyPair()
	require.NoError(t, err)
	return kp
}
