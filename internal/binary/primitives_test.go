package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestU24_RoundTrip(t *testing.T) {
	for _, x := range []uint32{0, 1, 0xFF, 0xFFFF, 0x123456, U24Max - 1} {
		buf := make([]byte, 3)
		n, err := EncodeU24(x, buf)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		got, consumed, err := DecodeU24(buf)
		require.NoError(t, err)
		assert.Equal(t, 3, consumed)
		assert.Equal(t, x, got)
	}
}

func TestU24_TooBig(t *testing.T) {
	_, err := EncodeU24(U24Max, make([]byte, 3))
	require.Error(t, err)
	var tb *U24TooBigErr
	assert.ErrorAs(t, err, &tb)
}

func TestBool_Strict(t *testing.T) {
	v, n, err := DecodeBool([]byte{0x01})
	require.NoError(t, err)
	assert.True(t, v)
	assert.Equal(t, 1, n)

	v, _, err = DecodeBool([]byte{0x00})
	require.NoError(t, err)
	assert.False(t, v)

	_, _, err = DecodeBool([]byte{0x02})
	require.Error(t, err)
	var nb *NotABoolErr
	require.ErrorAs(t, err, &nb)
	assert.Equal(t, byte(2), nb.Byte)
}

func TestU256_RoundTrip(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	u, err := NewU256(raw)
	require.NoError(t, err)

	buf := make([]byte, u.GetSize())
	n, err := u.Encode(buf)
	require.NoError(t, err)
	assert.Equal(t, 32, n)

	got, consumed, err := DecodeU256(buf)
	require.NoError(t, err)
	assert.Equal(t, 32, consumed)
	assert.Equal(t, u, got)
}

func TestU256_InvalidSize(t *testing.T) {
	_, err := NewU256(make([]byte, 31))
	require.Error(t, err)
	var ise *InvalidSizeErr
	require.ErrorAs(t, err, &ise)
}

func TestU32AsRef_Roundtrip(t *testing.T) {
	u := NewU32AsRef(0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), u.Uint32())

	buf := make([]byte, 4)
	_, err := u.Encode(buf)
	require.NoError(t, err)
	got, _, err := DecodeU32AsRef(buf)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestF32_RoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	_, err := EncodeF32(3.14159, buf)
	require.NoError(t, err)
	got, _, err := DecodeF32(buf)
	require.NoError(t, err)
	assert.InDelta(t, float32(3.14159), got, 0.00001)
}
