package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeq0255_U256_RoundTrip(t *testing.T) {
	a, _ := NewU256(bytesOf(0xAA))
	b, _ := NewU256(bytesOf(0xBB))
	seq, err := NewSeq0255([]U256{a, b})
	require.NoError(t, err)

	buf := make([]byte, seq.GetSize())
	n, err := seq.Encode(buf)
	require.NoError(t, err)
	assert.Equal(t, 1+64, n)

	got, consumed, err := DecodeSeq0255(buf, DecodeU256)
	require.NoError(t, err)
	assert.Equal(t, n, consumed)
	assert.Equal(t, []U256{a, b}, got.Elems)
}

func TestSeq0255_Empty(t *testing.T) {
	seq, err := NewSeq0255[U256](nil)
	require.NoError(t, err)
	assert.Equal(t, 1, seq.GetSize())

	buf := make([]byte, seq.GetSize())
	_, err = seq.Encode(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, buf)
}

func TestSv2Option_SomeAndNone(t *testing.T) {
	v := NewU32AsRef(42)
	some, err := NewSv2Option(&v)
	require.NoError(t, err)
	assert.True(t, some.IsSome())

	buf := make([]byte, some.GetSize())
	_, err = some.Encode(buf)
	require.NoError(t, err)

	got, _, err := DecodeSv2Option(buf, DecodeU32AsRef)
	require.NoError(t, err)
	val, ok := got.Get()
	require.True(t, ok)
	assert.Equal(t, v, val)

	none, err := NewSv2Option[U32AsRef](nil)
	require.NoError(t, err)
	assert.False(t, none.IsSome())
	_, ok = none.Get()
	assert.False(t, ok)
}

func TestSeq064K_RoundTrip(t *testing.T) {
	elems := make([]ShortTxId, 300)
	for i := range elems {
		id, _ := NewShortTxId([]byte{byte(i), byte(i >> 8), 0, 0, 0, 0})
		elems[i] = id
	}
	seq, err := NewSeq064K(elems)
	require.NoError(t, err)

	buf := make([]byte, seq.GetSize())
	_, err = seq.Encode(buf)
	require.NoError(t, err)

	got, n, err := DecodeSeq064K(buf, DecodeShortTxId)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, elems, got.Elems)
}

func bytesOf(b byte) []byte {
	out := make([]byte, 32)
	for i := range out {
		out[i] = b
	}
	return out
}
