package templatedistribution

import (
	"testing"

	bin "github.com/ironseam/sv2bridge/internal/binary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u256(t *testing.T, fill byte) bin.U256 {
	t.Helper()
	b := make([]byte, 32)
	for i := range b {
		b[i] = fill
	}
	v, err := bin.NewU256(b)
	require.NoError(t, err)
	return v
}

func TestNewTemplate_RoundTrip(t *testing.T) {
	prefix, err := bin.NewB0255([]byte("cb-prefix"))
	require.NoError(t, err)
	outputs, err := bin.NewB064K([]byte("cb-outputs"))
	require.NoError(t, err)
	path, err := bin.NewSeq0255([]bin.U256{u256(t, 0x01)})
	require.NoError(t, err)

	m := NewTemplate{
		TemplateID:               1,
		FutureTemplate:           true,
		Version:                  0x20000000,
		CoinbaseTxVersion:        2,
		CoinbasePrefix:           prefix,
		CoinbaseTxInputSequence:  0xFFFFFFFF,
		CoinbaseTxValueRemaining: 625000000,
		CoinbaseTxOutputs:        outputs,
		CoinbaseTxLockTime:       0,
		MerklePath:               path,
	}
	buf := make([]byte, m.GetSize())
	n, err := m.Encode(buf)
	require.NoError(t, err)
	assert.Equal(t, m.GetSize(), n)

	got, _, err := DecodeNewTemplate(buf)
	require.NoError(t, err)
	assert.Equal(t, m.TemplateID, got.TemplateID)
	assert.True(t, got.FutureTemplate)
	assert.Equal(t, m.CoinbaseTxValueRemaining, got.CoinbaseTxValueRemaining)
	assert.Len(t, got.MerklePath.Elems, 1)
}

func TestSetNewPrevHash_RoundTrip(t *testing.T) {
	m := SetNewPrevHash{
		TemplateID:      1,
		PrevHash:        u256(t, 0xAB),
		HeaderTimestamp: 1700000000,
		NBits:           0x1d00ffff,
		Target:          u256(t, 0x00),
	}
	buf := make([]byte, m.GetSize())
	_, err := m.Encode(buf)
	require.NoError(t, err)

	got, n, err := DecodeSetNewPrevHash(buf)
	require.NoError(t, err)
	assert.Equal(t, m.GetSize(), n)
	assert.Equal(t, m, got)
}

func TestCoinbaseOutputDataSize_RoundTrip(t *testing.T) {
	m := CoinbaseOutputDataSize{CoinbaseOutputMaxAdditionalSize: 50}
	buf := make([]byte, m.GetSize())
	_, err := m.Encode(buf)
	require.NoError(t, err)

	got, n, err := DecodeCoinbaseOutputDataSize(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, m, got)
}
