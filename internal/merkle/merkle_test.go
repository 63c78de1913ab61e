package merkle

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	bin "github.com/ironseam/sv2bridge/internal/binary"
)

func TestRoot_NoPath_ReturnsCoinbaseTxID(t *testing.T) {
	var txid bin.U256
	txid[0] = 0xAB
	require.Equal(t, txid, Root(txid, nil))
}

func TestRoot_SingleSibling_MatchesDoubleHash(t *testing.T) {
	var txid, sibling bin.U256
	txid[0] = 0x01
	sibling[0] = 0x02

	want := chainhash.DoubleHashH(append(append([]byte{}, txid[:]...), sibling[:]...))

	got := Root(txid, []bin.U256{sibling})
	require.Equal(t, bin.U256(want), got)
}

func TestCoinbaseTxID_MatchesDoubleSHA256(t *testing.T) {
	raw := []byte("coinbase-prefix-extranonce-suffix")
	want := chainhash.DoubleHashH(raw)
	require.Equal(t, bin.U256(want), CoinbaseTxID(raw))
}
