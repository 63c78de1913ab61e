// Package merkle computes the merkle root a mining job's coinbase
// transaction combines with to form the block header, using the same
// double-SHA256 primitive btcd exposes as chainhash.
package merkle

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	bin "github.com/ironseam/sv2bridge/internal/binary"
)

// Root folds coinbaseTxID with the sibling hashes in path, coinbase-left at
// every level, exactly as NewExtendedMiningJob.MerklePath is defined to be
// consumed.
func Root(coinbaseTxID bin.U256, path []bin.U256) bin.U256 {
	current := chainhash.Hash(coinbaseTxID)
	for _, sibling := range path {
		current = chainhash.DoubleHashH(append(current[:], sibling[:]...))
	}
	return bin.U256(current)
}

// CoinbaseTxID computes the double-SHA256 txid of a fully assembled
// coinbase transaction (prefix || extranonce1 || extranonce2 || suffix).
func CoinbaseTxID(raw []byte) bin.U256 {
	return bin.U256(chainhash.DoubleHashH(raw))
}
