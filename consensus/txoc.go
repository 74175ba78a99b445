package consensus

import (
	"math/big"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/wire"
)

// UTXOKey is the injective encoding of a (containing-block-hash,
// tx-index, out-index) triple used as the key throughout the ledger
// and the persisted UTXO table:
//
//	key = block_hash XOR (tx_index << 128) XOR (out_index << 224)
//
// block_hash is read as a 256-bit big-endian integer. The scheme must
// stay byte-identical across the ledger, the TXOC deltas, and the
// on-disk utxo column, since it is the only handle by which a UTXO is
// ever addressed.
type UTXOKey chainhash.Hash

// ComputeUTXOKey derives the key for one transaction output.
func ComputeUTXOKey(blockHash chainhash.Hash, txIndex, outIndex uint32) UTXOKey {
	h := new(big.Int).SetBytes(blockHash[:])
	h.Xor(h, new(big.Int).Lsh(big.NewInt(int64(txIndex)), 128))
	h.Xor(h, new(big.Int).Lsh(big.NewInt(int64(outIndex)), 224))

	var key UTXOKey
	b := h.Bytes()
	copy(key[chainhash.HashSize-len(b):], b)
	return key
}

// UTXO is an unspent transaction output together with the coordinates
// needed to recompute its key and locate its containing block.
type UTXO struct {
	BlockHash chainhash.Hash
	TxIndex   uint32
	OutIndex  uint32
	Output    *wire.TxOut
}

// Key returns the UTXO's ledger/store key.
func (u *UTXO) Key() UTXOKey {
	return ComputeUTXOKey(u.BlockHash, u.TxIndex, u.OutIndex)
}

// TXOC is a transaction-output-change: the set of UTXO keys created
// and the set of UTXO keys spent by one level set (or, in a fork,
// by one milestone being rolled back).
type TXOC struct {
	Created map[UTXOKey]*UTXO
	Spent   map[UTXOKey]struct{}
}

// NewTXOC returns an empty TXOC.
func NewTXOC() *TXOC {
	return &TXOC{
		Created: make(map[UTXOKey]*UTXO),
		Spent:   make(map[UTXOKey]struct{}),
	}
}

// AddCreated records utxo as created by this TXOC.
func (t *TXOC) AddCreated(utxo *UTXO) {
	t.Created[utxo.Key()] = utxo
}

// AddSpent records key as spent by this TXOC.
func (t *TXOC) AddSpent(key UTXOKey) {
	t.Spent[key] = struct{}{}
}

// Merge folds other into t in place, as happens when a milestone's
// TXOC is accumulated transaction-by-transaction during verification.
func (t *TXOC) Merge(other *TXOC) {
	for k, v := range other.Created {
		t.Created[k] = v
	}
	for k := range other.Spent {
		t.Spent[k] = struct{}{}
	}
}
