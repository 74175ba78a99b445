// Package collaborator declares the Mempool and Wallet contracts named
// in spec.md §6 as external interfaces: the core consensus engine
// depends on these shapes, but neither subsystem's implementation
// lives in this repo, mirroring the solver package's treatment of the
// proof-of-work solver.
package collaborator

import (
	"math/big"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/consensus"
	"github.com/epic-project/epicd/wire"
)

// Mempool is satisfied by a concurrent transaction pool keyed by tx
// hash. DAG Manager and Chain verification call into it to keep the
// pool consistent with the best chain's confirmed state; a miner
// calls ExtractTransactions to assemble a candidate block.
type Mempool interface {
	// ReceiveTx admits tx to the pool, reporting whether it was
	// accepted. Rejects duplicates, registration transactions, and
	// any transaction whose inputs are unspendable on the best chain.
	ReceiveTx(tx *wire.MsgTx) bool

	// ReleaseTxFromConfirmed evicts tx from the pool after Chain
	// verification settles it. When valid is true, every
	// double-spending conflict of tx is evicted alongside it.
	ReleaseTxFromConfirmed(tx *wire.MsgTx, valid bool)

	// ExtractTransactions returns the first pooled transaction whose
	// H(tx) XOR H(blockHash) meets threshold, for miner-side
	// sortition (spec.md §4.5). Returns nil if none qualify.
	ExtractTransactions(blockHash chainhash.Hash, threshold *big.Int) *wire.MsgTx
}

// LevelSetConfirmedFunc is the callback shape Wallet.RegisterLVSConfirmed
// subscribes with: it fires once per flushed level set, per spec.md §6.
type LevelSetConfirmedFunc func(vertices []*consensus.Vertex, createdUTXO map[consensus.UTXOKey]*consensus.UTXO, removedUTXO []consensus.UTXOKey)

// TxConflictFunc notifies a wallet that one of its pending outputs
// was invalidated by a redemption.
type TxConflictFunc func(tx *wire.MsgTx)

// Wallet is satisfied by a key-management subsystem that submits
// candidate transactions to a Mempool and listens for confirmation
// and conflict notifications. Its implementation is out of scope per
// spec.md §1; only the subscription contract lives here.
type Wallet interface {
	// RegisterLVSConfirmed subscribes f to fire after every flushed
	// level set.
	RegisterLVSConfirmed(f LevelSetConfirmedFunc)

	// RegisterTxConflict subscribes f to fire when a pending output
	// of one of the wallet's own transactions is invalidated by a
	// redemption.
	RegisterTxConflict(f TxConflictFunc)
}
