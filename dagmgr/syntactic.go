package dagmgr

import (
	"time"

	"github.com/epic-project/epicd/consensus"
	"github.com/epic-project/epicd/dagconfig"
	"github.com/epic-project/epicd/pow"
	"github.com/epic-project/epicd/wire"
)

// maxTimeDrift bounds how far into the future a block's timestamp
// may sit relative to the local clock.
const maxTimeDrift = 2 * time.Hour

// maxBlockSize bounds the serialized size of a block's payload.
const maxBlockSize = 32 * 1024 * 1024

// SyntacticVerify runs the context-free checks of §4.7 step 2:
// version, proof size, PoW bound, timestamp drift, size, duplicate
// transactions, merkle root, empty inputs, and first-registration
// shape. It never consults chain state.
func SyntacticVerify(block *wire.MsgBlock, params *dagconfig.Params, now time.Time) error {
	if block.Header.Version == 0 {
		return consensus.RuleError{ErrorCode: consensus.ErrBadVersion, Description: "block version is zero"}
	}

	if len(block.Header.Proof) == 0 || len(block.Header.Proof) > wire.MaxProofLength {
		return consensus.RuleError{ErrorCode: consensus.ErrBadProofSize, Description: "proof length out of bounds"}
	}

	if !pow.MeetsTarget(block.Hash(), block.Header.Bits) {
		return consensus.RuleError{ErrorCode: consensus.ErrHighHash, Description: "block hash does not meet its claimed target"}
	}

	blockTime := time.Unix(int64(block.Header.Timestamp), 0)
	if blockTime.After(now.Add(maxTimeDrift)) {
		return consensus.RuleError{ErrorCode: consensus.ErrTimeTooNew, Description: "block timestamp too far in the future"}
	}

	data, err := block.Bytes()
	if err != nil {
		return consensus.RuleError{ErrorCode: consensus.ErrBlockTooBig, Description: "block failed to serialize"}
	}
	if len(data) > maxBlockSize {
		return consensus.RuleError{ErrorCode: consensus.ErrBlockTooBig, Description: "block exceeds maximum size"}
	}

	if len(block.Transactions) > wire.MaxTxPerBlock {
		return consensus.RuleError{ErrorCode: consensus.ErrBlockTooBig, Description: "too many transactions"}
	}

	txHashes := make(map[string]struct{}, len(block.Transactions))
	for _, tx := range block.Transactions {
		h := tx.TxHash()
		if _, dup := txHashes[string(h[:])]; dup {
			return consensus.RuleError{ErrorCode: consensus.ErrDuplicateTx, Description: "duplicate transaction in block"}
		}
		txHashes[string(h[:])] = struct{}{}

		if len(tx.TxIn) == 0 {
			return consensus.RuleError{ErrorCode: consensus.ErrEmptyTxInputs, Description: "transaction has no inputs"}
		}
	}

	if got, want := block.ComputeMerkleRoot(), block.Header.MerkleRoot; got != want {
		return consensus.RuleError{ErrorCode: consensus.ErrBadMerkleRoot, Description: "merkle root mismatch"}
	}

	if len(block.Transactions) > 0 {
		if kind := block.Transactions[0].Classify(); kind == wire.KindFirstRegistration {
			tx := block.Transactions[0]
			if len(tx.TxIn) != 1 || !tx.TxIn[0].PreviousOutPoint.IsNull() ||
				len(tx.TxOut) != 1 || tx.TxOut[0].Value != 0 {
				return consensus.RuleError{ErrorCode: consensus.ErrBadFirstRegistrationShape, Description: "malformed first registration"}
			}
		}
	}

	return nil
}
