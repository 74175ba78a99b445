// Package sync implements the Sync Service of §4.8: the two
// message-pair protocols (GetInv/Inv and GetData/Bundle) a peer uses
// to catch the local best chain up to a remote one, reading from the
// in-memory chain window and falling back to the block store on a
// cache miss. Peer lifecycle and wire framing are out of scope per
// §1; this package models only the request/response shapes and the
// task-timeout bookkeeping they need.
package sync

import (
	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/wire"
)

// GetDataType selects which bundle a GetData request asks for.
type GetDataType int

// The two GetData kinds named in §4.8.
const (
	PendingSet GetDataType = iota
	LevelSet
)

func (t GetDataType) String() string {
	switch t {
	case PendingSet:
		return "PENDING_SET"
	case LevelSet:
		return "LEVEL_SET"
	default:
		return "UNKNOWN"
	}
}

// GetInv requests a forward traversal of the responder's best chain
// starting just past the point where locator intersects it. Locator
// is a sparse list of milestone hashes, conventionally built by
// walking backwards from the requester's head with doubling gaps.
type GetInv struct {
	Locator []chainhash.Hash
	Nonce   uint64
}

// Inv answers a GetInv: the forward traversal of milestone hashes, or
// [genesis] if locator didn't intersect the responder's best chain at
// all.
type Inv struct {
	Hashes []chainhash.Hash
	Nonce  uint64
}

// GetData requests either the current pending blocks of the best
// chain (PendingSet, Hashes/Nonces ignored beyond the first) or, for
// LevelSet, the full block membership of the milestone level set
// anchored at each of Hashes.
type GetData struct {
	Type   GetDataType
	Hashes []chainhash.Hash
	Nonces []uint64
}

// Bundle answers one GetData hash with every block in its level set
// (or the pending set). Per §4.8, the milestone block is swapped to
// the back of the vector on write to match the wire shape; readers
// swap it back to the front to recover on-disk order. Digest is a
// blake3 hash of the concatenated serialized blocks, an integrity
// check over the bundle transfer (an addition beyond spec.md, see
// SPEC_FULL.md §11).
type Bundle struct {
	Blocks []*wire.MsgBlock
	Nonce  uint64
	Digest [32]byte
}

// NotFound replaces a Bundle when the requested hash is unknown to
// the responder.
type NotFound struct {
	Hash  chainhash.Hash
	Nonce uint64
}
