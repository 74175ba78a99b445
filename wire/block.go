// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/epic-project/epicd/chainhash"
)

// MaxProofLength bounds the number of 32-bit words a proof-of-work
// proof may carry; actual length is parameter-driven but never
// exceeds this.
const MaxProofLength = 4096

// MaxTxPerBlock bounds the number of transactions a single block's
// payload may carry.
const MaxTxPerBlock = 1 << 20

// BlockHeader is the fixed-shape, hashed portion of a Block: three
// named parents, a merkle commitment to the payload, and the
// proof-of-work fields.
type BlockHeader struct {
	// Version is the block format version.
	Version uint16

	// MilestoneHash is the milestone parent.
	MilestoneHash chainhash.Hash

	// PrevHash is the previous (peer-chain) parent.
	PrevHash chainhash.Hash

	// TipHash is the tip parent.
	TipHash chainhash.Hash

	// MerkleRoot commits to the block's transaction list.
	MerkleRoot chainhash.Hash

	// Timestamp is seconds since the Unix epoch.
	Timestamp uint32

	// Bits is the compact-form difficulty target this block was mined
	// against.
	Bits uint32

	// Nonce is the solver's proof-of-work nonce.
	Nonce uint32

	// Proof is the proof-of-work proof: a fixed-length (per network
	// parameters) array of 32-bit words produced by the solver.
	Proof []uint32
}

// Serialize writes the header to w in consensus byte order.
func (h *BlockHeader) Serialize(w io.Writer) error {
	if err := writeUint16(w, h.Version); err != nil {
		return err
	}
	for _, hash := range []*chainhash.Hash{&h.MilestoneHash, &h.PrevHash, &h.TipHash, &h.MerkleRoot} {
		if _, err := w.Write(hash[:]); err != nil {
			return err
		}
	}
	if err := writeUint32(w, h.Timestamp); err != nil {
		return err
	}
	if err := writeUint32(w, h.Bits); err != nil {
		return err
	}
	if err := writeUint32(w, h.Nonce); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(h.Proof))); err != nil {
		return err
	}
	for _, p := range h.Proof {
		if err := writeUint32(w, p); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads a header from r.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	var err error
	if h.Version, err = readUint16(r); err != nil {
		return err
	}
	for _, hash := range []*chainhash.Hash{&h.MilestoneHash, &h.PrevHash, &h.TipHash, &h.MerkleRoot} {
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return err
		}
	}
	if h.Timestamp, err = readUint32(r); err != nil {
		return err
	}
	if h.Bits, err = readUint32(r); err != nil {
		return err
	}
	if h.Nonce, err = readUint32(r); err != nil {
		return err
	}
	n, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if n > MaxProofLength {
		return io.ErrUnexpectedEOF
	}
	h.Proof = make([]uint32, n)
	for i := range h.Proof {
		if h.Proof[i], err = readUint32(r); err != nil {
			return err
		}
	}
	return nil
}

// MsgBlock is a full block: header plus an optional transaction list.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

// Serialize writes the full block to w: header, then a varint
// transaction count, then each transaction.
func (b *MsgBlock) Serialize(w io.Writer) error {
	if err := b.Header.Serialize(w); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(b.Transactions))); err != nil {
		return err
	}
	for _, tx := range b.Transactions {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads a full block from r.
func (b *MsgBlock) Deserialize(r io.Reader) error {
	if err := b.Header.Deserialize(r); err != nil {
		return err
	}
	n, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if n > MaxTxPerBlock {
		return io.ErrUnexpectedEOF
	}
	b.Transactions = make([]*MsgTx, n)
	for i := range b.Transactions {
		tx := new(MsgTx)
		if err := tx.Deserialize(r); err != nil {
			return err
		}
		b.Transactions[i] = tx
	}
	return nil
}

// Bytes serializes the block and returns the resulting byte slice.
func (b *MsgBlock) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BlockFromBytes deserializes a block previously produced by Bytes.
func BlockFromBytes(data []byte) (*MsgBlock, error) {
	b := new(MsgBlock)
	if err := b.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return b, nil
}

// headerBytes serializes only the header, used for hashing.
func (h *BlockHeader) headerBytes() []byte {
	var buf bytes.Buffer
	// Serialize never fails against a bytes.Buffer.
	_ = h.Serialize(&buf)
	return buf.Bytes()
}

// BlockHash returns the BLAKE2-256 hash of the serialized header. This
// is the block's identity.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	return chainhash.HashH(h.headerBytes())
}

// Hash returns the identity hash of the block.
func (b *MsgBlock) Hash() chainhash.Hash {
	return b.Header.BlockHash()
}

// ComputeMerkleRoot derives the merkle root over the block's
// transaction hashes and returns it; callers assign the result to
// Header.MerkleRoot. Leaves are
// combined pairwise with BLAKE2-256 over the concatenation of the two
// child hashes; an odd trailing leaf is duplicated, matching the
// standard Merkle-tree-over-txids construction used throughout the
// corpus.
func (b *MsgBlock) ComputeMerkleRoot() chainhash.Hash {
	if len(b.Transactions) == 0 {
		return chainhash.Hash{}
	}
	level := make([]chainhash.Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		level[i] = tx.TxHash()
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			var buf [64]byte
			copy(buf[:32], level[2*i][:])
			copy(buf[32:], level[2*i+1][:])
			next[i] = chainhash.HashH(buf[:])
		}
		level = next
	}
	return level[0]
}
