// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/epic-project/epicd/chainhash"
)

// MaxListingSize bounds the byte size of a single signature or locking
// listing, preventing a malformed length prefix from exhausting memory.
const MaxListingSize = 16384

// OutPoint identifies a single transaction output by the hash of its
// containing block, the index of the transaction within that block,
// and the index of the output within that transaction.
type OutPoint struct {
	BlockHash chainhash.Hash
	TxIndex   uint32
	OutIndex  uint32
}

// IsNull reports whether the outpoint is the null outpoint used by
// first-registration inputs.
func (o OutPoint) IsNull() bool {
	return o.BlockHash == chainhash.Hash{} && o.TxIndex == 0 && o.OutIndex == 0
}

func (o *OutPoint) serialize(w io.Writer) error {
	if _, err := w.Write(o.BlockHash[:]); err != nil {
		return err
	}
	if err := writeUint32(w, o.TxIndex); err != nil {
		return err
	}
	return writeUint32(w, o.OutIndex)
}

func (o *OutPoint) deserialize(r io.Reader) error {
	if _, err := io.ReadFull(r, o.BlockHash[:]); err != nil {
		return err
	}
	var err error
	if o.TxIndex, err = readUint32(r); err != nil {
		return err
	}
	o.OutIndex, err = readUint32(r)
	return err
}

// TxIn is a transaction input: the outpoint it spends (or the null
// outpoint for a first registration), a signature listing proving the
// right to spend it, and the spending public key.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureListing []byte
	PublicKey        []byte
}

func (in *TxIn) serialize(w io.Writer) error {
	if err := in.PreviousOutPoint.serialize(w); err != nil {
		return err
	}
	if err := writeVarBytes(w, in.SignatureListing); err != nil {
		return err
	}
	return writeVarBytes(w, in.PublicKey)
}

func (in *TxIn) deserialize(r io.Reader) error {
	if err := in.PreviousOutPoint.deserialize(r); err != nil {
		return err
	}
	var err error
	if in.SignatureListing, err = readVarBytes(r, MaxListingSize); err != nil {
		return err
	}
	in.PublicKey, err = readVarBytes(r, MaxListingSize)
	return err
}

// TxOut is a transaction output: an amount and the locking listing
// that gates spending it.
type TxOut struct {
	Value          uint64
	LockingListing []byte
}

// Serialize writes the output to w: value followed by its locking
// listing. Exported so a single output can be persisted standalone
// in the block store's utxo column, outside the context of a full
// transaction.
func (out *TxOut) Serialize(w io.Writer) error {
	return out.serialize(w)
}

// Deserialize reads an output back from r.
func (out *TxOut) Deserialize(r io.Reader) error {
	return out.deserialize(r)
}

func (out *TxOut) serialize(w io.Writer) error {
	if err := writeUint64(w, out.Value); err != nil {
		return err
	}
	return writeVarBytes(w, out.LockingListing)
}

func (out *TxOut) deserialize(r io.Reader) error {
	var err error
	if out.Value, err = readUint64(r); err != nil {
		return err
	}
	out.LockingListing, err = readVarBytes(r, MaxListingSize)
	return err
}

// MsgTx is a transaction: an ordered list of inputs and outputs.
type MsgTx struct {
	Version uint16
	TxIn    []*TxIn
	TxOut   []*TxOut
}

// Serialize writes the transaction to w.
func (tx *MsgTx) Serialize(w io.Writer) error {
	if err := writeUint16(w, tx.Version); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(tx.TxIn))); err != nil {
		return err
	}
	for _, in := range tx.TxIn {
		if err := in.serialize(w); err != nil {
			return err
		}
	}
	if err := WriteVarInt(w, uint64(len(tx.TxOut))); err != nil {
		return err
	}
	for _, out := range tx.TxOut {
		if err := out.serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads a transaction from r.
func (tx *MsgTx) Deserialize(r io.Reader) error {
	var err error
	if tx.Version, err = readUint16(r); err != nil {
		return err
	}
	nIn, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	tx.TxIn = make([]*TxIn, nIn)
	for i := range tx.TxIn {
		in := new(TxIn)
		if err := in.deserialize(r); err != nil {
			return err
		}
		tx.TxIn[i] = in
	}
	nOut, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	tx.TxOut = make([]*TxOut, nOut)
	for i := range tx.TxOut {
		out := new(TxOut)
		if err := out.deserialize(r); err != nil {
			return err
		}
		tx.TxOut[i] = out
	}
	return nil
}

// TxHash returns the BLAKE2-256 hash of the serialized transaction.
func (tx *MsgTx) TxHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = tx.Serialize(&buf)
	return chainhash.HashH(buf.Bytes())
}

// Kind classifies a transaction per the specification's three shapes.
type Kind int

// Transaction kinds.
const (
	KindNormal Kind = iota
	KindFirstRegistration
	KindRegistration
)

// Classify determines the transaction's kind from its input shape. A
// first registration has exactly one input, bound to the null
// outpoint, with a single zero-value output; that shape is
// unambiguous and fully determines KindFirstRegistration. A
// registration (redemption) is shape-compatible with an ordinary
// single-input spend (one input, referencing a real outpoint): the
// two are only distinguished by whether that outpoint names the last
// registration on the block's own peer chain, which requires chain
// state. Classify therefore reports KindRegistration only as a
// candidate; callers that can consult prev_redem_hash_map / the store
// (see consensus.Chain.Verify) make the final call and fall back to
// KindNormal when the referenced outpoint is not that registration.
func (tx *MsgTx) Classify() Kind {
	if len(tx.TxIn) == 1 && tx.TxIn[0].PreviousOutPoint.IsNull() {
		if len(tx.TxOut) == 1 && tx.TxOut[0].Value == 0 {
			return KindFirstRegistration
		}
	}
	if len(tx.TxIn) == 1 && !tx.TxIn[0].PreviousOutPoint.IsNull() {
		return KindRegistration
	}
	return KindNormal
}
