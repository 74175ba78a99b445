package wire

import (
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/epic-project/epicd/chainhash"
)

func sampleBlock() *MsgBlock {
	b := &MsgBlock{
		Header: BlockHeader{
			Version:       1,
			MilestoneHash: chainhash.HashH([]byte("ms")),
			PrevHash:      chainhash.HashH([]byte("prev")),
			TipHash:       chainhash.HashH([]byte("tip")),
			Timestamp:     1700000000,
			Bits:          0x1d00ffff,
			Nonce:         42,
			Proof:         []uint32{1, 2, 3, 4},
		},
	}
	tx := &MsgTx{
		Version: 1,
		TxIn: []*TxIn{{
			PreviousOutPoint: OutPoint{},
			SignatureListing: []byte{0x01, 0x02},
			PublicKey:        []byte{0x03, 0x04},
		}},
		TxOut: []*TxOut{{Value: 0, LockingListing: []byte{0x05}}},
	}
	b.Transactions = []*MsgTx{tx}
	b.Header.MerkleRoot = b.ComputeMerkleRoot()
	return b
}

func TestBlockRoundTrip(t *testing.T) {
	b := sampleBlock()
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("Bytes: unexpected error: %v", err)
	}

	b2, err := BlockFromBytes(data)
	if err != nil {
		t.Fatalf("BlockFromBytes: unexpected error: %v", err)
	}

	if !reflect.DeepEqual(b.Header, b2.Header) {
		t.Errorf("header mismatch:\ngot:  %s\nwant: %s", spew.Sdump(b2.Header), spew.Sdump(b.Header))
	}
	if len(b2.Transactions) != len(b.Transactions) {
		t.Fatalf("transaction count mismatch: got %d want %d", len(b2.Transactions), len(b.Transactions))
	}
	if b2.Hash() != b.Hash() {
		t.Errorf("hash mismatch after round trip: got %s want %s", b2.Hash(), b.Hash())
	}
}

func TestClassifyFirstRegistration(t *testing.T) {
	tx := &MsgTx{
		TxIn:  []*TxIn{{PreviousOutPoint: OutPoint{}}},
		TxOut: []*TxOut{{Value: 0}},
	}
	if got := tx.Classify(); got != KindFirstRegistration {
		t.Errorf("Classify: got %v want KindFirstRegistration", got)
	}
}

func TestClassifyNormal(t *testing.T) {
	tx := &MsgTx{
		TxIn: []*TxIn{
			{PreviousOutPoint: OutPoint{TxIndex: 1}},
			{PreviousOutPoint: OutPoint{TxIndex: 2}},
		},
		TxOut: []*TxOut{{Value: 5}},
	}
	if got := tx.Classify(); got != KindNormal {
		t.Errorf("Classify: got %v want KindNormal", got)
	}
}

func TestBlockHashChangesWithNonce(t *testing.T) {
	b := sampleBlock()
	h1 := b.Hash()
	b.Header.Nonce++
	h2 := b.Hash()
	if h1 == h2 {
		t.Errorf("expected hash to change when nonce changes")
	}
}
