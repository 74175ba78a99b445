package consensus

import (
	"testing"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/dagconfig"
	"github.com/epic-project/epicd/wire"
)

func firstRegistrationBlock(parent chainhash.Hash, seed string) *wire.MsgBlock {
	tx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{},
			SignatureListing: []byte{0x01},
			PublicKey:        []byte{0x02},
		}},
		TxOut: []*wire.TxOut{{Value: 0, LockingListing: []byte{0x03}}},
	}
	b := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:       1,
			MilestoneHash: parent,
			TipHash:       parent,
			PrevHash:      parent,
			Timestamp:     1700000000 + uint32(len(seed)),
			Bits:          0x207fffff,
			Nonce:         1,
		},
		Transactions: []*wire.MsgTx{tx},
	}
	b.Header.MerkleRoot = b.ComputeMerkleRoot()
	return b
}

func TestChainVerifyFirstRegistrationMilestone(t *testing.T) {
	params := &dagconfig.UnittestParams
	genesis := NewGenesisMilestone(params, 1000)
	c := NewChain(params, nil, genesis)

	var genesisHash chainhash.Hash
	block := firstRegistrationBlock(genesisHash, "a")
	c.AddPending(block)

	vertex, err := c.Verify(block)
	if err != nil {
		t.Fatalf("Verify: unexpected error: %v", err)
	}
	if !vertex.IsMilestone {
		t.Fatal("expected the verified block to form a milestone")
	}
	if vertex.Validity[0] != TxValid {
		t.Fatalf("expected first registration to validate, got %v", vertex.Validity[0])
	}
	if c.Head().Height != 1 {
		t.Fatalf("Head().Height = %d, want 1", c.Head().Height)
	}
	if got, ok := c.PrevRedemHashMap[block.Hash()]; !ok || got != block.Hash() {
		t.Fatal("expected prevRedemHashMap to map the new peer chain head to itself")
	}
	if len(c.PendingBlocks) != 0 {
		t.Fatalf("expected pending_blocks to be drained, got %d entries", len(c.PendingBlocks))
	}
}

func TestChainNewForkRollsBackNonMatchingMilestones(t *testing.T) {
	params := &dagconfig.UnittestParams
	genesis := NewGenesisMilestone(params, 1000)
	base := NewChain(params, nil, genesis)

	var genesisHash chainhash.Hash
	block := firstRegistrationBlock(genesisHash, "a")
	base.AddPending(block)
	if _, err := base.Verify(block); err != nil {
		t.Fatalf("Verify: unexpected error: %v", err)
	}

	forkBlock := firstRegistrationBlock(genesisHash, "b")
	fork := NewFork(base, forkBlock)

	if len(fork.States) != 1 {
		t.Fatalf("expected the non-matching milestone to be rolled back, got %d states", len(fork.States))
	}
	if _, ok := fork.PendingBlocks[block.Hash()]; !ok {
		t.Fatal("expected the rolled-back milestone's block to return to pending")
	}
}
