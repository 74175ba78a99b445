package store

import (
	"math/big"
	"testing"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/consensus"
	"github.com/epic-project/epicd/wire"
)

func sampleMilestoneBlock() *wire.MsgBlock {
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
			Version:   1,
			Timestamp: 1700000000,
			Bits:      0x207fffff,
			Nonce:     1,
		},
		Transactions: []*wire.MsgTx{tx},
	}
	b.Header.MerkleRoot = b.ComputeMerkleRoot()
	return b
}

func TestStoreLevelSetAndGetMilestoneAt(t *testing.T) {
	s, err := Open(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("Open: unexpected error: %v", err)
	}
	defer s.Close()

	block := sampleMilestoneBlock()
	hash := block.Hash()

	vertex := consensus.NewVertex(hash, block)
	vertex.IsMilestone = true
	vertex.Height = 1
	vertex.Validity[0] = consensus.TxValid

	ms := &consensus.Milestone{
		Height:          1,
		Chainwork:       big.NewInt(1000),
		MilestoneTarget: 0x207fffff,
		BlockTarget:     0x207fffff,
		LevelSet:        []chainhash.Hash{hash},
		MSVertexIndex:   0,
		TXOC:            consensus.NewTXOC(),
		RegChange:       consensus.NewRegChange(),
	}

	vertices := map[chainhash.Hash]*consensus.Vertex{hash: vertex}
	if err := s.StoreLevelSet(vertices, ms); err != nil {
		t.Fatalf("StoreLevelSet: unexpected error: %v", err)
	}

	got, err := s.GetMilestoneAt(1)
	if err != nil {
		t.Fatalf("GetMilestoneAt: unexpected error: %v", err)
	}
	if got.Hash != hash {
		t.Fatalf("GetMilestoneAt hash = %s, want %s", got.Hash, hash)
	}
	if !got.IsMilestone {
		t.Fatal("expected reconstructed vertex to carry IsMilestone")
	}
	if got.Block == nil || got.Block.Hash() != hash {
		t.Fatal("expected reconstructed vertex to include the milestone block")
	}
}

func TestStoreGetMilestoneMetaAndBlockTimeAt(t *testing.T) {
	s, err := Open(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("Open: unexpected error: %v", err)
	}
	defer s.Close()

	block := sampleMilestoneBlock()
	hash := block.Hash()

	vertex := consensus.NewVertex(hash, block)
	vertex.IsMilestone = true
	vertex.Height = 1
	vertex.Validity[0] = consensus.TxValid

	ms := &consensus.Milestone{
		Height:          1,
		Chainwork:       big.NewInt(4242),
		MilestoneTarget: 0x207fffff,
		BlockTarget:     0x207fffff,
		HashRate:        3.5,
		LastUpdateTime:  1700000000,
		NTxnsCounter:    7,
		NBlocksCounter:  2,
		LevelSet:        []chainhash.Hash{hash},
		MSVertexIndex:   0,
		TXOC:            consensus.NewTXOC(),
		RegChange:       consensus.NewRegChange(),
	}

	vertices := map[chainhash.Hash]*consensus.Vertex{hash: vertex}
	if err := s.StoreLevelSet(vertices, ms); err != nil {
		t.Fatalf("StoreLevelSet: unexpected error: %v", err)
	}

	got, err := s.GetMilestoneMeta(1)
	if err != nil {
		t.Fatalf("GetMilestoneMeta: unexpected error: %v", err)
	}
	if got.Chainwork.Cmp(ms.Chainwork) != 0 {
		t.Fatalf("Chainwork = %s, want %s", got.Chainwork, ms.Chainwork)
	}
	if got.HashRate != ms.HashRate || got.LastUpdateTime != ms.LastUpdateTime {
		t.Fatalf("HashRate/LastUpdateTime = %v/%d, want %v/%d", got.HashRate, got.LastUpdateTime, ms.HashRate, ms.LastUpdateTime)
	}
	if got.NTxnsCounter != ms.NTxnsCounter || got.NBlocksCounter != ms.NBlocksCounter {
		t.Fatalf("counters = %d/%d, want %d/%d", got.NTxnsCounter, got.NBlocksCounter, ms.NTxnsCounter, ms.NBlocksCounter)
	}
	if len(got.LevelSet) != 1 || got.LevelSet[0] != hash {
		t.Fatalf("LevelSet = %v, want [%s]", got.LevelSet, hash)
	}

	ts, ok := s.BlockTimeAt(1)
	if !ok {
		t.Fatal("expected BlockTimeAt to resolve height 1")
	}
	if ts != block.Header.Timestamp {
		t.Fatalf("BlockTimeAt = %d, want %d", ts, block.Header.Timestamp)
	}
}

func TestStoreGetVertexWithoutBlock(t *testing.T) {
	s, err := Open(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("Open: unexpected error: %v", err)
	}
	defer s.Close()

	block := sampleMilestoneBlock()
	hash := block.Hash()
	vertex := consensus.NewVertex(hash, block)
	vertex.Validity[0] = consensus.TxValid

	ms := &consensus.Milestone{
		Height:        1,
		Chainwork:     big.NewInt(1),
		LevelSet:      []chainhash.Hash{hash},
		MSVertexIndex: 0,
		TXOC:          consensus.NewTXOC(),
		RegChange:     consensus.NewRegChange(),
	}
	vertex.IsMilestone = true
	vertices := map[chainhash.Hash]*consensus.Vertex{hash: vertex}
	if err := s.StoreLevelSet(vertices, ms); err != nil {
		t.Fatalf("StoreLevelSet: unexpected error: %v", err)
	}

	got, err := s.GetVertex(hash, false)
	if err != nil {
		t.Fatalf("GetVertex: unexpected error: %v", err)
	}
	if got.Block != nil {
		t.Fatal("expected Block to be nil when withBlock=false")
	}
}
