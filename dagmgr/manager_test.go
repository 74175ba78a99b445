package dagmgr

import (
	"testing"
	"time"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/consensus"
	"github.com/epic-project/epicd/dagconfig"
	"github.com/epic-project/epicd/pow"
	"github.com/epic-project/epicd/store"
	"github.com/epic-project/epicd/wire"
)

func firstRegistrationBlock(parent chainhash.Hash, nonce uint32) *wire.MsgBlock {
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
			Timestamp:     uint32(time.Now().Unix()),
			Bits:          0x207fffff,
			Nonce:         nonce,
			Proof:         []uint32{1},
		},
		Transactions: []*wire.MsgTx{tx},
	}
	b.Header.MerkleRoot = b.ComputeMerkleRoot()
	for !pow.MeetsTarget(b.Hash(), b.Header.Bits) {
		b.Header.Nonce++
	}
	return b
}

func newTestManager(t *testing.T) (*Manager, chainhash.Hash) {
	t.Helper()
	params := &dagconfig.UnittestParams
	st, err := store.Open(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("store.Open: unexpected error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	genesis := consensus.NewGenesisMilestone(params, uint32(time.Now().Unix()))
	m := NewManager(params, st, genesis)
	t.Cleanup(m.Shutdown)

	var genesisHash chainhash.Hash
	return m, genesisHash
}

func drain(m *Manager) {
	m.verifyPool.Shutdown()
	m.verifyPool = NewExecutor(256)
}

func TestManagerAddNewBlockFormsMilestone(t *testing.T) {
	m, genesisHash := newTestManager(t)
	block := firstRegistrationBlock(genesisHash, 1)

	m.AddNewBlock(block, genesisHash)
	drain(m)

	best := m.Chains.Best()
	if best.Head().Height != 1 {
		t.Fatalf("Head().Height = %d, want 1", best.Head().Height)
	}
	v, ok := best.RecentHistory[block.Hash()]
	if !ok || !v.IsMilestone {
		t.Fatal("expected the submitted block to be recorded as a milestone vertex")
	}
}

func TestManagerHoldsBlockWithMissingParent(t *testing.T) {
	m, _ := newTestManager(t)
	missingParent := chainhash.HashH([]byte("nonexistent"))
	block := firstRegistrationBlock(missingParent, 7)

	var genesisHash chainhash.Hash
	m.AddNewBlock(block, genesisHash)
	drain(m)

	if m.OBC.Len() == 0 {
		t.Fatal("expected the block to be parked in the orphan container")
	}
}

func TestManagerRejectsSyntacticallyInvalidBlock(t *testing.T) {
	m, genesisHash := newTestManager(t)
	block := firstRegistrationBlock(genesisHash, 1)
	block.Header.Version = 0

	m.AddNewBlock(block, genesisHash)
	drain(m)

	if _, ok := m.cachedBlock(block.Hash()); ok {
		t.Fatal("expected the invalid block to be dropped before caching")
	}
}

func TestNewManagerFromStoreRehydratesFlushedHead(t *testing.T) {
	params := &dagconfig.UnittestParams
	dir := t.TempDir()

	st, err := store.Open(dir, 0, 0)
	if err != nil {
		t.Fatalf("store.Open: unexpected error: %v", err)
	}

	block := firstRegistrationBlock(chainhash.Hash{}, 1)
	hash := block.Hash()
	vertex := consensus.NewVertex(hash, block)
	vertex.IsMilestone = true
	vertex.Height = 1
	vertex.Validity[0] = consensus.TxValid

	ms := &consensus.Milestone{
		Height:          1,
		Chainwork:       pow.Work(params.MaxTarget),
		MilestoneTarget: params.MaxTarget,
		BlockTarget:     params.MaxTarget,
		LastUpdateTime:  uint32(time.Now().Unix()),
		LevelSet:        []chainhash.Hash{hash},
		MSVertexIndex:   0,
		TXOC:            consensus.NewTXOC(),
		RegChange:       consensus.NewRegChange(),
	}

	if err := st.StoreLevelSet(map[chainhash.Hash]*consensus.Vertex{hash: vertex}, ms); err != nil {
		t.Fatalf("StoreLevelSet: unexpected error: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %v", err)
	}

	reopened, err := store.Open(dir, 0, 0)
	if err != nil {
		t.Fatalf("store.Open (reopen): unexpected error: %v", err)
	}
	t.Cleanup(func() { reopened.Close() })

	genesis := consensus.NewGenesisMilestone(params, uint32(time.Now().Unix()))
	m, err := NewManagerFromStore(params, reopened, genesis)
	if err != nil {
		t.Fatalf("NewManagerFromStore: unexpected error: %v", err)
	}
	t.Cleanup(m.Shutdown)

	best := m.Chains.Best()
	if best == nil {
		t.Fatal("expected a rehydrated main chain")
	}
	if best.Head().Height != 1 {
		t.Fatalf("Head().Height = %d, want 1", best.Head().Height)
	}
	if len(best.Head().LevelSet) != 1 || best.Head().LevelSet[0] != hash {
		t.Fatalf("Head().LevelSet = %v, want [%s]", best.Head().LevelSet, hash)
	}
}

func TestNewManagerFromStoreFallsBackToGenesisWhenEmpty(t *testing.T) {
	params := &dagconfig.UnittestParams
	st, err := store.Open(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("store.Open: unexpected error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	genesis := consensus.NewGenesisMilestone(params, uint32(time.Now().Unix()))
	m, err := NewManagerFromStore(params, st, genesis)
	if err != nil {
		t.Fatalf("NewManagerFromStore: unexpected error: %v", err)
	}
	t.Cleanup(m.Shutdown)

	if m.Chains.Best().Head().Height != 0 {
		t.Fatalf("Head().Height = %d, want 0 (genesis)", m.Chains.Best().Head().Height)
	}
}
