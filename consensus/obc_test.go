package consensus

import (
	"testing"
	"time"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/wire"
)

func blockWithParents(seed string, ms, tip, prev chainhash.Hash) *wire.MsgBlock {
	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:       1,
			MilestoneHash: ms,
			TipHash:       tip,
			PrevHash:      prev,
			Timestamp:     1700000000,
			Bits:          0x1d00ffff,
			Nonce:         uint32(len(seed)),
		},
	}
}

func TestOBCReleasesOnSingleMissingParent(t *testing.T) {
	o := NewOBC()
	missingHash := chainhash.HashH([]byte("missing"))
	block := blockWithParents("a", missingHash, missingHash, missingHash)

	o.AddBlock(block, MissingMilestone|MissingTip|MissingPrevious)
	if o.Len() == 0 {
		t.Fatal("expected AddBlock to register a dep-node")
	}

	released := o.SubmitHash(missingHash)
	if len(released) != 1 || released[0].Hash() != block.Hash() {
		t.Fatalf("expected the orphan to be released, got %d blocks", len(released))
	}
	if o.Len() != 0 {
		t.Fatalf("expected OBC to be empty after release, got %d nodes", o.Len())
	}
}

func TestOBCWaitsForAllDistinctParents(t *testing.T) {
	o := NewOBC()
	msHash := chainhash.HashH([]byte("ms"))
	tipHash := chainhash.HashH([]byte("tip"))
	block := blockWithParents("a", msHash, tipHash, tipHash)

	o.AddBlock(block, MissingMilestone|MissingTip|MissingPrevious)

	released := o.SubmitHash(tipHash)
	if len(released) != 0 {
		t.Fatal("block should still be waiting on its milestone parent")
	}

	released = o.SubmitHash(msHash)
	if len(released) != 1 {
		t.Fatalf("expected release once the last distinct parent arrives, got %d", len(released))
	}
}

func TestOBCDisabledIgnoresAdd(t *testing.T) {
	o := NewOBC()
	o.SetEnabled(false)
	missingHash := chainhash.HashH([]byte("missing"))
	block := blockWithParents("a", missingHash, missingHash, missingHash)

	o.AddBlock(block, MissingMilestone)
	if o.Len() != 0 {
		t.Fatal("expected AddBlock to be a no-op while disabled")
	}
}

func TestOBCPruneEvictsStaleSubtree(t *testing.T) {
	o := NewOBC()
	missingHash := chainhash.HashH([]byte("missing"))
	block := blockWithParents("a", missingHash, missingHash, missingHash)
	o.AddBlock(block, MissingMilestone)

	future := time.Now().Add(time.Hour)
	o.Prune(60, future)
	if o.Len() != 0 {
		t.Fatalf("expected Prune to evict the stale tree, got %d nodes remaining", o.Len())
	}
}
