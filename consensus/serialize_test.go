package consensus

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/epic-project/epicd/chainhash"
)

func TestMilestoneSerializeRoundTrip(t *testing.T) {
	ms := &Milestone{
		Height:          7,
		Chainwork:       big.NewInt(123456789),
		MilestoneTarget: 0x1d00ffff,
		BlockTarget:     0x1e00ffff,
		HashRate:        42.5,
		LastUpdateTime:  1700000000,
		NTxnsCounter:    10,
		NBlocksCounter:  3,
		LevelSet:        []chainhash.Hash{chainhash.HashH([]byte("a")), chainhash.HashH([]byte("b"))},
		MSVertexIndex:   1,
	}

	var buf bytes.Buffer
	if err := ms.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: unexpected error: %v", err)
	}

	got := &Milestone{}
	if err := got.Deserialize(&buf); err != nil {
		t.Fatalf("Deserialize: unexpected error: %v", err)
	}

	if got.Height != ms.Height || got.Chainwork.Cmp(ms.Chainwork) != 0 ||
		got.MilestoneTarget != ms.MilestoneTarget || got.BlockTarget != ms.BlockTarget ||
		got.LastUpdateTime != ms.LastUpdateTime || got.NTxnsCounter != ms.NTxnsCounter ||
		got.NBlocksCounter != ms.NBlocksCounter || got.MSVertexIndex != ms.MSVertexIndex ||
		len(got.LevelSet) != len(ms.LevelSet) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, ms)
	}
	for i := range ms.LevelSet {
		if got.LevelSet[i] != ms.LevelSet[i] {
			t.Fatalf("LevelSet[%d] mismatch", i)
		}
	}
}

func TestVertexSerializeMetaRoundTrip(t *testing.T) {
	v := &Vertex{
		Hash:             chainhash.HashH([]byte("block")),
		Height:           3,
		CumulativeReward: 5000,
		MinerChainHeight: 2,
		Validity:         []TxValidity{TxValid, TxInvalid},
		RedemptionStatus: NotYetRedeemed,
	}

	var buf bytes.Buffer
	if err := v.SerializeMeta(&buf, nil); err != nil {
		t.Fatalf("SerializeMeta: unexpected error: %v", err)
	}

	got := &Vertex{}
	ms, err := got.DeserializeMeta(&buf)
	if err != nil {
		t.Fatalf("DeserializeMeta: unexpected error: %v", err)
	}
	if ms != nil {
		t.Fatal("expected no embedded milestone")
	}
	if got.Height != v.Height || got.CumulativeReward != v.CumulativeReward ||
		got.MinerChainHeight != v.MinerChainHeight || got.RedemptionStatus != v.RedemptionStatus ||
		len(got.Validity) != len(v.Validity) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, v)
	}
}

func TestVertexSerializeMetaWithMilestone(t *testing.T) {
	ms := &Milestone{
		Height:          1,
		Chainwork:       big.NewInt(1),
		MilestoneTarget: 0x1d00ffff,
		BlockTarget:     0x1d00ffff,
		LevelSet:        []chainhash.Hash{chainhash.HashH([]byte("x"))},
		MSVertexIndex:   0,
	}
	v := &Vertex{IsMilestone: true}

	var buf bytes.Buffer
	if err := v.SerializeMeta(&buf, ms); err != nil {
		t.Fatalf("SerializeMeta: unexpected error: %v", err)
	}

	got := &Vertex{}
	gotMS, err := got.DeserializeMeta(&buf)
	if err != nil {
		t.Fatalf("DeserializeMeta: unexpected error: %v", err)
	}
	if gotMS == nil || gotMS.Height != ms.Height {
		t.Fatal("expected embedded milestone to round trip")
	}
}
