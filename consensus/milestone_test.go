package consensus

import (
	"testing"

	"github.com/epic-project/epicd/dagconfig"
)

func TestUpdateDifficultyNonRetargetCarriesForward(t *testing.T) {
	params := &dagconfig.UnittestParams
	genesis := NewGenesisMilestone(params, 1000)

	next := UpdateDifficulty(genesis, 1, 1010, params)
	if next.MilestoneTarget != genesis.MilestoneTarget {
		t.Fatalf("non-retarget height changed MilestoneTarget: got %x want %x", next.MilestoneTarget, genesis.MilestoneTarget)
	}
	if next.Chainwork.Cmp(genesis.Chainwork) <= 0 {
		t.Fatal("Chainwork did not increase")
	}
}

func TestUpdateDifficultyRetargetBoundary(t *testing.T) {
	params := &dagconfig.UnittestParams
	genesis := NewGenesisMilestone(params, 1000)

	var ms *Milestone = genesis
	for h := uint64(1); h <= params.TimeInterval; h++ {
		ms = UpdateDifficulty(ms, h, 1000+uint32(h)*uint32(params.TargetTimespan), params)
	}
	if ms.LastUpdateTime == genesis.LastUpdateTime {
		t.Fatal("expected LastUpdateTime to advance at the retarget boundary")
	}
}

func TestRewardAccumulatesFeesAndBase(t *testing.T) {
	params := &dagconfig.UnittestParams
	r := Reward(0, params, 5, false, 0, false, 0)
	if r != params.BlockReward+5 {
		t.Fatalf("Reward = %d, want %d", r, params.BlockReward+5)
	}
}

func TestRewardSubtractsRedemptionValue(t *testing.T) {
	params := &dagconfig.UnittestParams
	r := Reward(1000, params, 0, true, 100, false, 0)
	want := 1000 + params.BlockReward - 100
	if r != want {
		t.Fatalf("Reward = %d, want %d", r, want)
	}
}

func TestRewardAddsMilestoneBonus(t *testing.T) {
	params := &dagconfig.UnittestParams
	withoutBonus := Reward(0, params, 0, false, 0, false, 0)
	withBonus := Reward(0, params, 0, false, 0, true, 5)
	if withBonus <= withoutBonus {
		t.Fatal("milestone bonus did not increase reward")
	}
}

func TestRestartDifficultyWalksBackToBoundary(t *testing.T) {
	params := &dagconfig.UnittestParams // TimeInterval = 3

	milestones := map[uint64]*Milestone{
		4: {NTxnsCounter: 10, NBlocksCounter: 2},
	}
	blockTimes := map[uint64]uint32{
		3: 555,
	}
	lookup := func(h uint64) (*Milestone, bool) {
		ms, ok := milestones[h]
		return ms, ok
	}
	blockTime := func(h uint64) (uint32, bool) {
		t, ok := blockTimes[h]
		return t, ok
	}

	txns, blocks, baseline, ok := RestartDifficulty(5, lookup, blockTime, params)
	if !ok {
		t.Fatal("expected RestartDifficulty to find the retarget boundary")
	}
	if txns != 10 || blocks != 2 {
		t.Fatalf("txns/blocks = %d/%d, want 10/2", txns, blocks)
	}
	if baseline != 555 {
		t.Fatalf("baseline = %d, want 555", baseline)
	}
}

func TestRestartDifficultyAccumulatesAcrossMultipleHeights(t *testing.T) {
	params := &dagconfig.UnittestParams // TimeInterval = 3

	milestones := map[uint64]*Milestone{
		5: {NTxnsCounter: 3, NBlocksCounter: 1},
		4: {NTxnsCounter: 4, NBlocksCounter: 1},
	}
	blockTimes := map[uint64]uint32{
		3: 900,
	}
	lookup := func(h uint64) (*Milestone, bool) {
		ms, ok := milestones[h]
		return ms, ok
	}
	blockTime := func(h uint64) (uint32, bool) {
		t, ok := blockTimes[h]
		return t, ok
	}

	txns, blocks, baseline, ok := RestartDifficulty(6, lookup, blockTime, params)
	if !ok {
		t.Fatal("expected RestartDifficulty to find the retarget boundary")
	}
	if txns != 7 || blocks != 2 {
		t.Fatalf("txns/blocks = %d/%d, want 7/2", txns, blocks)
	}
	if baseline != 900 {
		t.Fatalf("baseline = %d, want 900", baseline)
	}
}

func TestRestartDifficultyMissingMilestoneFails(t *testing.T) {
	params := &dagconfig.UnittestParams

	lookup := func(h uint64) (*Milestone, bool) { return nil, false }
	blockTime := func(h uint64) (uint32, bool) { return 0, false }

	_, _, _, ok := RestartDifficulty(5, lookup, blockTime, params)
	if ok {
		t.Fatal("expected RestartDifficulty to fail when the store has no record of the parent height")
	}
}
