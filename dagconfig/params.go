// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package dagconfig defines the network-selection parameters consulted
// throughout the DAG consensus engine (difficulty, sortition, and
// finalization tuning), mirroring btcd/kaspad's per-network Params.
package dagconfig

import "time"

// Network identifies one of the three supported networks.
type Network string

// Supported networks.
const (
	Mainnet  Network = "mainnet"
	Testnet  Network = "testnet"
	Unittest Network = "unittest"
)

// Params holds every network-tunable constant named in the
// specification's network selection table.
type Params struct {
	// Name is a human readable identifier for the network.
	Name Network

	// TargetTimespan is the desired amount of time, in seconds, that
	// should elapse between difficulty-transition milestones.
	TargetTimespan int64

	// TimeInterval is the milestone height interval at which the
	// milestone and per-block difficulty targets are recomputed.
	TimeInterval uint64

	// TargetTPS is the target sustained transactions-per-second the
	// network is tuned for.
	TargetTPS uint64

	// PunctualityThreshold is the maximum number of milestones a
	// block's milestone parent may lag behind the current best head
	// before the block is rejected as stale, and the in-memory window
	// size that triggers a flush attempt.
	PunctualityThreshold uint64

	// SortitionCoefficient scales the transaction-distance sortition
	// check in Chain.verify.
	SortitionCoefficient uint64

	// SortitionThreshold is the number of trailing blocks of a peer
	// chain that a Cumulator aggregates over.
	SortitionThreshold uint64

	// MilestoneRewardCoefficient scales the extra reward a milestone
	// block earns proportional to its level-set size.
	MilestoneRewardCoefficient uint64

	// BlockCapacity is the nominal maximum number of transactions a
	// block can carry, used in both difficulty adjustment and reward.
	BlockCapacity uint64

	// CycleLen is, informatively, the number of time-intervals per
	// difficulty adjustment cycle (retained from the source for
	// parity; not consulted by the core consensus algorithms, which
	// derive cadence from TimeInterval directly).
	CycleLen uint64

	// DeleteForkThreshold is the chainwork deficit, measured in
	// trailing-milestone count, at which a losing fork chain becomes
	// eligible for deletion.
	DeleteForkThreshold uint64

	// MaxTarget is the highest (easiest) allowed proof-of-work target
	// in compact form for this network.
	MaxTarget uint32

	// GenesisHash is the identity of the network's genesis block.
	GenesisHash [32]byte

	// BlockReward is the base per-block reward increment added to
	// cumulative_reward in the §4.4 Reward formula. The specification
	// names the formula but not the constant; fixed here per network
	// rather than left as a magic number scattered through the
	// consensus package.
	BlockReward uint64
}

// MainnetParams are the parameters for the production network.
var MainnetParams = Params{
	Name:                       Mainnet,
	TargetTimespan:             86400,
	TimeInterval:               10,
	TargetTPS:                  1000,
	PunctualityThreshold:       7200,
	SortitionCoefficient:       100,
	SortitionThreshold:         1000,
	MilestoneRewardCoefficient: 50,
	BlockCapacity:              128,
	CycleLen:                   42,
	DeleteForkThreshold:        5,
	MaxTarget:                  0x1d00ffff,
	BlockReward:                50_00000000,
}

// TestnetParams are the parameters for the public test network.
var TestnetParams = Params{
	Name:                       Testnet,
	TargetTimespan:             100,
	TimeInterval:               10,
	TargetTPS:                  100,
	PunctualityThreshold:       7200,
	SortitionCoefficient:       100,
	SortitionThreshold:         100,
	MilestoneRewardCoefficient: 50,
	BlockCapacity:              128,
	CycleLen:                   4,
	DeleteForkThreshold:        5,
	MaxTarget:                  0x1e00ffff,
	BlockReward:                50_00000000,
}

// UnittestParams are the parameters used by the package test suites:
// small windows so tests run in milliseconds rather than minutes.
var UnittestParams = Params{
	Name:                       Unittest,
	TargetTimespan:             99,
	TimeInterval:               3,
	TargetTPS:                  100,
	PunctualityThreshold:       7200,
	SortitionCoefficient:       1,
	SortitionThreshold:         2,
	MilestoneRewardCoefficient: 1,
	BlockCapacity:              10,
	CycleLen:                   0,
	DeleteForkThreshold:        10,
	MaxTarget:                  0x207fffff,
	BlockReward:                50_00000000,
}

// ByName resolves a Network identifier to its Params, defaulting to
// Mainnet's parameters when the name is unrecognized.
func ByName(n Network) *Params {
	switch n {
	case Testnet:
		return &TestnetParams
	case Unittest:
		return &UnittestParams
	default:
		return &MainnetParams
	}
}

// TargetTimespanDuration returns TargetTimespan as a time.Duration.
func (p *Params) TargetTimespanDuration() time.Duration {
	return time.Duration(p.TargetTimespan) * time.Second
}
