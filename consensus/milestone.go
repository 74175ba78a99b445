package consensus

import (
	"io"
	"math"
	"math/big"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/dagconfig"
	"github.com/epic-project/epicd/pow"
	"github.com/epic-project/epicd/wire"
)

// emaAlpha is the smoothing factor for the moving-average hashrate
// update in UpdateDifficulty: hr' = alpha*hr + (1-alpha)*sample.
const emaAlpha = 0.8

// Milestone is the snapshot formed every time a block meets the
// milestone target. Height numbers milestones 0..N with genesis at
// 0. LevelSet holds the hashes of every vertex the milestone anchors,
// in post-order, with the milestone's own hash kept last per the
// source's convention; MSVertexIndex makes that convention an
// explicit, load-verified field instead of an implicit "last
// element" rule (Design Notes §9 Open Question).
type Milestone struct {
	Height uint64

	Chainwork *big.Int

	// MilestoneTarget and BlockTarget are this milestone's current
	// compact-form difficulty targets: the PoW bar a block must clear
	// to itself be a milestone, and the (usually easier) bar for an
	// ordinary block anchored beneath it.
	MilestoneTarget uint32
	BlockTarget     uint32

	// HashRate is the exponential moving average of network hashrate,
	// updated on every milestone regardless of whether this one falls
	// on a retarget boundary.
	HashRate float64

	// LastUpdateTime is the block_time baseline the next retarget's
	// timespan is measured from.
	LastUpdateTime uint32

	// NTxnsCounter and NBlocksCounter accumulate since the last
	// retarget and are consumed (then reset to zero) by the next one.
	NTxnsCounter   uint64
	NBlocksCounter uint64

	LevelSet       []chainhash.Hash
	MSVertexIndex  int

	TXOC      *TXOC
	RegChange *RegChange

	Stored bool
}

// NewGenesisMilestone returns the height-0 milestone seeding a
// Chain, parameterized entirely from network params.
func NewGenesisMilestone(params *dagconfig.Params, genesisTime uint32) *Milestone {
	return &Milestone{
		Height:          0,
		Chainwork:       pow.Work(params.MaxTarget),
		MilestoneTarget: params.MaxTarget,
		BlockTarget:     params.MaxTarget,
		HashRate:        0,
		LastUpdateTime:  genesisTime,
		LevelSet:        nil,
		MSVertexIndex:   0,
		TXOC:            NewTXOC(),
		RegChange:       NewRegChange(),
	}
}

// clampInt64 clamps v to [lo, hi].
func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// UpdateDifficulty derives the next milestone's difficulty state from
// its predecessor (prev) and blockTime, the new milestone block's
// timestamp, implementing §4.4 exactly: EMA hashrate update every
// milestone, target retarget only at TimeInterval boundaries, with
// the per-block target derived from observed transaction arrival
// rate and capped/floored against the milestone target.
func UpdateDifficulty(prev *Milestone, height uint64, blockTime uint32, params *dagconfig.Params) *Milestone {
	next := &Milestone{
		Height:          height,
		MilestoneTarget: prev.MilestoneTarget,
		BlockTarget:     prev.BlockTarget,
		LastUpdateTime:  prev.LastUpdateTime,
		NTxnsCounter:    0,
		NBlocksCounter:  0,
		TXOC:            NewTXOC(),
		RegChange:       NewRegChange(),
	}

	timespan := clampInt64(
		int64(blockTime)-int64(prev.LastUpdateTime),
		params.TargetTimespan/4,
		params.TargetTimespan*4,
	)
	if timespan <= 0 {
		timespan = 1
	}

	positionInCycle := (height - 1) % params.TimeInterval
	sample := float64(positionInCycle+1) * pow.BigToFloat(pow.CompactToBig(prev.MilestoneTarget)) / float64(timespan)
	next.HashRate = emaAlpha*prev.HashRate + (1-emaAlpha)*sample

	if height%params.TimeInterval != 0 {
		// Not a retarget boundary: carry forward targets and counters.
		next.Chainwork = new(big.Int).Add(prev.Chainwork, pow.Work(prev.MilestoneTarget))
		next.NTxnsCounter = prev.NTxnsCounter
		next.NBlocksCounter = prev.NBlocksCounter
		return next
	}

	msTargetBig := pow.CompactToBig(prev.MilestoneTarget)
	msTargetBig.Mul(msTargetBig, big.NewInt(timespan))
	msTargetBig.Div(msTargetBig, big.NewInt(params.TargetTimespan))
	msCompact := pow.BigToCompact(msTargetBig)
	msCompact = pow.ClampCompact(msCompact, 0, params.MaxTarget)
	next.MilestoneTarget = msCompact

	if msCompact == params.MaxTarget {
		next.BlockTarget = msCompact
	} else {
		avgTxnsPerBlock := float64(0)
		if prev.NBlocksCounter > 0 {
			avgTxnsPerBlock = float64(prev.NTxnsCounter) / float64(prev.NBlocksCounter)
		}

		maxArrival := int64(params.TargetTPS) * params.TargetTimespan
		arrival := int64(prev.NTxnsCounter)
		if avgTxnsPerBlock > 0.95*float64(params.BlockCapacity) {
			arrival = int64(float64(arrival) * 1.1)
		}
		if arrival > maxArrival {
			arrival = maxArrival
		}

		leadingZeroBound := int64(1) << uint(leadingZeros(params.MaxTarget))
		arrival = clampInt64(arrival, 1, leadingZeroBound)

		blkTargetBig := pow.CompactToBig(msCompact)
		blkTargetBig.Mul(blkTargetBig, big.NewInt(arrival))
		blkTargetBig.Div(blkTargetBig, big.NewInt(int64(params.BlockCapacity)))
		blkCompact := pow.BigToCompact(blkTargetBig)
		blkCompact = pow.ClampCompact(blkCompact, msCompact, params.MaxTarget)
		next.BlockTarget = blkCompact
	}

	next.LastUpdateTime = blockTime
	next.Chainwork = new(big.Int).Add(prev.Chainwork, pow.Work(prev.MilestoneTarget))
	return next
}

// leadingZeros returns the number of leading zero bits in the
// 32-bit compact target's exponent byte, bounding the txn-arrival
// clamp to a value derivable purely from network parameters.
func leadingZeros(compact uint32) uint {
	var n uint
	for i := 31; i >= 0; i-- {
		if compact&(1<<uint(i)) != 0 {
			break
		}
		n++
	}
	return n
}

// RestartDifficulty implements the §4.4 restart path: when
// last_update_time is zero (the in-memory state was lost across a
// restart and no retarget has happened yet), walk backwards along
// milestone parents accumulating valid-txn and block counts until
// the previous difficulty-transition point, and use that milestone's
// time as the baseline. lookup resolves a milestone height to its
// Milestone and blockTime resolves a height to its anchor block's
// timestamp; both typically read through the Block Store on a cold
// start.
func RestartDifficulty(height uint64, lookup func(uint64) (*Milestone, bool), blockTime func(uint64) (uint32, bool), params *dagconfig.Params) (txnsCounter, blocksCounter uint64, baselineTime uint32, ok bool) {
	h := height
	for h > 0 {
		h--
		if h%params.TimeInterval == 0 {
			t, found := blockTime(h)
			if !found {
				return 0, 0, 0, false
			}
			return txnsCounter, blocksCounter, t, true
		}
		ms, found := lookup(h)
		if !found {
			return 0, 0, 0, false
		}
		txnsCounter += ms.NTxnsCounter
		blocksCounter += ms.NBlocksCounter
	}
	return 0, 0, 0, false
}

// Serialize writes the embedded-milestone portion of the §6 vertex
// persisted layout: everything needed to reconstruct a Milestone
// snapshot without re-deriving it from the level set. TXOC and
// RegChange are not included — by the time a milestone is flushed,
// both have already been applied to the ledger and the reg column,
// so persisting them again on the vertex record would be redundant.
func (m *Milestone) Serialize(w io.Writer) error {
	if err := wire.WriteVarInt(w, m.Height); err != nil {
		return err
	}
	chainworkBytes := m.Chainwork.Bytes()
	if err := wire.WriteVarInt(w, uint64(len(chainworkBytes))); err != nil {
		return err
	}
	if _, err := w.Write(chainworkBytes); err != nil {
		return err
	}
	if err := writeU32(w, m.MilestoneTarget); err != nil {
		return err
	}
	if err := writeU32(w, m.BlockTarget); err != nil {
		return err
	}
	if err := writeU32(w, math.Float32bits(float32(m.HashRate))); err != nil {
		return err
	}
	if err := writeU32(w, m.LastUpdateTime); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, m.NTxnsCounter); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, m.NBlocksCounter); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, uint64(len(m.LevelSet))); err != nil {
		return err
	}
	for _, h := range m.LevelSet {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}
	return wire.WriteVarInt(w, uint64(m.MSVertexIndex))
}

// Deserialize reads back the layout written by Serialize.
func (m *Milestone) Deserialize(r io.Reader) error {
	var err error
	if m.Height, err = wire.ReadVarInt(r); err != nil {
		return err
	}
	cwLen, err := wire.ReadVarInt(r)
	if err != nil {
		return err
	}
	cwBytes := make([]byte, cwLen)
	if _, err := io.ReadFull(r, cwBytes); err != nil {
		return err
	}
	m.Chainwork = new(big.Int).SetBytes(cwBytes)

	if m.MilestoneTarget, err = readU32(r); err != nil {
		return err
	}
	if m.BlockTarget, err = readU32(r); err != nil {
		return err
	}
	hrBits, err := readU32(r)
	if err != nil {
		return err
	}
	m.HashRate = float64(math.Float32frombits(hrBits))
	if m.LastUpdateTime, err = readU32(r); err != nil {
		return err
	}
	if m.NTxnsCounter, err = wire.ReadVarInt(r); err != nil {
		return err
	}
	if m.NBlocksCounter, err = wire.ReadVarInt(r); err != nil {
		return err
	}
	n, err := wire.ReadVarInt(r)
	if err != nil {
		return err
	}
	m.LevelSet = make([]chainhash.Hash, n)
	for i := range m.LevelSet {
		if _, err := io.ReadFull(r, m.LevelSet[i][:]); err != nil {
			return err
		}
	}
	idx, err := wire.ReadVarInt(r)
	if err != nil {
		return err
	}
	if n > 0 && idx >= n {
		return errSentinel("consensus: milestone vertex index out of level-set range")
	}
	m.MSVertexIndex = int(idx)
	return nil
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	_, err := w.Write(b[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// Reward computes the cumulative_reward carried forward by one
// block, per §4.4: the base per-block reward, minus a redemption
// output's value if this block redeems a registration, plus
// transaction fees, plus (for a milestone block) a bonus
// proportional to its level set's size.
func Reward(prevCumulative uint64, params *dagconfig.Params, fees uint64, isRedemption bool, redemptionValue uint64, isMilestone bool, levelSetSize int) uint64 {
	reward := prevCumulative + params.BlockReward
	if isRedemption && redemptionValue <= reward {
		reward -= redemptionValue
	}
	reward += fees
	if isMilestone && levelSetSize > 1 {
		bonus := params.BlockReward * uint64(levelSetSize-1) / params.MilestoneRewardCoefficient
		reward += bonus
	}
	return reward
}
