package consensus

import (
	"io"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/wire"
)

// TxValidity is the per-transaction verdict recorded in a Vertex's
// validity vector. It is never propagated as an error: a txn that
// fails validation simply marks Invalid and verification continues.
type TxValidity uint8

const (
	TxUnknown TxValidity = iota
	TxValid
	TxInvalid
)

func (v TxValidity) String() string {
	switch v {
	case TxUnknown:
		return "Unknown"
	case TxValid:
		return "Valid"
	case TxInvalid:
		return "Invalid"
	default:
		return "Invalid(?)"
	}
}

// RedemptionStatus tracks a registration block's place in its peer
// chain's redemption lifecycle. Blocks that are not registrations at
// all carry NotRedemption.
type RedemptionStatus uint8

const (
	NotRedemption RedemptionStatus = iota
	NotYetRedeemed
	Redeemed
)

func (s RedemptionStatus) String() string {
	switch s {
	case NotRedemption:
		return "NotRedemption"
	case NotYetRedeemed:
		return "NotYetRedeemed"
	case Redeemed:
		return "Redeemed"
	default:
		return "RedemptionStatus(?)"
	}
}

// Vertex is a block together with the post-validation metadata
// produced the one time it is verified. A vertex holds no pointer to
// the Milestone it forms: IsMilestone marks it, and the Milestone
// itself lives in the owning Chain's States (and, once flushed, in
// the store's record of this vertex).
type Vertex struct {
	Hash  chainhash.Hash
	Block *wire.MsgBlock

	// Height is the milestone-chain height of the milestone whose level
	// set anchors this vertex (its own height when it is the milestone).
	Height uint64

	// CumulativeReward is the running reward total at this block,
	// per the §4.4 Reward formula.
	CumulativeReward uint64

	// MinerChainHeight is the length of the peer chain ending at this
	// block (1 for a first registration).
	MinerChainHeight uint64

	// Validity holds one verdict per transaction carried by the
	// block (empty for a block with no payload).
	Validity []TxValidity

	// RedemptionStatus applies only to registration blocks.
	RedemptionStatus RedemptionStatus

	// IsMilestone reports whether this vertex formed a Milestone.
	// MilestoneIndex is not assigned by Chain.Verify or by the store
	// and stays zero.
	IsMilestone    bool
	MilestoneIndex int
}

// NewVertex allocates a shell for block prior to verification: zero
// metadata, one Unknown validity slot per transaction in the block's
// payload.
func NewVertex(hash chainhash.Hash, block *wire.MsgBlock) *Vertex {
	v := &Vertex{
		Hash:             hash,
		Block:            block,
		RedemptionStatus: NotRedemption,
	}
	if n := len(block.Transactions); n > 0 {
		v.Validity = make([]TxValidity, n)
	}
	return v
}

// AllValid reports whether every transaction in the vertex's payload
// validated successfully.
func (v *Vertex) AllValid() bool {
	for _, s := range v.Validity {
		if s != TxValid {
			return false
		}
	}
	return true
}

// SerializeMeta writes the vertex metadata layout from the
// specification's persisted layout section:
//
//	redeem_status (u8) | height (varint) | cumulative_reward (varint) |
//	miner_chain_height (varint) | validity (compact-size + u8*) |
//	ms_flag (u8) [| milestone if ms_flag > 0]
//
// The block itself is not part of this encoding — it lives in the
// paired blk file family at the same level-set position.
func (v *Vertex) SerializeMeta(w io.Writer, ms *Milestone) error {
	if _, err := w.Write([]byte{byte(v.RedemptionStatus)}); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, v.Height); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, v.CumulativeReward); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, v.MinerChainHeight); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, uint64(len(v.Validity))); err != nil {
		return err
	}
	for _, s := range v.Validity {
		if _, err := w.Write([]byte{byte(s)}); err != nil {
			return err
		}
	}
	msFlag := byte(0)
	if v.IsMilestone {
		msFlag = 1
	}
	if _, err := w.Write([]byte{msFlag}); err != nil {
		return err
	}
	if msFlag > 0 {
		if ms == nil {
			return errMissingMilestoneForSerialize
		}
		return ms.Serialize(w)
	}
	return nil
}

// DeserializeMeta reads back the layout written by SerializeMeta. The
// returned milestone is nil unless the ms_flag byte was set.
func (v *Vertex) DeserializeMeta(r io.Reader) (*Milestone, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	v.RedemptionStatus = RedemptionStatus(b[0])

	var err error
	if v.Height, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}
	if v.CumulativeReward, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}
	if v.MinerChainHeight, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}
	n, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	v.Validity = make([]TxValidity, n)
	for i := range v.Validity {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		v.Validity[i] = TxValidity(b[0])
	}
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	v.IsMilestone = b[0] > 0
	if !v.IsMilestone {
		return nil, nil
	}
	ms := &Milestone{}
	if err := ms.Deserialize(r); err != nil {
		return nil, err
	}
	return ms, nil
}

var errMissingMilestoneForSerialize = errSentinel("consensus: IsMilestone set but no Milestone provided to SerializeMeta")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
