package consensus

import (
	"math/big"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/dagconfig"
	"github.com/epic-project/epicd/listing"
	"github.com/epic-project/epicd/pow"
	"github.com/epic-project/epicd/wire"
)

// RegistrationLookup is the store-side fallback for a registration
// that has already been flushed out of a Chain's in-memory
// prevRedemHashMap.
type RegistrationLookup interface {
	LookupRegistration(peerChainHead chainhash.Hash) (chainhash.Hash, bool)
	LookupVertex(hash chainhash.Hash) (*Vertex, bool)
}

// ChainStore is everything a Chain consults on a cache miss.
type ChainStore interface {
	PersistedUTXOLookup
	RegistrationLookup
}

// Chain is one candidate milestone chain: its pending DAG, ledger
// view, and per-peer-chain cumulators. The main chain and every live
// fork are each represented by one Chain; ChainSet tracks which is
// best.
type Chain struct {
	Params *dagconfig.Params
	Store  ChainStore

	IsMain bool

	// States holds recent in-memory milestones, oldest first; the
	// front is what Pop oldest pops on flush.
	States []*Milestone

	PendingBlocks map[chainhash.Hash]*wire.MsgBlock
	RecentHistory map[chainhash.Hash]*Vertex
	Verifying     map[chainhash.Hash]*Vertex

	Ledger *Ledger

	// CumulatorMap caches the trailing-window chainwork/time aggregate
	// per peer chain, keyed by that peer chain's current head hash.
	CumulatorMap map[chainhash.Hash]*Cumulator

	PrevRedemHashMap map[chainhash.Hash]chainhash.Hash
}

// NewChain returns a fresh Chain seeded with genesis as its sole
// state and an empty ledger backed by store.
func NewChain(params *dagconfig.Params, store ChainStore, genesis *Milestone) *Chain {
	return &Chain{
		Params:           params,
		Store:            store,
		States:           []*Milestone{genesis},
		PendingBlocks:    make(map[chainhash.Hash]*wire.MsgBlock),
		RecentHistory:    make(map[chainhash.Hash]*Vertex),
		Verifying:        make(map[chainhash.Hash]*Vertex),
		Ledger:           NewLedger(store),
		CumulatorMap:     make(map[chainhash.Hash]*Cumulator),
		PrevRedemHashMap: make(map[chainhash.Hash]chainhash.Hash),
	}
}

// Head returns the chain's newest in-memory milestone.
func (c *Chain) Head() *Milestone {
	if len(c.States) == 0 {
		return nil
	}
	return c.States[len(c.States)-1]
}

// NewFork clones base up to forkBlock's milestone parent and rolls
// back every milestone more recent than that fork point, per §4.5.
// No verification happens here: the caller re-verifies by feeding
// forkBlock back through Verify.
func NewFork(base *Chain, forkBlock *wire.MsgBlock) *Chain {
	fork := &Chain{
		Params:           base.Params,
		Store:            base.Store,
		IsMain:           false,
		States:           append([]*Milestone(nil), base.States...),
		PendingBlocks:    cloneBlockMap(base.PendingBlocks),
		RecentHistory:    cloneVertexMap(base.RecentHistory),
		Verifying:        make(map[chainhash.Hash]*Vertex),
		Ledger:           base.Ledger.Clone(),
		CumulatorMap:     cloneCumulatorMap(base.CumulatorMap),
		PrevRedemHashMap: cloneHashMap(base.PrevRedemHashMap),
	}

	target := forkBlock.Header.MilestoneHash
	for len(fork.States) > 0 {
		top := fork.States[len(fork.States)-1]
		if len(top.LevelSet) == 0 || top.LevelSet[top.MSVertexIndex] == target {
			break
		}
		fork.States = fork.States[:len(fork.States)-1]

		for _, h := range top.LevelSet {
			if v, ok := fork.RecentHistory[h]; ok {
				fork.PendingBlocks[h] = v.Block
				delete(fork.RecentHistory, h)
			}
		}
		fork.Ledger.Rollback(top.TXOC)
		top.RegChange.Undo(fork.PrevRedemHashMap)
	}

	return fork
}

func cloneBlockMap(m map[chainhash.Hash]*wire.MsgBlock) map[chainhash.Hash]*wire.MsgBlock {
	out := make(map[chainhash.Hash]*wire.MsgBlock, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneVertexMap(m map[chainhash.Hash]*Vertex) map[chainhash.Hash]*Vertex {
	out := make(map[chainhash.Hash]*Vertex, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneHashMap(m map[chainhash.Hash]chainhash.Hash) map[chainhash.Hash]chainhash.Hash {
	out := make(map[chainhash.Hash]chainhash.Hash, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneCumulatorMap(m map[chainhash.Hash]*Cumulator) map[chainhash.Hash]*Cumulator {
	out := make(map[chainhash.Hash]*Cumulator, len(m))
	for k, v := range m {
		clone := NewCumulator(v.capacity)
		clone.runs = append([]cumRun(nil), v.runs...)
		clone.times = append([]uint32(nil), v.times...)
		clone.count = v.count
		out[k] = clone
	}
	return out
}

// AddPending inserts block into pending_blocks, keyed by its hash.
func (c *Chain) AddPending(block *wire.MsgBlock) {
	c.PendingBlocks[block.Hash()] = block
}

// sortSubgraph performs the recursive post-order DFS of §4.5: from
// startHash, recurse into each of the three parent hashes that is
// still pending, then emit startHash and remove it from pending.
// The result is a valid processing order — every block appears after
// its still-pending parents.
func (c *Chain) sortSubgraph(startHash chainhash.Hash) []*wire.MsgBlock {
	var order []*wire.MsgBlock
	visited := make(map[chainhash.Hash]bool)

	var visit func(h chainhash.Hash)
	visit = func(h chainhash.Hash) {
		if visited[h] {
			return
		}
		block, ok := c.PendingBlocks[h]
		if !ok {
			return
		}
		visited[h] = true
		visit(block.Header.MilestoneHash)
		visit(block.Header.TipHash)
		visit(block.Header.PrevHash)
		order = append(order, block)
	}
	visit(startHash)

	for _, b := range order {
		delete(c.PendingBlocks, b.Hash())
	}
	return order
}

// parentVertex resolves a vertex by hash, checking the verifying
// scratch space, the in-memory history, then falling back to the
// store (for a parent anchored beneath the finalization window).
func (c *Chain) parentVertex(h chainhash.Hash) (*Vertex, bool) {
	if v, ok := c.Verifying[h]; ok {
		return v, true
	}
	if v, ok := c.RecentHistory[h]; ok {
		return v, true
	}
	if c.Store != nil {
		return c.Store.LookupVertex(h)
	}
	return nil, false
}

func (c *Chain) lookupPrevRedem(peerChainHead chainhash.Hash) (chainhash.Hash, bool) {
	if h, ok := c.PrevRedemHashMap[peerChainHead]; ok {
		return h, true
	}
	if c.Store != nil {
		return c.Store.LookupRegistration(peerChainHead)
	}
	return chainhash.Hash{}, false
}

// sortitionAllowed computes the distance threshold a transaction's
// H(txn) XOR H(previous_block) must stay within, per §4.5's partition
// check: cumulator.sum / (cumulator.time_span + 1) / sortition_coefficient
// * max_target / (ms_hashrate + 1).
func sortitionAllowed(cum *Cumulator, params *dagconfig.Params, hashRate float64) *big.Int {
	if cum == nil || cum.Count() == 0 {
		return big.NewInt(0)
	}
	sum := cum.Sum()
	denom := big.NewInt(int64(cum.TimeSpan()) + 1)
	allowed := new(big.Int).Div(sum, denom)
	allowed.Div(allowed, big.NewInt(int64(params.SortitionCoefficient)))

	maxTarget := pow.CompactToBig(params.MaxTarget)
	allowed.Mul(allowed, maxTarget)
	hrPlusOne := big.NewInt(int64(hashRate) + 1)
	if hrPlusOne.Sign() == 0 {
		hrPlusOne = big.NewInt(1)
	}
	allowed.Div(allowed, hrPlusOne)
	return allowed
}

func xorDistance(a, b chainhash.Hash) *big.Int {
	var out chainhash.Hash
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return pow.HashToBig(out)
}

// Verify runs the §4.5 verify() algorithm over the sub-DAG rooted at
// msBlock, yielding the Vertex the milestone block itself forms.
// Every per-transaction verdict is recorded in the vertex validity
// vector rather than aborting the pass.
func (c *Chain) Verify(msBlock *wire.MsgBlock) (*Vertex, error) {
	blocks := c.sortSubgraph(msBlock.Hash())
	c.Verifying = make(map[chainhash.Hash]*Vertex, len(blocks))

	txoc := NewTXOC()
	regChange := NewRegChange()

	prevMilestone := c.Head()

	for _, block := range blocks {
		hash := block.Hash()
		v := NewVertex(hash, block)
		c.Verifying[hash] = v

		parent, hasParent := c.parentVertex(block.Header.PrevHash)

		var kind wire.Kind
		if len(block.Transactions) > 0 {
			kind = block.Transactions[0].Classify()
		}
		if kind == wire.KindRegistration {
			prevReg, ok := c.lookupPrevRedem(block.Header.PrevHash)
			if !ok || block.Transactions[0].TxIn[0].PreviousOutPoint.BlockHash != prevReg {
				kind = wire.KindNormal
			}
		}

		var fees uint64
		switch {
		case kind == wire.KindFirstRegistration:
			v.MinerChainHeight = 1
			v.RedemptionStatus = NotYetRedeemed
			v.Validity[0] = TxValid
			for i := 1; i < len(v.Validity); i++ {
				v.Validity[i] = TxInvalid
			}
			regChange.Create(hash, hash)

		default:
			if hasParent {
				v.MinerChainHeight = parent.MinerChainHeight + 1
				oldRedem, hadRedem := c.lookupPrevRedem(block.Header.PrevHash)
				if hadRedem {
					regChange.Remove(block.Header.PrevHash)
					regChange.Create(hash, oldRedem)
				}
			} else {
				v.MinerChainHeight = 1
			}

			if len(block.Transactions) > 0 {
				fees = c.verifyTransactions(block, v, kind, regChange, txoc)
			}
		}

		var redemptionValue uint64
		isRedemption := v.RedemptionStatus == NotYetRedeemed && kind != wire.KindFirstRegistration
		if isRedemption && len(block.Transactions) > 0 && len(block.Transactions[0].TxOut) > 0 {
			redemptionValue = block.Transactions[0].TxOut[0].Value
		}
		prevCumulative := uint64(0)
		if hasParent {
			prevCumulative = parent.CumulativeReward
		}
		v.CumulativeReward = Reward(prevCumulative, c.Params, fees, isRedemption, redemptionValue, hash == msBlock.Hash(), len(blocks))

		c.RecentHistory[hash] = v
	}

	msVertex := c.Verifying[msBlock.Hash()]
	if msVertex == nil {
		return nil, ruleError(ErrMilestoneHeightMismatch, "milestone block missing from sorted subgraph")
	}

	levelSet := make([]chainhash.Hash, 0, len(blocks))
	for _, b := range blocks {
		if b.Hash() != msBlock.Hash() {
			levelSet = append(levelSet, b.Hash())
		}
	}
	levelSet = append(levelSet, msBlock.Hash())

	next := UpdateDifficulty(prevMilestone, prevMilestone.Height+1, msBlock.Header.Timestamp, c.Params)
	next.LevelSet = levelSet
	next.MSVertexIndex = len(levelSet) - 1
	next.TXOC = txoc
	next.RegChange = regChange
	next.NBlocksCounter += uint64(len(blocks))

	msVertex.IsMilestone = true

	c.States = append(c.States, next)

	for h, v := range c.Verifying {
		v.Height = next.Height
		c.RecentHistory[h] = v
	}
	c.Verifying = make(map[chainhash.Hash]*Vertex)

	c.Ledger.Update(txoc)
	regChange.Apply(c.PrevRedemHashMap)

	return msVertex, nil
}

// verifyTransactions implements the per-block transaction checks of
// §4.5: redemption validation, the sortition/partition distance
// check, and ledger-backed validation of remaining Unknown txns. It
// returns the total fees (sumIn-sumOut) collected across every
// transaction it validated, for §4.4's reward formula.
func (c *Chain) verifyTransactions(block *wire.MsgBlock, v *Vertex, kind wire.Kind, regChange *RegChange, txoc *TXOC) uint64 {
	startIdx := 0
	if kind == wire.KindRegistration {
		startIdx = 1
		c.verifyRedemption(block, v, regChange)
	}

	cum := c.CumulatorMap[block.Header.PrevHash]
	hashRate := c.Head().HashRate
	allowed := sortitionAllowed(cum, c.Params, hashRate)

	var totalFees uint64
	for i := startIdx; i < len(block.Transactions); i++ {
		if v.Validity[i] != TxUnknown {
			continue
		}
		tx := block.Transactions[i]
		dist := xorDistance(tx.TxHash(), block.Header.PrevHash)
		if dist.Cmp(allowed) > 0 {
			v.Validity[i] = TxInvalid
			continue
		}
		fee, err := c.validateTx(tx, block, i, txoc)
		if err != nil {
			v.Validity[i] = TxInvalid
			continue
		}
		v.Validity[i] = TxValid
		totalFees += fee
	}

	for i := range v.Validity {
		if v.Validity[i] == TxUnknown {
			v.Validity[i] = TxInvalid
		}
	}

	return totalFees
}

// validateTx checks one ordinary transaction against the ledger:
// every input resolves to a spendable UTXO, the listing verifies,
// and outputs do not exceed inputs. txIndex is the transaction's
// position within block, used to key its created UTXOs so that
// outputs at the same OutIndex in different transactions don't
// collide onto the same UTXOKey. Returns the transaction's fee
// (sumIn-sumOut).
func (c *Chain) validateTx(tx *wire.MsgTx, block *wire.MsgBlock, txIndex int, txoc *TXOC) (uint64, error) {
	var sumIn, sumOut uint64
	for _, in := range tx.TxIn {
		key := ComputeUTXOKey(in.PreviousOutPoint.BlockHash, in.PreviousOutPoint.TxIndex, in.PreviousOutPoint.OutIndex)
		utxo, ok := c.Ledger.FindSpendable(key)
		if !ok {
			return 0, ruleError(ErrDoubleSpend, "input references unspendable outpoint")
		}
		msgHash := tx.TxHash()
		if err := listing.Verify(utxo.Output.LockingListing, in.SignatureListing, in.PublicKey, msgHash[:]); err != nil {
			return 0, ruleError(ErrBadSignature, err.Error())
		}
		sumIn += utxo.Output.Value
		txoc.AddSpent(key)
	}
	for i, out := range tx.TxOut {
		sumOut += out.Value
		txoc.AddCreated(&UTXO{
			BlockHash: block.Hash(),
			TxIndex:   uint32(txIndex),
			OutIndex:  uint32(i),
			Output:    out,
		})
	}
	if sumOut > sumIn {
		return 0, ruleError(ErrBadFeeRange, "outputs exceed inputs")
	}
	return sumIn - sumOut, nil
}

// verifyRedemption implements the §4.5 redemption validation rule.
func (c *Chain) verifyRedemption(block *wire.MsgBlock, v *Vertex, regChange *RegChange) {
	tx := block.Transactions[0]
	prevRegHash, ok := c.lookupPrevRedem(block.Header.PrevHash)
	if !ok {
		v.Validity[0] = TxInvalid
		return
	}
	prevVertex, ok := c.parentVertex(prevRegHash)
	if !ok || prevVertex.RedemptionStatus != NotYetRedeemed {
		v.Validity[0] = TxInvalid
		return
	}
	if len(tx.TxOut) == 0 || tx.TxOut[0].Value > prevVertex.CumulativeReward {
		v.Validity[0] = TxInvalid
		return
	}

	prevTx := prevVertex.Block.Transactions[0]
	msgHash := tx.TxHash()
	in := tx.TxIn[0]
	if err := listing.Verify(prevTx.TxOut[0].LockingListing, in.SignatureListing, in.PublicKey, msgHash[:]); err != nil {
		v.Validity[0] = TxInvalid
		return
	}

	prevVertex.RedemptionStatus = Redeemed
	v.RedemptionStatus = NotYetRedeemed
	hash := block.Hash()
	regChange.Create(hash, hash)
	v.Validity[0] = TxValid
}

// PopOldest erases the listed vertices from recent_history, removes
// their TXOC from the ledger, and pops the oldest state, per §4.5.
func (c *Chain) PopOldest(hashes []chainhash.Hash, txoc *TXOC) {
	for _, h := range hashes {
		delete(c.RecentHistory, h)
	}
	c.Ledger.Remove(txoc)
	if len(c.States) > 0 {
		c.States = c.States[1:]
	}
}
