package dagmgr

import (
	"math/big"
	"sync"
	"time"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/consensus"
	"github.com/epic-project/epicd/dagconfig"
	"github.com/epic-project/epicd/pow"
	"github.com/epic-project/epicd/store"
	"github.com/epic-project/epicd/wire"
)

// Manager is the DAG Manager of §4.7: the ingress valve that runs
// every incoming block through the syntactic check, solidity gating,
// difficulty-target match, chain dispatch, and flush scheduling.
// Three executor pools (verify/sync/storage) serialize mutation per
// concern, matching §5's ordering guarantees.
type Manager struct {
	Params *dagconfig.Params
	Store  *store.Store

	Chains *consensus.ChainSet
	OBC    *consensus.OBC

	cacheMu    sync.RWMutex
	blockCache map[chainhash.Hash]*wire.MsgBlock

	verifyPool  *Executor
	syncPool    *Executor
	storagePool *Executor

	// Relay is invoked with every block accepted into the pending set
	// (it passed the syntactic check, has all its parents, and passed
	// the punctuality and difficulty checks), so the network layer can
	// forward it to other peers. A
	// nil Relay is a no-op; the manager has no networking of its own.
	Relay func(*wire.MsgBlock)
}

// NewManager constructs a Manager with a fresh main chain seeded by
// genesis, and starts its three executor pools.
func NewManager(params *dagconfig.Params, st *store.Store, genesis *consensus.Milestone) *Manager {
	m := newManagerShell(params, st)
	main := consensus.NewChain(params, st, genesis)
	main.IsMain = true
	m.Chains.Push(main)
	return m
}

// NewManagerFromStore implements the §4.1/§4.4 startup/restart path:
// it runs CheckFileSanity against st, pruning any tail left
// inconsistent by an unclean shutdown, then rehydrates the main
// chain's head from the verified height instead of reseeding
// genesis. If the recovered milestone's LastUpdateTime is zero (its
// difficulty state was never retargeted before the restart),
// RestartDifficulty walks its milestone ancestry to recompute the
// pending txn/block counters and retarget baseline. An empty store
// (verified height 0, nothing to rehydrate) falls back to genesis.
func NewManagerFromStore(params *dagconfig.Params, st *store.Store, genesis *consensus.Milestone) (*Manager, error) {
	height, err := st.CheckFileSanity(true)
	if err != nil {
		return nil, err
	}
	if height == 0 {
		return NewManager(params, st, genesis), nil
	}

	head, err := st.GetMilestoneMeta(height)
	if err != nil {
		return nil, err
	}

	if head.LastUpdateTime == 0 {
		lookup := func(h uint64) (*consensus.Milestone, bool) {
			ms, err := st.GetMilestoneMeta(h)
			if err != nil {
				return nil, false
			}
			return ms, true
		}
		txns, blocks, baseline, ok := consensus.RestartDifficulty(height, lookup, st.BlockTimeAt, params)
		if ok {
			head.NTxnsCounter = txns
			head.NBlocksCounter = blocks
			head.LastUpdateTime = baseline
		}
	}

	m := newManagerShell(params, st)
	main := consensus.NewChain(params, st, head)
	main.IsMain = true
	m.Chains.Push(main)
	return m, nil
}

// newManagerShell builds a Manager with its executor pools and empty
// chain set, before the caller seeds the main chain.
func newManagerShell(params *dagconfig.Params, st *store.Store) *Manager {
	return &Manager{
		Params:      params,
		Store:       st,
		Chains:      consensus.NewChainSet(),
		OBC:         consensus.NewOBC(),
		blockCache:  make(map[chainhash.Hash]*wire.MsgBlock),
		verifyPool:  NewExecutor(256),
		syncPool:    NewExecutor(256),
		storagePool: NewExecutor(64),
	}
}

// Shutdown drains and stops all three executor pools.
func (m *Manager) Shutdown() {
	m.verifyPool.Shutdown()
	m.syncPool.Shutdown()
	m.storagePool.Shutdown()
}

func (m *Manager) cacheBlock(block *wire.MsgBlock) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.blockCache[block.Hash()] = block
}

func (m *Manager) cachedBlock(h chainhash.Hash) (*wire.MsgBlock, bool) {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()
	b, ok := m.blockCache[h]
	return b, ok
}

// knownHash reports whether h is known to the cache, any live
// chain's pending set, or the persisted store. genesisHash is always
// known: it is the sentinel parent of the genesis milestone itself,
// which predates the chain and so is never stored as a block.
func (m *Manager) knownHash(h, genesisHash chainhash.Hash) bool {
	if h == genesisHash {
		return true
	}
	if _, ok := m.cachedBlock(h); ok {
		return true
	}
	for i := 0; i < m.Chains.Len(); i++ {
		c := m.Chains.At(i)
		if _, ok := c.PendingBlocks[h]; ok {
			return true
		}
		if _, ok := c.RecentHistory[h]; ok {
			return true
		}
	}
	if m.Store != nil {
		if _, err := m.Store.GetVertex(h, false); err == nil {
			return true
		}
	}
	return false
}

// classifyMissing computes the §4.2 missing-parent mask for block.
func (m *Manager) classifyMissing(block *wire.MsgBlock, genesisHash chainhash.Hash) consensus.ParentMask {
	var mask consensus.ParentMask
	if !m.knownHash(block.Header.MilestoneHash, genesisHash) {
		mask |= consensus.MissingMilestone
	}
	if !m.knownHash(block.Header.TipHash, genesisHash) {
		mask |= consensus.MissingTip
	}
	if !m.knownHash(block.Header.PrevHash, genesisHash) {
		mask |= consensus.MissingPrevious
	}
	return mask
}

// AddNewBlock submits block to the verify pool, implementing the
// §4.7 ingress pipeline. It returns immediately; the actual
// processing (and any resulting error) happens asynchronously on the
// verify worker, consistent with §5's single-writer ordering
// guarantee.
func (m *Manager) AddNewBlock(block *wire.MsgBlock, genesisHash chainhash.Hash) {
	m.verifyPool.Submit(func() {
		m.addNewBlock(block, genesisHash)
	})
}

func (m *Manager) addNewBlock(block *wire.MsgBlock, genesisHash chainhash.Hash) {
	hash := block.Hash()
	if hash == genesisHash || m.knownHash(hash, genesisHash) {
		return
	}

	if err := SyntacticVerify(block, m.Params, time.Now()); err != nil {
		log.Debugf("rejecting block %s: %v", hash, err)
		return
	}

	mask := m.classifyMissing(block, genesisHash)
	if mask != 0 {
		best := m.Chains.Best()
		if msVertex, ok := best.RecentHistory[block.Header.MilestoneHash]; ok && msVertex.IsMilestone {
			if best.Head().Height >= msVertex.Height+m.Params.PunctualityThreshold {
				log.Debugf("dropping stale block %s: milestone parent too old", hash)
				return
			}
		}
		m.OBC.AddBlock(block, mask)
		return
	}

	best := m.Chains.Best()
	if msVertex, ok := m.lookupVertex(best, block.Header.MilestoneHash); ok {
		if msVertex.Height+m.Params.PunctualityThreshold <= best.Head().Height {
			log.Debugf("dropping block %s: milestone parent lags past punctuality threshold", hash)
			return
		}
		if block.Header.Bits != best.Head().BlockTarget {
			log.Debugf("dropping block %s: difficulty target mismatch", hash)
			return
		}
	}

	m.cacheBlock(block)
	if m.Relay != nil {
		m.Relay(block)
	}
	for i := 0; i < m.Chains.Len(); i++ {
		m.Chains.At(i).AddPending(block)
	}

	if pow.MeetsTarget(hash, best.Head().MilestoneTarget) {
		m.processMilestoneArrival(block, best)
	}

	released := m.OBC.SubmitHash(hash)
	for _, b := range released {
		m.addNewBlock(b, genesisHash)
	}
}

func (m *Manager) lookupVertex(c *consensus.Chain, h chainhash.Hash) (*consensus.Vertex, bool) {
	if v, ok := c.RecentHistory[h]; ok {
		return v, true
	}
	if m.Store != nil {
		if v, err := m.Store.GetVertex(h, false); err == nil {
			return v, true
		}
	}
	return nil, false
}

func (m *Manager) processMilestoneArrival(block *wire.MsgBlock, best *consensus.Chain) {
	if block.Header.MilestoneHash == bestMilestoneHash(best) {
		if _, err := best.Verify(block); err != nil {
			log.Debugf("milestone verification failed for %s: %v", block.Hash(), err)
			return
		}
		m.OBC.SetEnabled(true)
		m.DeleteFork()
		m.FlushTrigger()
		return
	}

	fork := consensus.NewFork(best, block)
	if _, err := fork.Verify(block); err != nil {
		log.Debugf("fork milestone verification failed for %s: %v", block.Hash(), err)
		return
	}
	m.Chains.Push(fork)
	m.Chains.UpdateBest()
}

func bestMilestoneHash(c *consensus.Chain) chainhash.Hash {
	head := c.Head()
	if head == nil || len(head.LevelSet) == 0 {
		return chainhash.Hash{}
	}
	return head.LevelSet[head.MSVertexIndex]
}

// FlushTrigger implements §4.7's flush_trigger: if the best chain's
// in-memory states exceed PunctualityThreshold, scan from the oldest
// state forward and flush every state that is not yet stored and is
// present with an identical milestone hash in every live fork at the
// same position.
func (m *Manager) FlushTrigger() {
	best := m.Chains.Best()
	if best == nil || uint64(len(best.States)) <= m.Params.PunctualityThreshold {
		return
	}

	for _, ms := range best.States {
		if ms.Stored {
			continue
		}
		if !m.agreedAcrossForks(ms) {
			break
		}
		m.FlushToStore(ms)
	}
}

func (m *Manager) agreedAcrossForks(ms *consensus.Milestone) bool {
	target := ms.LevelSet[ms.MSVertexIndex]
	for i := 0; i < m.Chains.Len(); i++ {
		c := m.Chains.At(i)
		found := false
		for _, other := range c.States {
			if len(other.LevelSet) == 0 {
				continue
			}
			if other.Height == ms.Height {
				found = other.LevelSet[other.MSVertexIndex] == target
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FlushToStore implements §4.7's flush_to_store on the storage pool:
// write the level set, mark it stored, then re-enqueue cleanup on
// the verify pool so every chain pops its oldest state once
// persisted.
func (m *Manager) FlushToStore(ms *consensus.Milestone) {
	m.storagePool.Submit(func() {
		best := m.Chains.Best()
		vertices := make(map[chainhash.Hash]*consensus.Vertex, len(ms.LevelSet))
		for _, h := range ms.LevelSet {
			if v, ok := best.RecentHistory[h]; ok {
				vertices[h] = v
			}
		}

		if err := m.Store.StoreLevelSet(vertices, ms); err != nil {
			log.Warnf("flush failed for milestone height %d: %v", ms.Height, err)
			return
		}
		ms.Stored = true

		m.verifyPool.Submit(func() {
			for i := 0; i < m.Chains.Len(); i++ {
				m.Chains.At(i).PopOldest(ms.LevelSet, ms.TXOC)
			}
		})
	})
}

// DeleteFork implements §4.7's delete_fork: remove chains whose head
// chainwork is below the best chain's chainwork at offset
// DeleteForkThreshold, and whose milestones are not ancestors of the
// best chain.
func (m *Manager) DeleteFork() {
	best := m.Chains.Best()
	if best == nil {
		return
	}
	threshold := chainworkAtOffset(best, m.Params.DeleteForkThreshold)

	for i := 0; i < m.Chains.Len(); i++ {
		c := m.Chains.At(i)
		if c == best {
			continue
		}
		if c.Head().Chainwork.Cmp(threshold) < 0 && !isAncestorOf(c, best) {
			m.Chains.Erase(i)
			i--
		}
	}
}

func chainworkAtOffset(c *consensus.Chain, offset uint64) *big.Int {
	idx := len(c.States) - 1 - int(offset)
	if idx < 0 {
		idx = 0
	}
	return c.States[idx].Chainwork
}

func isAncestorOf(fork, best *consensus.Chain) bool {
	bestHashes := make(map[chainhash.Hash]bool, len(best.States))
	for _, ms := range best.States {
		if len(ms.LevelSet) > 0 {
			bestHashes[ms.LevelSet[ms.MSVertexIndex]] = true
		}
	}
	for _, ms := range fork.States {
		if len(ms.LevelSet) == 0 {
			continue
		}
		if bestHashes[ms.LevelSet[ms.MSVertexIndex]] {
			return true
		}
	}
	return false
}
