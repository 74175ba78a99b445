package consensus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/wire"
)

// ParentMask is a 3-bit flag identifying which of a block's three
// named parents (milestone, tip, previous) are not yet known to the
// DAG manager.
type ParentMask uint8

const (
	MissingMilestone ParentMask = 1 << iota
	MissingTip
	MissingPrevious
)

// depNode is one entry in the orphan container's dependency graph. A
// depNode may be a placeholder (Block == nil) standing in for a
// hash that is depended upon but has not itself arrived.
type depNode struct {
	hash    chainhash.Hash
	block   *wire.MsgBlock
	arrived time.Time

	ndeps   int
	waiters []*depNode
}

// OBC is the orphan block container: it holds blocks that are not
// solid (some parent unknown) and releases them, in dependency
// order, once the missing parent(s) arrive.
type OBC struct {
	mu      sync.Mutex
	nodes   map[chainhash.Hash]*depNode
	enabled int32 // atomic bool
}

// NewOBC returns an empty, enabled OBC.
func NewOBC() *OBC {
	o := &OBC{nodes: make(map[chainhash.Hash]*depNode)}
	atomic.StoreInt32(&o.enabled, 1)
	return o
}

// SetEnabled flips the atomic enable flag; while disabled, AddBlock
// is a no-op. Used during initial download to avoid buffering
// ancient blocks (Design Notes §9: keep as an atomic, not a lock).
func (o *OBC) SetEnabled(enabled bool) {
	v := int32(0)
	if enabled {
		v = 1
	}
	atomic.StoreInt32(&o.enabled, v)
}

// Enabled reports the current state of the atomic enable flag.
func (o *OBC) Enabled() bool {
	return atomic.LoadInt32(&o.enabled) != 0
}

func missingHashes(block *wire.MsgBlock, mask ParentMask) []chainhash.Hash {
	var hashes []chainhash.Hash
	seen := make(map[chainhash.Hash]bool)
	add := func(h chainhash.Hash) {
		if !seen[h] {
			seen[h] = true
			hashes = append(hashes, h)
		}
	}
	if mask&MissingMilestone != 0 {
		add(block.Header.MilestoneHash)
	}
	if mask&MissingTip != 0 {
		add(block.Header.TipHash)
	}
	if mask&MissingPrevious != 0 {
		add(block.Header.PrevHash)
	}
	return hashes
}

// AddBlock registers block as depending on the parent hashes named
// by mask. If mask is zero, AddBlock does nothing. ndeps is set to
// the number of distinct missing parent hashes (a block whose
// milestone and previous parent are the same missing hash has
// ndeps=1).
func (o *OBC) AddBlock(block *wire.MsgBlock, mask ParentMask) {
	if mask == 0 || !o.Enabled() {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	hash := block.Hash()
	missing := missingHashes(block, mask)

	// A placeholder may already exist for this hash if one of its
	// children arrived first; keep it so its waiters are not lost.
	self, ok := o.nodes[hash]
	if !ok {
		self = &depNode{hash: hash}
		o.nodes[hash] = self
	}
	self.block = block
	self.arrived = time.Now()
	self.ndeps = len(missing)

	for _, h := range missing {
		parent, ok := o.nodes[h]
		if !ok {
			parent = &depNode{hash: h}
			o.nodes[h] = parent
		}
		parent.waiters = append(parent.waiters, self)
	}
}

// SubmitHash announces that a block matching hash has arrived
// through some other path (cache, store, or direct ingest), and
// releases any orphans whose dependency count drops to zero as a
// result — recursively, since releasing one orphan may itself
// satisfy further waiters. Emission order is not time-sorted;
// callers must treat each returned block as independently
// re-enterable.
func (o *OBC) SubmitHash(hash chainhash.Hash) []*wire.MsgBlock {
	o.mu.Lock()
	defer o.mu.Unlock()

	var released []*wire.MsgBlock
	var walk func(h chainhash.Hash)
	walk = func(h chainhash.Hash) {
		node, ok := o.nodes[h]
		if !ok {
			return
		}
		delete(o.nodes, h)
		for _, w := range node.waiters {
			w.ndeps--
			if w.ndeps <= 0 {
				if w.block != nil {
					released = append(released, w.block)
				}
				walk(w.hash)
			}
		}
	}
	walk(hash)
	return released
}

// Prune evicts every real-block dep-node whose arrival time is older
// than now - ageSecs, along with its entire forward dependency tree
// (BFS) and any upstream placeholders left stale by the eviction.
// Called periodically (~5 min) by the DAG manager.
func (o *OBC) Prune(ageSecs int64, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	cutoff := now.Add(-time.Duration(ageSecs) * time.Second)

	var stale []chainhash.Hash
	for h, n := range o.nodes {
		if n.block != nil && n.arrived.Before(cutoff) {
			stale = append(stale, h)
		}
	}

	evicted := make(map[chainhash.Hash]bool)
	var bfs func(h chainhash.Hash)
	bfs = func(h chainhash.Hash) {
		if evicted[h] {
			return
		}
		node, ok := o.nodes[h]
		if !ok {
			return
		}
		evicted[h] = true
		for _, w := range node.waiters {
			bfs(w.hash)
		}
	}
	for _, h := range stale {
		bfs(h)
	}
	for h := range evicted {
		delete(o.nodes, h)
	}

	// Remove any remaining placeholders that no longer have waiters,
	// since their only purpose was gating the just-evicted subtrees.
	for h, n := range o.nodes {
		if n.block != nil {
			continue
		}
		live := n.waiters[:0]
		for _, w := range n.waiters {
			if !evicted[w.hash] {
				live = append(live, w)
			}
		}
		n.waiters = live
		if len(live) == 0 {
			delete(o.nodes, h)
		}
	}
}

// Len reports the number of dep-nodes (real and placeholder)
// currently tracked, primarily for tests.
func (o *OBC) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.nodes)
}
