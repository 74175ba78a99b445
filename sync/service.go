package sync

import (
	"bytes"
	"time"

	"github.com/zeebo/blake3"

	"github.com/epic-project/epicd/chainhash"
	"github.com/epic-project/epicd/consensus"
	"github.com/epic-project/epicd/dagconfig"
	"github.com/epic-project/epicd/store"
	"github.com/epic-project/epicd/wire"
)

// Default protocol tunables named in §4.8.
const (
	DefaultMaxInvSize      = 500
	DefaultMaxGetInvLength = 64
	DefaultTaskTimeout     = 180 * time.Second
)

// Service is the Sync Service of §4.8: it answers GetInv/GetData
// requests against the best chain's in-memory window and the block
// store, and tracks outstanding request tasks for the timeout/
// disconnect policy described in src/peer/task.h (SPEC_FULL.md §12).
type Service struct {
	Params *dagconfig.Params
	Store  *store.Store
	Chains *consensus.ChainSet

	MaxInvSize      int
	MaxGetInvLength int
	TaskTimeout     time.Duration

	tasks *taskRegistry
}

// NewService returns a Service with the §4.8 default tunables.
func NewService(params *dagconfig.Params, st *store.Store, chains *consensus.ChainSet) *Service {
	return &Service{
		Params:          params,
		Store:           st,
		Chains:          chains,
		MaxInvSize:      DefaultMaxInvSize,
		MaxGetInvLength: DefaultMaxGetInvLength,
		TaskTimeout:     DefaultTaskTimeout,
		tasks:           newTaskRegistry(),
	}
}

// HandleGetInv answers req against the best chain: finds the highest
// locator hash present on the backbone, then returns the forward
// traversal from just past it, capped at MaxInvSize. An empty
// intersection returns just the genesis hash.
func (s *Service) HandleGetInv(req GetInv) Inv {
	best := s.Chains.Best()
	if best == nil {
		return Inv{Nonce: req.Nonce}
	}

	intersectHeight, found := s.intersect(req.Locator, best)
	if !found {
		genesis, _ := s.milestoneHashAtHeight(best, 0)
		return Inv{Hashes: []chainhash.Hash{genesis}, Nonce: req.Nonce}
	}

	return Inv{Hashes: s.forwardTraversal(best, intersectHeight+1), Nonce: req.Nonce}
}

func (s *Service) intersect(locator []chainhash.Hash, best *consensus.Chain) (uint64, bool) {
	for _, h := range locator {
		if height, ok := s.heightOfMilestone(h, best); ok {
			return height, true
		}
	}
	return 0, false
}

func (s *Service) heightOfMilestone(h chainhash.Hash, best *consensus.Chain) (uint64, bool) {
	for _, ms := range best.States {
		if len(ms.LevelSet) == 0 {
			// The genesis state has no level set; its hash is the
			// zero-value sentinel.
			if h == (chainhash.Hash{}) {
				return ms.Height, true
			}
			continue
		}
		if ms.LevelSet[ms.MSVertexIndex] == h {
			return ms.Height, true
		}
	}
	if v, ok := best.RecentHistory[h]; ok && v.IsMilestone {
		return v.Height, true
	}
	if s.Store != nil {
		if v, err := s.Store.GetVertex(h, false); err == nil && v.IsMilestone {
			return v.Height, true
		}
	}
	return 0, false
}

func (s *Service) milestoneHashAtHeight(best *consensus.Chain, height uint64) (chainhash.Hash, bool) {
	for _, ms := range best.States {
		if ms.Height == height {
			if len(ms.LevelSet) == 0 {
				return chainhash.Hash{}, true
			}
			return ms.LevelSet[ms.MSVertexIndex], true
		}
	}
	if s.Store != nil {
		if v, err := s.Store.GetMilestoneAt(height); err == nil {
			return v.Hash, true
		}
	}
	return chainhash.Hash{}, false
}

// forwardTraversal walks the backbone upward from fromHeight to the
// best chain's head, capped at MaxInvSize hashes. Heights older than
// the in-memory window are read from the store; newer ones (up to
// and including head) are always in memory, since the head is by
// definition the newest known milestone.
func (s *Service) forwardTraversal(best *consensus.Chain, fromHeight uint64) []chainhash.Hash {
	head := best.Head()
	if head == nil {
		return nil
	}
	max := s.MaxInvSize
	if max <= 0 {
		max = DefaultMaxInvSize
	}

	var hashes []chainhash.Hash
	for h := fromHeight; h <= head.Height && len(hashes) < max; h++ {
		if hash, ok := s.milestoneHashAtHeight(best, h); ok {
			hashes = append(hashes, hash)
		}
	}
	return hashes
}

// BuildLocator constructs a sparse, doubling-interval list of
// milestone hashes walking backward from the best chain's head,
// capped at maxLen entries.
func (s *Service) BuildLocator(best *consensus.Chain, maxLen int) []chainhash.Hash {
	head := best.Head()
	if head == nil {
		return nil
	}

	var locator []chainhash.Hash
	step := uint64(1)
	height := head.Height
	for {
		if hash, ok := s.milestoneHashAtHeight(best, height); ok {
			locator = append(locator, hash)
		}
		if height == 0 || (maxLen > 0 && len(locator) >= maxLen) {
			break
		}
		if height < step {
			height = 0
		} else {
			height -= step
		}
		if len(locator) >= 10 {
			step *= 2
		}
	}
	return locator
}

// HandleGetData answers one GetData request: for PendingSet it
// returns a single-element slice (the best chain's pending blocks);
// for LevelSet it returns one Bundle or NotFound per requested hash.
func (s *Service) HandleGetData(req GetData) []interface{} {
	switch req.Type {
	case PendingSet:
		return []interface{}{s.pendingSetBundle(firstNonce(req.Nonces))}
	case LevelSet:
		out := make([]interface{}, 0, len(req.Hashes))
		for i, h := range req.Hashes {
			out = append(out, s.levelSetBundle(h, nonceAt(req.Nonces, i)))
		}
		return out
	default:
		return nil
	}
}

func firstNonce(nonces []uint64) uint64 {
	if len(nonces) == 0 {
		return 0
	}
	return nonces[0]
}

func nonceAt(nonces []uint64, i int) uint64 {
	if i >= len(nonces) {
		return 0
	}
	return nonces[i]
}

func (s *Service) pendingSetBundle(nonce uint64) interface{} {
	best := s.Chains.Best()
	if best == nil {
		return NotFound{Nonce: nonce}
	}
	blocks := make([]*wire.MsgBlock, 0, len(best.PendingBlocks))
	for _, b := range best.PendingBlocks {
		blocks = append(blocks, b)
	}
	return newBundle(blocks, nonce)
}

func (s *Service) levelSetBundle(hash chainhash.Hash, nonce uint64) interface{} {
	best := s.Chains.Best()
	if best == nil {
		return NotFound{Hash: hash, Nonce: nonce}
	}
	height, ok := s.heightOfMilestone(hash, best)
	if !ok || s.Store == nil {
		return NotFound{Hash: hash, Nonce: nonce}
	}

	blocks, err := s.Store.GetLevelSetBlocks(height)
	if err != nil || len(blocks) == 0 {
		return NotFound{Hash: hash, Nonce: nonce}
	}

	return newBundle(swapToBack(blocks), nonce)
}

// newBundle serializes blocks to compute the integrity digest and
// wraps them into a Bundle.
func newBundle(blocks []*wire.MsgBlock, nonce uint64) Bundle {
	var buf bytes.Buffer
	for _, b := range blocks {
		if data, err := b.Bytes(); err == nil {
			buf.Write(data)
		}
	}
	return Bundle{Blocks: blocks, Nonce: nonce, Digest: blake3.Sum256(buf.Bytes())}
}

// swapToBack moves the first element (the milestone block, by the
// disk-order convention GetLevelSetBlocks returns) to the end of the
// slice, matching the §4.8 wire shape.
func swapToBack(blocks []*wire.MsgBlock) []*wire.MsgBlock {
	if len(blocks) < 2 {
		return blocks
	}
	out := make([]*wire.MsgBlock, 0, len(blocks))
	out = append(out, blocks[1:]...)
	out = append(out, blocks[0])
	return out
}

// SwapToFront recovers on-disk order (milestone block first) from a
// Bundle's wire order (milestone block last), for the receiving side
// of a LEVEL_SET GetData.
func SwapToFront(blocks []*wire.MsgBlock) []*wire.MsgBlock {
	if len(blocks) < 2 {
		return blocks
	}
	out := make([]*wire.MsgBlock, 0, len(blocks))
	out = append(out, blocks[len(blocks)-1])
	out = append(out, blocks[:len(blocks)-1]...)
	return out
}
