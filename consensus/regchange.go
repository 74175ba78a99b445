package consensus

import "github.com/epic-project/epicd/chainhash"

// RegChange is an increment over the (peer-chain-head-hash ->
// last-registration-hash) mapping. Every block extends some peer
// chain by one, so every block's arrival retires its parent's head
// entry and installs its own hash as the new head, carrying forward
// (or replacing, on a registration event) the last-registration hash.
type RegChange struct {
	Created map[chainhash.Hash]chainhash.Hash
	Removed map[chainhash.Hash]struct{}
}

// NewRegChange returns an empty RegChange.
func NewRegChange() *RegChange {
	return &RegChange{
		Created: make(map[chainhash.Hash]chainhash.Hash),
		Removed: make(map[chainhash.Hash]struct{}),
	}
}

// Create records head -> lastReg as a new mapping.
func (c *RegChange) Create(head, lastReg chainhash.Hash) {
	c.Created[head] = lastReg
}

// Remove records head's mapping as retired.
func (c *RegChange) Remove(head chainhash.Hash) {
	c.Removed[head] = struct{}{}
}

// Merge folds other into c in place.
func (c *RegChange) Merge(other *RegChange) {
	for k, v := range other.Created {
		c.Created[k] = v
	}
	for k := range other.Removed {
		c.Removed[k] = struct{}{}
	}
}

// Apply mutates m (typically a Chain's prevRedemHashMap) according to
// this change: removed heads are deleted, then created heads are
// installed, matching the order an on-disk RegChange would be
// replayed in.
func (c *RegChange) Apply(m map[chainhash.Hash]chainhash.Hash) {
	for head := range c.Removed {
		delete(m, head)
	}
	for head, lastReg := range c.Created {
		m[head] = lastReg
	}
}

// Undo reverses Apply, used when rolling back a fork.
func (c *RegChange) Undo(m map[chainhash.Hash]chainhash.Hash) {
	for head := range c.Created {
		delete(m, head)
	}
	// Removed entries cannot be perfectly restored without knowing
	// their prior value; callers that need exact rollback (Chain.new_fork)
	// reconstruct prevRedemHashMap by replaying RegChanges of the
	// surviving milestones instead of calling Undo on a single one.
}
