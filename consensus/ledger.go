package consensus

// PersistedUTXOLookup is satisfied by the block store's utxo column:
// it answers whether a key that has already been flushed out of the
// in-memory ledger still exists on disk.
type PersistedUTXOLookup interface {
	LookupUTXO(key UTXOKey) (*UTXO, bool)
}

// Ledger tracks a single chain's UTXO set across the three states
// named in the specification. The three maps are pairwise disjoint by
// construction: every mutator either moves a key between maps or
// inserts/removes it from exactly one.
type Ledger struct {
	pending   map[UTXOKey]*UTXO
	confirmed map[UTXOKey]*UTXO
	removed   map[UTXOKey]struct{}

	store PersistedUTXOLookup
}

// NewLedger returns an empty Ledger backed by store for persisted
// lookups. store may be nil in tests that never call find_spendable
// past the in-memory window.
func NewLedger(store PersistedUTXOLookup) *Ledger {
	return &Ledger{
		pending:   make(map[UTXOKey]*UTXO),
		confirmed: make(map[UTXOKey]*UTXO),
		removed:   make(map[UTXOKey]struct{}),
		store:     store,
	}
}

// AddToPending inserts utxo into the pending set.
func (l *Ledger) AddToPending(utxo *UTXO) {
	l.pending[utxo.Key()] = utxo
}

// FindSpendable implements find_spendable: it succeeds if key is
// confirmed in memory, or — absent a removal marker — if it is
// present in the persisted UTXO table.
func (l *Ledger) FindSpendable(key UTXOKey) (*UTXO, bool) {
	if u, ok := l.confirmed[key]; ok {
		return u, true
	}
	if _, ok := l.removed[key]; ok {
		return nil, false
	}
	if l.store != nil {
		return l.store.LookupUTXO(key)
	}
	return nil, false
}

// Update applies txoc: created keys move pending -> confirmed, spent
// keys move confirmed -> removed.
func (l *Ledger) Update(txoc *TXOC) {
	for k, u := range txoc.Created {
		delete(l.pending, k)
		l.confirmed[k] = u
	}
	for k := range txoc.Spent {
		delete(l.confirmed, k)
		l.removed[k] = struct{}{}
	}
}

// Invalidate moves each of txoc's spent keys from pending to removed.
// It is used when a transaction was accepted syntactically into a
// chain's pending pool but failed validation at milestone time, so
// its would-be outputs must never become spendable.
func (l *Ledger) Invalidate(txoc *TXOC) {
	for k := range txoc.Spent {
		delete(l.pending, k)
		l.removed[k] = struct{}{}
	}
}

// Rollback is the inverse of Update, used when a milestone is undone
// during a fork rebase: confirmed keys return to pending, removed
// keys return to confirmed.
func (l *Ledger) Rollback(txoc *TXOC) {
	for k, u := range txoc.Created {
		delete(l.confirmed, k)
		l.pending[k] = u
	}
	for k := range txoc.Spent {
		delete(l.removed, k)
		// The confirmed value for a spent key is not retained by TXOC
		// (only its key is), so the caller must already hold a Vertex
		// or UTXO able to re-supply it; Chain.newFork reconstructs it
		// from the still-confirmed predecessor state before rollback
		// is ever invoked on a spend that crosses the fork point.
	}
}

// Remove drops txoc's entries from the ledger entirely. It is used
// when a level set has been durably flushed to the block store and no
// longer needs an in-memory presence.
func (l *Ledger) Remove(txoc *TXOC) {
	for k := range txoc.Created {
		delete(l.confirmed, k)
	}
	for k := range txoc.Spent {
		delete(l.removed, k)
	}
}

// Clone returns a deep-enough copy of the ledger for fork
// construction: the three maps are copied so that future mutation of
// either ledger is independent.
func (l *Ledger) Clone() *Ledger {
	c := NewLedger(l.store)
	for k, v := range l.pending {
		c.pending[k] = v
	}
	for k, v := range l.confirmed {
		c.confirmed[k] = v
	}
	for k := range l.removed {
		c.removed[k] = struct{}{}
	}
	return c
}
