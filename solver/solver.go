// Package solver declares the proof-of-work solver contract. The core
// consensus engine treats the solver as an opaque collaborator: it
// hands over a candidate block and either gets back a solved block
// (header populated with a valid nonce and proof) or learns the
// attempt was aborted. Nothing in this package performs any mining;
// it exists only so consensus code can depend on an interface rather
// than a concrete CPU or remote-RPC implementation.
package solver

import (
	"context"

	"github.com/epic-project/epicd/wire"
)

// Aborted is returned by Solve when the caller's context is canceled
// before a solution is found.
type Aborted struct{}

func (Aborted) Error() string { return "solve aborted" }

// Solver is satisfied by a CPU miner, a remote RPC solver pool, or any
// other proof producer. The core never inspects how it works.
type Solver interface {
	// Solve attempts to find a nonce (and accompanying proof) that
	// makes candidate's hash meet its target Bits. It blocks until a
	// solution is found or ctx is canceled.
	Solve(ctx context.Context, candidate *wire.MsgBlock) (*wire.MsgBlock, error)
}

// Func adapts a plain function to the Solver interface.
type Func func(ctx context.Context, candidate *wire.MsgBlock) (*wire.MsgBlock, error)

// Solve implements Solver.
func (f Func) Solve(ctx context.Context, candidate *wire.MsgBlock) (*wire.MsgBlock, error) {
	return f(ctx, candidate)
}
