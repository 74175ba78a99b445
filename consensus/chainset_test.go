package consensus

import (
	"math/big"
	"testing"

	"github.com/epic-project/epicd/dagconfig"
)

func chainWithChainwork(work int64) *Chain {
	params := &dagconfig.UnittestParams
	genesis := NewGenesisMilestone(params, 1000)
	genesis.Chainwork = big.NewInt(work)
	return NewChain(params, nil, genesis)
}

func TestChainSetBestTracksHighestChainwork(t *testing.T) {
	s := NewChainSet()
	low := chainWithChainwork(10)
	high := chainWithChainwork(100)

	s.Push(low)
	if s.Best() != low {
		t.Fatal("expected the only chain to be best")
	}
	s.Push(high)
	if s.Best() != high {
		t.Fatal("expected the higher-chainwork chain to become best")
	}
	if !high.IsMain || low.IsMain {
		t.Fatal("expected IsMain to flip to the new best chain")
	}
}

func TestChainSetPopRecomputesBest(t *testing.T) {
	s := NewChainSet()
	low := chainWithChainwork(10)
	high := chainWithChainwork(100)
	s.Push(low)
	s.Push(high)

	popped := s.Pop()
	if popped != high {
		t.Fatal("expected Pop to remove the best chain")
	}
	if s.Best() != low {
		t.Fatal("expected remaining chain to become best after Pop")
	}
}

func TestChainSetEraseBestPanics(t *testing.T) {
	s := NewChainSet()
	s.Push(chainWithChainwork(10))

	defer func() {
		if recover() == nil {
			t.Fatal("expected Erase on the best chain to panic")
		}
	}()
	s.Erase(0)
}
