package consensus

import "testing"

func TestCumulatorWindowEviction(t *testing.T) {
	c := NewCumulator(3)
	c.Add(0x1d00ffff, 1000, true)
	c.Add(0x1d00ffff, 1010, true)
	c.Add(0x1d00ffff, 1020, true)
	if c.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", c.Count())
	}
	c.Add(0x1d00ffff, 1030, true)
	if c.Count() != 3 {
		t.Fatalf("Count() after overflow = %d, want 3", c.Count())
	}
	if got, want := c.TimeSpan(), uint32(1030-1010); got != want {
		t.Fatalf("TimeSpan() = %d, want %d", got, want)
	}
}

func TestCumulatorRunLengthCollapses(t *testing.T) {
	c := NewCumulator(10)
	for i := 0; i < 5; i++ {
		c.Add(0x1d00ffff, uint32(1000+i*10), true)
	}
	if len(c.runs) != 1 {
		t.Fatalf("expected a single collapsed run, got %d runs", len(c.runs))
	}
	if c.runs[0].runLen != 5 {
		t.Fatalf("runLen = %d, want 5", c.runs[0].runLen)
	}
}

func TestCumulatorSumIncreasesWithMoreBlocks(t *testing.T) {
	c := NewCumulator(10)
	c.Add(0x1d00ffff, 1000, true)
	one := c.Sum()
	c.Add(0x1d00ffff, 1010, true)
	two := c.Sum()
	if two.Cmp(one) <= 0 {
		t.Fatalf("Sum() did not increase: one=%s two=%s", one, two)
	}
}

func TestCumulatorDescendingPrepend(t *testing.T) {
	c := NewCumulator(5)
	c.Add(0x1d00ffff, 2000, false)
	c.Add(0x1e00ffff, 1990, false)
	if len(c.times) != 2 || c.times[0] != 1990 {
		t.Fatalf("expected prepend ordering, got times=%v", c.times)
	}
}
