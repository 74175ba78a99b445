package consensus

import (
	"math/big"

	"github.com/epic-project/epicd/pow"
)

// cumRun is one run-length-encoded entry in a Cumulator's chainwork
// ring buffer: compact is a repeated nBits value, and runLen is the
// number of consecutive trailing (or leading) blocks that carry it.
// Adjacent blocks mined at an unchanged difficulty collapse into a
// single entry, which is the common case between retargets.
type cumRun struct {
	compact uint32
	runLen  uint32
}

// Cumulator is a sliding-window aggregate of the chainwork and
// timestamps of the last SortitionThreshold blocks of one peer
// chain, maintained incrementally so Chain.verify's sortition check
// is O(1) per block rather than an O(threshold) rewalk (Design Notes
// §9). Work is run-length encoded on a ring buffer; timestamps are
// held in a parallel ring buffer.
type Cumulator struct {
	capacity int

	runs  []cumRun
	times []uint32

	count int // total blocks currently represented across runs
}

// NewCumulator returns an empty Cumulator bounded to capacity blocks
// (typically dagconfig.Params.SortitionThreshold).
func NewCumulator(capacity int) *Cumulator {
	if capacity < 1 {
		capacity = 1
	}
	return &Cumulator{capacity: capacity}
}

// Add pushes one block's (compact target, timestamp) pair into the
// window. ascending selects which end grows: true appends to the
// tail (chronological extension of a chain), false prepends to the
// head (used when a Cumulator is rebuilt walking a chain backwards).
// When the window is full, the opposite end is popped by one block.
func (c *Cumulator) Add(compact uint32, timestamp uint32, ascending bool) {
	if ascending {
		if n := len(c.runs); n > 0 && c.runs[n-1].compact == compact {
			c.runs[n-1].runLen++
		} else {
			c.runs = append(c.runs, cumRun{compact: compact, runLen: 1})
		}
		c.times = append(c.times, timestamp)
	} else {
		if n := len(c.runs); n > 0 && c.runs[0].compact == compact {
			c.runs[0].runLen++
		} else {
			c.runs = append([]cumRun{{compact: compact, runLen: 1}}, c.runs...)
		}
		c.times = append([]uint32{timestamp}, c.times...)
	}
	c.count++

	for c.count > c.capacity {
		if ascending {
			c.popHead()
		} else {
			c.popTail()
		}
	}
}

func (c *Cumulator) popHead() {
	if len(c.runs) == 0 {
		return
	}
	c.runs[0].runLen--
	if c.runs[0].runLen == 0 {
		c.runs = c.runs[1:]
	}
	c.times = c.times[1:]
	c.count--
}

func (c *Cumulator) popTail() {
	n := len(c.runs)
	if n == 0 {
		return
	}
	c.runs[n-1].runLen--
	if c.runs[n-1].runLen == 0 {
		c.runs = c.runs[:n-1]
	}
	c.times = c.times[:len(c.times)-1]
	c.count--
}

// Sum returns the total chainwork represented in the window, the sum
// of pow.Work(compact) over every block, run-length expanded.
func (c *Cumulator) Sum() *big.Int {
	total := new(big.Int)
	for _, r := range c.runs {
		w := pow.Work(r.compact)
		w = new(big.Int).Mul(w, big.NewInt(int64(r.runLen)))
		total.Add(total, w)
	}
	return total
}

// TimeSpan returns the difference between the newest and oldest
// timestamp in the window, or 0 if fewer than two samples exist.
func (c *Cumulator) TimeSpan() uint32 {
	if len(c.times) < 2 {
		return 0
	}
	return c.times[len(c.times)-1] - c.times[0]
}

// Count returns the number of blocks currently represented.
func (c *Cumulator) Count() int {
	return c.count
}
