package device

import (
	"fmt"
	"math/bits"
)

// Capabilities are the backend limits consulted when computing launch
// geometry. The reduce constants are tuning values, not hardware facts.
type Capabilities struct {
	MaxThreadsPerBlock  int `yaml:"max_threads_per_block"`
	MinReduceThreadSize int `yaml:"min_reduce_thread_size"`
	MaxReduceThreadSize int `yaml:"max_reduce_thread_size"`
	MaxReduceNumThreads int `yaml:"max_reduce_num_threads"`
}

// DefaultCapabilities returns the limits used when no accelerator reports its own.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		MaxThreadsPerBlock:  1024,
		MinReduceThreadSize: 32,
		MaxReduceThreadSize: 4096,
		MaxReduceNumThreads: 256,
	}
}

// Validate checks that every limit is positive and the reduce bounds are ordered.
func (c Capabilities) Validate() error {
	switch {
	case c.MaxThreadsPerBlock < 1:
		return fmt.Errorf("max_threads_per_block must be >= 1, got %d", c.MaxThreadsPerBlock)
	case c.MinReduceThreadSize < 1:
		return fmt.Errorf("min_reduce_thread_size must be >= 1, got %d", c.MinReduceThreadSize)
	case c.MaxReduceThreadSize < c.MinReduceThreadSize:
		return fmt.Errorf("max_reduce_thread_size (%d) < min_reduce_thread_size (%d)",
			c.MaxReduceThreadSize, c.MinReduceThreadSize)
	case c.MaxReduceNumThreads < 1:
		return fmt.Errorf("max_reduce_num_threads must be >= 1, got %d", c.MaxReduceNumThreads)
	}
	return nil
}

// Dim3 is a three-dimensional launch extent.
type Dim3 struct {
	X, Y, Z int
}

// Total returns X*Y*Z.
func (d Dim3) Total() int {
	return d.X * d.Y * d.Z
}

// maxPowerOfTwo is the largest power of two an int holds.
const maxPowerOfTwo = 1 << 62

// CeilingPowerOfTwo returns the smallest power of two >= n (1 for n <= 1).
// Values above 1<<62 saturate at 1<<62.
func CeilingPowerOfTwo(n int) int {
	switch {
	case n <= 1:
		return 1
	case n > maxPowerOfTwo:
		return maxPowerOfTwo
	}
	return 1 << bits.Len(uint(n-1))
}

func ceilDiv(n, d int) int {
	return n/d + boolToInt(n%d != 0)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// reductionThreads picks the thread count for an N-element reduction: the
// power-of-two rounding of N divided by the minimum work per thread, bounded
// by the reduce thread limit and the block limit.
func reductionThreads(n int, caps Capabilities) int {
	n2 := CeilingPowerOfTwo(n)
	return max(1, min(n2/caps.MinReduceThreadSize,
		min(caps.MaxReduceNumThreads, caps.MaxThreadsPerBlock)))
}

// ComputeReductionSize returns the launch geometry for reducing N elements.
// The result always satisfies numThreads*threadSize*numBlocks >= N with every
// value >= 1.
func ComputeReductionSize(n int, caps Capabilities) (numThreads, threadSize, numBlocks int) {
	if n < 1 {
		return 1, 1, 1
	}
	numThreads = reductionThreads(n, caps)
	threadSize = max(1, min(caps.MaxReduceThreadSize, ceilDiv(n, numThreads)))
	numBlocks = max(1, ceilDiv(n, numThreads*threadSize))
	return numThreads, threadSize, numBlocks
}

// ComputeSecondReductionSize returns the thread count used to fold the
// per-block partial results of a first reduction pass.
func ComputeSecondReductionSize(n int, caps Capabilities) int {
	if n < 1 {
		return 1
	}
	return reductionThreads(n, caps)
}

// ComputeBlockAndGridSizesForArray returns threads per block and block count
// for a one-dimensional element-wise kernel over N elements.
func ComputeBlockAndGridSizesForArray(n int, caps Capabilities) (numThreads, numBlocks int) {
	numThreads, _, numBlocks = ComputeReductionSize(n, caps)
	return numThreads, numBlocks
}

// ComputeBlockAndGridSizesFor2DMatrix returns block and grid extents for a
// two-dimensional N×M element-wise kernel. Extents below 1 are treated as 1.
func ComputeBlockAndGridSizesFor2DMatrix(n, m int, caps Capabilities) (block, grid Dim3) {
	n, m = max(n, 1), max(m, 1)
	maxThreads := caps.MaxThreadsPerBlock

	block.X = min(maxThreads, n)
	block.Y = max(1, min(maxThreads/block.X, m))
	block.Z = 1

	grid.X = ceilDiv(n, block.X)
	grid.Y = ceilDiv(m, block.Y)
	grid.Z = 1
	return block, grid
}
