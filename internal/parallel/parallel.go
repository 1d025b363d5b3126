// Package parallel splits host-side element loops across goroutines.
//
// This is the only host parallelism of the numeric core: a single kernel call
// is partitioned into disjoint index ranges and joined before returning, so
// callers observe a synchronous operation.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls host data-parallel execution.
type Config struct {
	Enabled      bool // Whether ranges may run on several goroutines.
	NumWorkers   int  // Upper bound on goroutines per call (<= 0 means NumCPU).
	MinChunkSize int  // Minimum elements per goroutine.
}

// DefaultConfig returns defaults derived from the CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4096,
	}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// Chunks returns how many ranges Range would split n elements into.
func (c Config) Chunks(n int) int {
	if n <= 0 {
		return 0
	}
	if !c.Enabled || n < 2*max(c.MinChunkSize, 1) {
		return 1
	}
	workers := c.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	chunk := max((n+workers-1)/workers, c.MinChunkSize, 1)
	return (n + chunk - 1) / chunk
}

// Range calls f(lo, hi) over disjoint ranges covering [0, n).
// Falls back to a single call when parallelism is disabled or n is small.
func Range(n int, cfg Config, f func(lo, hi int)) {
	chunks := cfg.Chunks(n)
	switch chunks {
	case 0:
		return
	case 1:
		f(0, n)
		return
	}

	chunk := (n + chunks - 1) / chunks
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			f(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n).
func For(n int, cfg Config, f func(i int)) {
	Range(n, cfg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			f(i)
		}
	})
}
