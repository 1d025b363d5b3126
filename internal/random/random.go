// Package random provides the injected uniform random source used by weight
// randomization, matrix initializers and dropout masks.
//
// There is no process-wide generator: every stochastic operation receives a
// Source explicitly, so results are reproducible given a seed.
package random

import (
	"math/rand/v2"
)

// Source is the uniform random generator contract consumed by the core.
type Source interface {
	// Float64 returns a uniform draw in [0, 1).
	Float64() float64
	// IntN returns a uniform draw in [0, n). Panics if n <= 0.
	IntN(n int) int
}

// Generator is the default Source, a seeded PCG generator.
//
// The state is kept alongside the generator so a component holding a Generator
// can be cloned into an independently advancing copy.
type Generator struct {
	pcg *rand.PCG
	r   *rand.Rand
}

// New creates a generator seeded with seed.
func New(seed uint64) *Generator {
	pcg := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Generator{pcg: pcg, r: rand.New(pcg)}
}

// Float64 returns a uniform draw in [0, 1).
func (m *Generator) Float64() float64 {
	return m.r.Float64()
}

// IntN returns a uniform draw in [0, n).
func (m *Generator) IntN(n int) int {
	return m.r.IntN(n)
}

// RandInt returns a uniform integer in the closed range [lo, hi].
func (m *Generator) RandInt(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + m.r.IntN(hi-lo+1)
}

// Uniform returns a uniform float in [lo, hi).
func (m *Generator) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*m.r.Float64()
}

// Clone returns a generator with a copy of the current state. The copy and
// the original produce the same sequence from this point on but advance
// independently.
func (m *Generator) Clone() *Generator {
	state, err := m.pcg.MarshalBinary()
	if err != nil {
		panic(err)
	}
	pcg := &rand.PCG{}
	if err := pcg.UnmarshalBinary(state); err != nil {
		panic(err)
	}
	return &Generator{pcg: pcg, r: rand.New(pcg)}
}
