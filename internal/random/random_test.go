package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededSequencesAreReproducible(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestCloneAdvancesIndependently(t *testing.T) {
	a := New(7)
	a.Float64()
	b := a.Clone()
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.IntN(1000), b.IntN(1000))
	}
	a.Float64()
	assert.NotEqual(t, a.Float64(), b.Float64())
}

func TestRandIntBounds(t *testing.T) {
	r := New(1)
	for i := 0; i < 1000; i++ {
		v := r.RandInt(-3, 3)
		assert.GreaterOrEqual(t, v, -3)
		assert.LessOrEqual(t, v, 3)
	}
}

func TestUniformBounds(t *testing.T) {
	r := New(3)
	for i := 0; i < 1000; i++ {
		v := r.Uniform(-1, 1)
		assert.GreaterOrEqual(t, v, -1.0)
		assert.Less(t, v, 1.0)
	}
}
