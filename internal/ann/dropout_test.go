package ann

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/random"
	"github.com/born-ml/april/internal/token"
)

func TestDropoutTrainingMask(t *testing.T) {
	// Draws below prob mask the unit.
	rng := &sequence{values: []float64{0.1, 0.9, 0.3, 0.6}}
	d := NewDropout("d", rng, -5, 0.5, 4)
	d.Build(4, 4, nil, nil)

	out := values(d.Forward(tok([]float32{1, 2, 3, 4}, 1, 4), true))
	assert.Equal(t, []float32{-5, 4, -5, 8}, out)

	g := values(d.Backprop(tok([]float32{1, 1, 1, 1}, 1, 4)))
	assert.Equal(t, []float32{0, 2, 0, 2}, g)
}

func TestDropoutInferenceIsIdentity(t *testing.T) {
	d := NewDropout("", random.New(1), 0, 0.5, 0)
	d.Build(0, 0, nil, nil)
	in := tok([]float32{1, 2, 3}, 1, 3)
	assert.Same(t, in, d.Forward(in, false))
	errIn := tok([]float32{1, 1, 1}, 1, 3)
	assert.Same(t, errIn, d.Backprop(errIn))
}

func TestDropoutKeepsExpectation(t *testing.T) {
	d := NewDropout("", random.New(42), 0, 0.25, 0)
	d.Build(0, 0, nil, nil)
	x := matrix.New([]int{100, 100}).Ones()
	out := token.ToMatrix("test", d.Forward(token.NewMatrix(x), true))
	assert.InDelta(t, 1, out.Sum()/float32(out.Size()), 0.05)
}

func TestDropoutProbabilityOne(t *testing.T) {
	d := NewDropout("", random.New(1), 7, 1, 0)
	d.Build(0, 0, nil, nil)
	out := values(d.Forward(tok([]float32{1, 2}, 1, 2), true))
	assert.Equal(t, []float32{7, 7}, out)
	assert.Equal(t, []float32{0, 0}, values(d.Backprop(tok([]float32{3, 3}, 1, 2))))
}

func TestDropoutCloneReplaysMask(t *testing.T) {
	d := NewDropout("d", random.New(9), 0, 0.5, 0)
	c := d.Clone()
	d.Build(0, 0, nil, nil)
	c.Build(0, 0, nil, nil)
	x := matrix.New([]int{4, 8}).Ones()
	a := values(d.Forward(token.NewMatrix(x), true))
	b := values(c.Forward(token.NewMatrix(x), true))
	assert.Equal(t, a, b)
	assert.Equal(t, "ann.components.dropout{ name='d', size=0, prob=0.5, value=0 }", d.PersistedForm())
}

func TestDropoutInvalidProbability(t *testing.T) {
	for _, prob := range []float32{1.5, -0.1, math32.NaN()} {
		err := catch(func() { NewDropout("", random.New(1), 0, prob, 0) })
		assert.True(t, errors.Is(err, fatal.ErrInvalidArgument), "prob %g", prob)
	}
	assert.NotPanics(t, func() { NewDropout("", random.New(1), 0, 1, 0) })
}
