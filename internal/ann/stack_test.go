package ann

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/random"
	"github.com/born-ml/april/internal/token"
)

func layer() *Stack {
	return NewStack("s",
		NewDotProduct("l1", "w1", 3, 2, false),
		NewBias("b1", "b1", 0),
		NewLogistic("a1"),
	)
}

func TestStackMatchesManualComposition(t *testing.T) {
	weights := WeightsDict{}
	components := ComponentsDict{}
	s := layer()
	s.Build(3, 0, weights, components)
	assert.Equal(t, 3, s.InputSize())
	assert.Equal(t, 2, s.OutputSize())
	assert.Equal(t, []string{"b1", "w1"}, weights.Names())
	require.Len(t, components, 4)

	rng := random.New(3)
	weights["w1"].RandomizeWeights(rng, -1, 1)
	weights["b1"].RandomizeWeights(rng, -1, 1)
	w := weights["w1"].Weights()
	b := weights["b1"].Weights().Rewrap(2)

	x := matrix.New([]int{4, 3}).Linear(-1, 0.2)
	g := matrix.New([]int{4, 2}).Linear(0.5, -0.25)

	y := token.ToMatrix("test", s.Forward(token.NewMatrix(x), true))
	dx := token.ToMatrix("test", s.Backprop(token.NewMatrix(g)))

	want := matrix.New([]int{4, 2})
	want.Gemm(device.NoTrans, device.Trans, 1, x, w, 0)
	var row matrix.Matrix
	for i := range 4 {
		want.Select(0, i, &row).Axpy(1, b)
	}
	want.Apply(func(v float32) float32 { return 1 / (1 + math32.Exp(-v)) })
	assert.True(t, want.Equals(y, 1e-5))

	dy := matrix.New([]int{4, 2})
	dy.Combine(g, want, func(g, y float32) float32 { return g * y * (1 - y) })
	wantDx := matrix.New([]int{4, 3})
	wantDx.Gemm(device.NoTrans, device.NoTrans, 1, dy, w, 0)
	assert.True(t, wantDx.Equals(dx, 1e-5))

	grads := ComputeAllGradients(components)
	require.Len(t, grads, 2)
	wantGw := matrix.New([]int{2, 3})
	wantGw.Gemm(device.Trans, device.NoTrans, 1, dy, x, 0)
	assert.True(t, wantGw.Equals(grads["w1"], 1e-5))

	// The stack's own collection agrees with the dictionary walk.
	direct := map[string]*matrix.Matrix{}
	s.ComputeGradients(direct)
	assert.True(t, direct["b1"].Equals(grads["b1"], 1e-6))
	assert.True(t, direct["w1"].Equals(grads["w1"], 1e-6))
}

func TestStackResetAndReuse(t *testing.T) {
	s := layer()
	s.Build(0, 0, WeightsDict{}, nil)
	x := tok([]float32{1, 2, 3}, 1, 3)
	first := values(s.Forward(x, false))
	s.Reset(1)
	for _, c := range s.Children() {
		assert.Nil(t, c.Input())
	}
	assert.Equal(t, first, values(s.Forward(x, false)))

	err := catch(func() { s.Push(NewTanh("")) })
	assert.True(t, errors.Is(err, fatal.ErrUsage))
}

func TestStackSizeConflict(t *testing.T) {
	err := catch(func() { layer().Build(3, 5, WeightsDict{}, nil) })
	assert.True(t, errors.Is(err, fatal.ErrUsage))
}

func TestStackBackpropBeforeForward(t *testing.T) {
	s := layer()
	s.Build(0, 0, WeightsDict{}, nil)
	err := catch(func() { s.Backprop(tok([]float32{1, 1}, 1, 2)) })
	assert.True(t, errors.Is(err, fatal.ErrUsage))
}

func TestStackCloneAndPersistedForm(t *testing.T) {
	s := NewStack("s").Push(NewDotProduct("l1", "w1", 3, 2, false), NewTanh("a1"))
	s.Build(0, 0, WeightsDict{}, nil)
	form := s.PersistedForm()
	assert.Equal(t, "ann.components.stack{ name='s', input=3, output=2 }"+
		":push( ann.components.dot_product{ name='l1', weights='w1', input=3, output=2, transpose=false } )"+
		":push( ann.components.actf.tanh{ name='a1', size=2 } )", form)

	c := s.Clone().(*Stack)
	require.Len(t, c.Children(), 2)
	assert.NotSame(t, s.Children()[0], c.Children()[0])

	// A clone built against a copy of the weights computes the same outputs.
	weights := WeightsDict{}
	s2 := layer()
	s2.Build(0, 0, weights, nil)
	weights["w1"].RandomizeWeights(random.New(5), -1, 1)
	c2 := s2.Clone()
	c2.Build(0, 0, weights.Clone(), nil)
	x := tok([]float32{1, 2, 3}, 1, 3)
	assert.Equal(t, values(s2.Forward(x, false)), values(c2.Forward(x, false)))
}
