package ann_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/april/ann"
	"github.com/born-ml/april/matrix"
	"github.com/born-ml/april/optim"
)

func TestPublicAPITrainsXOR(t *testing.T) {
	weights := ann.WeightsDict{}
	components := ann.ComponentsDict{}
	net := ann.NewStack("net",
		ann.NewDotProduct("l1", "w1", 2, 8, false), ann.NewBias("b1", "b1", 0), ann.NewTanh("a1"),
		ann.NewDotProduct("l2", "w2", 8, 2, false), ann.NewBias("b2", "b2", 0), ann.NewLogSoftmax("out"),
	)
	net.Build(2, 2, weights, components)
	rng := ann.NewRandom(11)
	for _, name := range weights.Names() {
		weights[name].RandomizeWeights(rng, -0.5, 0.5)
	}

	x := ann.NewToken(matrix.FromSlice([]float32{0, 0, 0, 1, 1, 0, 1, 1}, []int{4, 2}))
	y := ann.NewToken(matrix.FromSlice([]float32{1, 0, 0, 1, 0, 1, 1, 0}, []int{4, 2}))
	lf := ann.NewMultiClassCrossEntropy(2)
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.05})

	var first, last float32
	for i := range 1000 {
		net.Reset(0)
		out := net.Forward(x, true)
		last = lf.AddLoss(out, y)
		if i == 0 {
			first = last
		}
		net.Backprop(lf.ComputeGradient(out, y))
		opt.Update(weights, ann.ComputeAllGradients(components))
	}
	assert.Less(t, last, first/2)
}

func TestFaultsAreRecoverable(t *testing.T) {
	run := func() (err error) {
		defer matrix.Recover(&err)
		a := matrix.New([]int{2, 3})
		b := matrix.New([]int{3, 2})
		a.Axpy(1, b)
		return nil
	}
	err := run()
	require.Error(t, err)
	assert.ErrorIs(t, err, matrix.ErrShapeMismatch)
}

func TestMatrixTextRoundTrip(t *testing.T) {
	m := matrix.FromSlice([]float32{1, 2.5, -3, 4}, []int{2, 2}, matrix.WithMajorOrder(matrix.ColMajor))
	got, err := matrix.ReadString(matrix.WriteString(m, matrix.Binary))
	require.NoError(t, err)
	assert.True(t, got.Equals(m, 0))
}
