package ann

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/random"
)

func TestNewConnections(t *testing.T) {
	c := NewConnections(3, 2, nil, nil)
	assert.Equal(t, []int{2, 3}, c.Weights().Dims())
	assert.Equal(t, []int{2, 3}, c.PrevWeights().Dims())
	assert.Equal(t, 3, c.InputSize())
	assert.Equal(t, 2, c.OutputSize())
	assert.Equal(t, 6, c.Size())
	assert.True(t, c.CheckInputOutputSizes(3, 2))
	assert.False(t, c.CheckInputOutputSizes(2, 3))

	w := matrix.New([]int{2, 3}).Linear(1, 1)
	c = NewConnections(3, 2, w, nil)
	assert.Equal(t, w.Values(), c.Weights().Values())
	assert.Equal(t, float32(0), c.PrevWeights().Sum())
	w.Fill(0)
	assert.Equal(t, float32(21), c.Weights().Sum())

	err := catch(func() { NewConnections(3, 2, matrix.New([]int{3, 2}), nil) })
	assert.True(t, errors.Is(err, fatal.ErrShapeMismatch))
}

func TestRandomizeWeights(t *testing.T) {
	c := NewConnections(20, 10, nil, nil)
	c.RandomizeWeights(random.New(1), -0.1, 0.1)
	for _, v := range c.Weights().Values() {
		assert.GreaterOrEqual(t, v, float32(-0.1))
		assert.LessOrEqual(t, v, float32(0.1))
		assert.Greater(t, math32.Abs(v), float32(1e-7))
	}
	assert.Equal(t, c.Weights().Values(), c.PrevWeights().Values())

	// Same seed, same weights.
	d := NewConnections(20, 10, nil, nil)
	d.RandomizeWeights(random.New(1), -0.1, 0.1)
	assert.Equal(t, c.Weights().Values(), d.Weights().Values())
}

func TestRandomizeWeightsRejectsNearZero(t *testing.T) {
	c := NewConnections(1, 1, nil, nil)
	// 0.5 maps to exactly zero in [-1, 1] and is redrawn.
	rng := &sequence{values: []float64{0.5, 0.5, 0.75}}
	c.RandomizeWeights(rng, -1, 1)
	assert.Equal(t, []float32{0.5}, c.Weights().Values())
	assert.Equal(t, 3, rng.next)
}

func TestRandomizeWeightsBounds(t *testing.T) {
	c := NewConnections(2, 2, nil, nil)
	for _, b := range [][2]float32{{0, 1}, {-1, 1e-8}, {-1e-8, 1e-8}} {
		err := catch(func() { c.RandomizeWeights(random.New(1), b[0], b[1]) })
		assert.True(t, errors.Is(err, fatal.ErrInvalidArgument), "bounds %v", b)
	}
}

func TestRandomizeWeightsAtColumn(t *testing.T) {
	c := NewConnections(4, 3, nil, nil)
	c.RandomizeWeightsAtColumn(1, random.New(5), -1, 1)

	w := c.Weights()
	for j := range 3 {
		for i := range 4 {
			if j == 1 {
				assert.NotZero(t, w.At(j, i))
			} else {
				assert.Zero(t, w.At(j, i))
			}
			assert.Equal(t, w.At(j, i), c.PrevWeights().At(j, i))
		}
	}
	err := catch(func() { c.RandomizeWeightsAtColumn(3, random.New(5), -1, 1) })
	assert.True(t, errors.Is(err, fatal.ErrInvalidArgument))
}

func TestLoadWeights(t *testing.T) {
	c := NewConnections(2, 3, nil, nil)
	data := matrix.New([]int{9}).Linear(0, 1)
	old := matrix.New([]int{9}).Linear(100, 1)

	next := c.LoadWeights(data, old, 1, 3)
	assert.Equal(t, 10, next)
	assert.Equal(t, []float32{1, 2, 4, 5, 7, 8}, c.Weights().Values())
	assert.Equal(t, []float32{101, 102, 104, 105, 107, 108}, c.PrevWeights().Values())

	// A nil old buffer loads both from data.
	c.LoadWeights(data, nil, 0, 2)
	assert.Equal(t, c.Weights().Values(), c.PrevWeights().Values())
}

func TestLoadWeightsPreconditions(t *testing.T) {
	c := NewConnections(2, 3, nil, nil)

	err := catch(func() { c.LoadWeights(matrix.New([]int{8}), nil, 1, 3) })
	assert.True(t, errors.Is(err, fatal.ErrShapeMismatch))

	strided := matrix.New([]int{20, 2}).Select(1, 0, nil)
	err = catch(func() { c.LoadWeights(strided, nil, 0, 2) })
	assert.True(t, errors.Is(err, fatal.ErrContiguity))

	err = catch(func() { c.LoadWeights(matrix.New([]int{9}), matrix.New([]int{3, 3}), 0, 2) })
	assert.True(t, errors.Is(err, fatal.ErrShapeMismatch))

	err = catch(func() { c.LoadWeights(matrix.New([]int{9}), nil, 0, 1) })
	assert.True(t, errors.Is(err, fatal.ErrInvalidArgument))
}

func TestCopyWeightsToChains(t *testing.T) {
	a := NewConnections(2, 2, nil, nil)
	b := NewConnections(2, 3, nil, nil)
	a.RandomizeWeights(random.New(1), -1, 1)
	b.RandomizeWeights(random.New(2), -1, 1)

	buf := matrix.New([]int{10})
	oldBuf := matrix.New([]int{10})
	pos := a.CopyWeightsTo(buf, oldBuf, 0, 2)
	pos = b.CopyWeightsTo(buf, oldBuf, pos, 2)
	assert.Equal(t, 10, pos)

	a2 := NewConnections(2, 2, nil, nil)
	b2 := NewConnections(2, 3, nil, nil)
	pos = a2.LoadWeights(buf, oldBuf, 0, 2)
	b2.LoadWeights(buf, oldBuf, pos, 2)
	assert.Equal(t, a.Weights().Values(), a2.Weights().Values())
	assert.Equal(t, b.PrevWeights().Values(), b2.PrevWeights().Values())
}

func TestSwapIsPointerExchange(t *testing.T) {
	c := NewConnections(2, 2, nil, nil)
	w, prev := c.Weights(), c.PrevWeights()
	c.Swap()
	assert.Same(t, prev, c.Weights())
	assert.Same(t, w, c.PrevWeights())
}

func TestCloneIsDeep(t *testing.T) {
	c := NewConnections(2, 2, nil, nil)
	c.RandomizeWeights(random.New(3), -1, 1)
	c.IncShared()
	d := c.Clone()
	assert.Equal(t, c.Weights().Values(), d.Weights().Values())
	assert.Zero(t, d.SharedCount())
	d.Weights().Fill(0)
	assert.NotZero(t, c.Weights().Norm2())
}

func TestPruneSubnormalAndCheckNormal(t *testing.T) {
	c := NewConnections(3, 1, matrix.FromSlice([]float32{1e-40, -1e-40, 0.5}, []int{1, 3}), nil)
	c.PruneSubnormalAndCheckNormal()
	assert.Equal(t, []float32{1e-40, -1e-40, 0.5}, c.Weights().Values())
	c.FlushSubnormal()
	assert.Equal(t, []float32{0, 0, 0.5}, c.Weights().Values())

	c.Weights().Set(math32.Inf(1), 0, 1)
	err := catch(c.PruneSubnormalAndCheckNormal)
	assert.True(t, errors.Is(err, fatal.ErrNonFinite))
	assert.Contains(t, err.Error(), "weights matrix")

	c.Weights().Set(math32.NaN(), 0, 1)
	assert.True(t, errors.Is(catch(c.PruneSubnormalAndCheckNormal), fatal.ErrNonFinite))
}

func TestConnectionsPersistedForm(t *testing.T) {
	c := NewConnections(3, 2, nil, nil)
	c.RandomizeWeights(random.New(9), -1, 1)
	c.PrevWeights().Scal(0.5)

	form := c.PersistedForm()
	assert.Contains(t, form, "ann.connections{ input=3, output=2, w=matrix.fromString[[")

	d, err := ParseConnections(form)
	require.NoError(t, err)
	assert.Equal(t, c.Weights().Values(), d.Weights().Values())
	assert.Equal(t, c.PrevWeights().Values(), d.PrevWeights().Values())

	_, err = ParseConnections("ann.connections{ input=2, output=2, w=matrix.fromString[[1\n1\nascii row_major\n1\n]] }")
	assert.Error(t, err)
	_, err = ParseConnections("garbage")
	assert.Error(t, err)
	_, err = ParseConnections("ann.connections{ input=65536, output=1048576, w=matrix.fromString[[2\n1048576 65536\nbinary row_major\n0\n]] }")
	assert.ErrorIs(t, err, matrix.ErrMalformed)
}
