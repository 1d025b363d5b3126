package matrix

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/fatal"
)

// naiveGemm is the reference product alpha*op(a)*op(b) + beta*c.
func naiveGemm(ta, tb device.Transpose, alpha float32, a, b *Matrix, beta float32, c *Matrix) []float32 {
	get := func(m *Matrix, t device.Transpose, i, j int) float32 {
		if t.IsTransposed() {
			return m.At(j, i)
		}
		return m.At(i, j)
	}
	rows, cols := c.DimSize(0), c.DimSize(1)
	_, k := opDims(a, ta)
	out := make([]float32, 0, rows*cols)
	for i := range rows {
		for j := range cols {
			var s float32
			for p := range k {
				s += get(a, ta, i, p) * get(b, tb, p, j)
			}
			out = append(out, alpha*s+beta*c.At(i, j))
		}
	}
	return out
}

func rowMajorValues(m *Matrix) []float32 {
	out := make([]float32, 0, m.Size())
	for i := range m.DimSize(0) {
		for j := range m.DimSize(1) {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

func TestGemmLayouts(t *testing.T) {
	layouts := []MajorOrder{RowMajor, ColMajor}
	trans := []device.Transpose{device.NoTrans, device.Trans}

	for _, oa := range layouts {
		for _, ob := range layouts {
			for _, oc := range layouts {
				for _, ta := range trans {
					for _, tb := range trans {
						aDims := []int{3, 4}
						if ta.IsTransposed() {
							aDims = []int{4, 3}
						}
						bDims := []int{4, 2}
						if tb.IsTransposed() {
							bDims = []int{2, 4}
						}
						a := New(aDims, WithMajorOrder(oa)).Linear(1, 0.5)
						b := New(bDims, WithMajorOrder(ob)).Linear(-2, 0.25)
						c := New([]int{3, 2}, WithMajorOrder(oc)).Linear(0, 1)
						want := naiveGemm(ta, tb, 2, a, b, 0.5, c)

						c.Gemm(ta, tb, 2, a, b, 0.5)
						assert.InDeltaSlice(t, want, rowMajorValues(c), 1e-4,
							"a=%v b=%v c=%v ta=%v tb=%v", oa, ob, oc, ta, tb)
					}
				}
			}
		}
	}
}

func TestGemmStridedOperands(t *testing.T) {
	big := New([]int{6, 6}).Linear(0, 1)
	a := big.Slice([]int{0, 1}, []int{3, 2})
	b := big.Slice([]int{2, 0}, []int{2, 4}).Transpose().Transpose()
	c := New([]int{6, 8}).Slice([]int{1, 2}, []int{3, 4})
	want := naiveGemm(device.NoTrans, device.NoTrans, 1, a, b, 0, c)
	c.Gemm(device.NoTrans, device.NoTrans, 1, a, b, 0)
	assert.InDeltaSlice(t, want, rowMajorValues(c), 1e-3)

	// Every other element of the last dimension: no BLAS description exists
	// for these views, so they are compacted.
	a2 := New([]int{3, 2, 2}).Linear(1, 1).Select(2, 0, nil)
	c2 := New([]int{3, 3, 2}).Select(2, 1, nil)
	b2 := New([]int{2, 3}).Linear(0, 0.5)
	_, _, ok := general(a2.block.HostForRead(), a2)
	assert.False(t, ok)
	want = naiveGemm(device.NoTrans, device.NoTrans, 1, a2, b2, 0, c2)
	c2.Gemm(device.NoTrans, device.NoTrans, 1, a2, b2, 0)
	assert.InDeltaSlice(t, want, rowMajorValues(c2), 1e-4)
}

func TestGemmShapeMismatch(t *testing.T) {
	a := New([]int{2, 3})
	b := New([]int{2, 3})
	c := New([]int{2, 3})
	err := catch(func() { c.Gemm(device.NoTrans, device.NoTrans, 1, a, b, 0) })
	assert.True(t, errors.Is(err, fatal.ErrShapeMismatch))
	assert.Contains(t, err.Error(), "op(A) 2x3 * op(B) 2x3")

	err = catch(func() { c.Gemm(device.NoTrans, device.NoTrans, 1, New([]int{6}), b, 0) })
	assert.True(t, errors.Is(err, fatal.ErrShapeMismatch))
}

func TestGemmEmptyInner(t *testing.T) {
	c := New([]int{2, 2}).Ones()
	c.Gemm(device.NoTrans, device.NoTrans, 1, New([]int{2, 0}), New([]int{0, 2}), 3)
	assert.Equal(t, []float32{3, 3, 3, 3}, c.Values())
}

func TestGemv(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3, 4, 5, 6}, []int{2, 3})
	x := FromSlice([]float32{1, 0, -1}, []int{3})
	y := FromSlice([]float32{1, 1}, []int{2})
	y.Gemv(device.NoTrans, 1, a, x, 2)
	assert.Equal(t, []float32{0, 0}, y.Values())

	z := New([]int{3})
	z.Gemv(device.Trans, 1, a, FromSlice([]float32{1, 1}, []int{2}), 0)
	assert.Equal(t, []float32{5, 7, 9}, z.Values())

	// Column vector operands and a column-major matrix.
	ac := a.CloneAs(ColMajor)
	col := New([]int{2, 1})
	col.Gemv(device.NoTrans, 1, ac, x.Rewrap(3, 1), 0)
	assert.Equal(t, []float32{-2, -2}, col.Values())

	err := catch(func() { y.Gemv(device.NoTrans, 1, a, New([]int{2}), 0) })
	assert.True(t, errors.Is(err, fatal.ErrShapeMismatch))
	err = catch(func() { y.Gemv(device.NoTrans, 1, a, New([]int{3, 3}), 0) })
	assert.True(t, errors.Is(err, fatal.ErrShapeMismatch))
}

func TestGer(t *testing.T) {
	x := FromSlice([]float32{1, 2}, []int{2})
	y := FromSlice([]float32{1, 10, 100}, []int{3})
	for _, order := range []MajorOrder{RowMajor, ColMajor} {
		a := New([]int{2, 3}, WithMajorOrder(order)).Ones()
		a.Ger(2, x, y)
		assert.Equal(t, []float32{3, 21, 201, 5, 41, 401}, rowMajorValues(a), "order %v", order)
	}
	err := catch(func() { New([]int{3, 3}).Ger(1, x, y) })
	assert.True(t, errors.Is(err, fatal.ErrShapeMismatch))
}
