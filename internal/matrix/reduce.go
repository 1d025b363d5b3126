package matrix

import (
	"sync/atomic"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/parallel"
)

// Reductions run on the host; a device-resident block is synchronized first.
// Over an empty matrix they return their identity element.

// Sum returns the sum of all elements (0 when empty).
func (m *Matrix) Sum() float32 {
	host := m.block.HostForRead()
	var s float32
	m.walk(func(pos int) { s += host[pos] })
	return s
}

// Prod returns the product of all elements (1 when empty).
func (m *Matrix) Prod() float32 {
	host := m.block.HostForRead()
	p := float32(1)
	m.walk(func(pos int) { p *= host[pos] })
	return p
}

// Norm2 returns the Euclidean norm of the elements (0 when empty).
func (m *Matrix) Norm2() float32 {
	if m.size == 0 {
		return 0
	}
	host := m.block.HostForRead()
	if m.IsSimple() {
		return blas32.Nrm2(flat(host, m))
	}
	var ss float32
	m.walk(func(pos int) { ss += host[pos] * host[pos] })
	return math32.Sqrt(ss)
}

// Min returns the smallest element. It is fatal on an empty matrix.
func (m *Matrix) Min() float32 {
	v, _ := m.extreme("matrix.Min", func(a, b float32) bool { return a < b })
	return v
}

// Max returns the largest element. It is fatal on an empty matrix.
func (m *Matrix) Max() float32 {
	v, _ := m.extreme("matrix.Max", func(a, b float32) bool { return a > b })
	return v
}

// ArgMax returns the largest element and its logical index in iteration order.
func (m *Matrix) ArgMax() (float32, int) {
	return m.extreme("matrix.ArgMax", func(a, b float32) bool { return a > b })
}

func (m *Matrix) extreme(op string, better func(a, b float32) bool) (float32, int) {
	if m.size == 0 {
		fatal.Raise(op, fatal.ErrInvalidArgument, "empty matrix")
	}
	host := m.block.HostForRead()
	best, bestIdx, i := float32(0), 0, 0
	m.walk(func(pos int) {
		if i == 0 || better(host[pos], best) {
			best, bestIdx = host[pos], i
		}
		i++
	})
	return best, bestIdx
}

// Dot returns the sum of the element-wise product with x, which must have the
// same dimensions.
func (m *Matrix) Dot(x *Matrix) float32 {
	m.checkSameDims("matrix.Dot", x)
	if m.size == 0 {
		return 0
	}
	a, b := m.block.HostForRead(), x.block.HostForRead()
	if contiguous(m, x) {
		return blas32.Dot(flat(a, m), flat(b, x))
	}
	var s float32
	zip([]*Matrix{m, x}, func(pos []int) { s += a[pos[0]] * b[pos[1]] })
	return s
}

// IsFinite reports whether no element is NaN or infinite.
func (m *Matrix) IsFinite() bool {
	host := m.block.HostForRead()
	if m.IsSimple() {
		var bad atomic.Bool
		data := host[m.offset : m.offset+m.size]
		parallel.For(m.size, m.ctx.Parallel(), func(i int) {
			if v := data[i]; math32.IsNaN(v) || math32.IsInf(v, 0) {
				bad.Store(true)
			}
		})
		return !bad.Load()
	}
	ok := true
	m.walk(func(pos int) {
		v := host[pos]
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			ok = false
		}
	})
	return ok
}

// Equals reports whether other has the same dimensions and every pair of
// elements differs by at most eps, absolutely or relative to their magnitude.
func (m *Matrix) Equals(other *Matrix, eps float32) bool {
	if !m.dims.Equal(other.dims) {
		return false
	}
	if m.size == 0 {
		return true
	}
	a, b := m.block.HostForRead(), other.block.HostForRead()
	eq := true
	pairs := []*Matrix{m, other}
	if !contiguous(pairs...) {
		// zip is sequential for non-contiguous operands.
		zip(pairs, func(pos []int) {
			if !closeEnough(a[pos[0]], b[pos[1]], eps) {
				eq = false
			}
		})
		return eq
	}
	for i := range m.size {
		if !closeEnough(a[m.offset+i], b[other.offset+i], eps) {
			return false
		}
	}
	return true
}

func closeEnough(a, b, eps float32) bool {
	if a == b {
		return true
	}
	diff := math32.Abs(a - b)
	if diff <= eps {
		return true
	}
	return diff <= eps*max(math32.Abs(a), math32.Abs(b))
}
