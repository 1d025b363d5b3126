package matrix

import (
	"github.com/born-ml/april/internal/parallel"
)

// Iterator walks the elements of a matrix in its major order: for RowMajor
// the last dimension varies fastest, for ColMajor the first. It tracks the
// logical index, the coordinates and the raw block position.
//
// Writes through Set invalidate the device copy of the whole block.
type Iterator struct {
	m      *Matrix
	coords []int
	pos    int
	index  int
}

// Begin returns an iterator positioned on the first element. For an empty
// matrix it is immediately invalid.
func (m *Matrix) Begin() *Iterator {
	return &Iterator{m: m, coords: make([]int, len(m.dims)), pos: m.offset}
}

// IteratorAt returns an iterator positioned on the given coordinates.
func (m *Matrix) IteratorAt(coords ...int) *Iterator {
	pos := m.position("matrix.IteratorAt", coords)
	compact := m.dims.ComputeStrides(m.order)
	index := 0
	for i, c := range coords {
		index += c * compact[i]
	}
	return &Iterator{m: m, coords: append([]int(nil), coords...), pos: pos, index: index}
}

// Valid reports whether the iterator points at an element.
func (it *Iterator) Valid() bool { return it.index < it.m.size }

// Next advances to the following element.
func (it *Iterator) Next() {
	it.index++
	if it.index >= it.m.size {
		return
	}
	it.pos = advance(it.m.dims, it.m.order, it.coords, it.pos, it.m.strides)
}

// Get returns the current element.
func (it *Iterator) Get() float32 { return it.m.block.HostForRead()[it.pos] }

// Set stores v at the current element.
func (it *Iterator) Set(v float32) { it.m.block.HostForWrite()[it.pos] = v }

// Index returns the logical index in iteration order.
func (it *Iterator) Index() int { return it.index }

// Coords returns the current coordinates. The slice is owned by the iterator.
func (it *Iterator) Coords() []int { return it.coords }

// RawPos returns the position of the current element in the block.
func (it *Iterator) RawPos() int { return it.pos }

// advance steps coords once in the given order and returns the new position.
func advance(dims Shape, order MajorOrder, coords []int, pos int, strides []int) int {
	n := len(dims)
	for k := range n {
		d := n - 1 - k
		if order == ColMajor {
			d = k
		}
		coords[d]++
		pos += strides[d]
		if coords[d] < dims[d] {
			return pos
		}
		pos -= dims[d] * strides[d]
		coords[d] = 0
	}
	return pos
}

// walk calls f with the block position of every element in iteration order.
func (m *Matrix) walk(f func(pos int)) {
	if m.size == 0 {
		return
	}
	if m.IsSimple() {
		for i := range m.size {
			f(m.offset + i)
		}
		return
	}
	coords := make([]int, len(m.dims))
	pos := m.offset
	for i := range m.size {
		if i > 0 {
			pos = advance(m.dims, m.order, coords, pos, m.strides)
		}
		f(pos)
	}
}

// contiguous reports whether all operands are simple with the same major
// order, so that element i of each lives at offset+i.
func contiguous(ms ...*Matrix) bool {
	for _, m := range ms {
		if !m.IsSimple() || m.order != ms[0].order {
			return false
		}
	}
	return true
}

// zip walks operands of identical dimensions in lockstep, in the first
// operand's order. f receives one block position per operand. Contiguous
// operands are processed in parallel chunks.
func zip(ms []*Matrix, f func(pos []int)) {
	first := ms[0]
	if first.size == 0 {
		return
	}
	if contiguous(ms...) {
		parallel.Range(first.size, first.ctx.Parallel(), func(lo, hi int) {
			pos := make([]int, len(ms))
			for i := lo; i < hi; i++ {
				for k, m := range ms {
					pos[k] = m.offset + i
				}
				f(pos)
			}
		})
		return
	}

	n := len(first.dims)
	coords := make([]int, n)
	pos := make([]int, len(ms))
	for k, m := range ms {
		pos[k] = m.offset
	}
	for i := range first.size {
		if i > 0 {
			for k := range n {
				d := n - 1 - k
				if first.order == ColMajor {
					d = k
				}
				coords[d]++
				for j, m := range ms {
					pos[j] += m.strides[d]
				}
				if coords[d] < first.dims[d] {
					break
				}
				for j, m := range ms {
					pos[j] -= first.dims[d] * m.strides[d]
				}
				coords[d] = 0
			}
		}
		f(pos)
	}
}

// zip1 applies f to every element of m in place.
func (m *Matrix) zip1(f func(dst []float32, d int)) {
	dst := m.block.HostForWrite()
	zip([]*Matrix{m}, func(pos []int) { f(dst, pos[0]) })
}

// zip2 writes m from src element-wise.
func (m *Matrix) zip2(src *Matrix, f func(dst []float32, d int, s []float32, p int)) {
	s := src.block.HostForRead()
	dst := m.block.HostForWrite()
	zip([]*Matrix{m, src}, func(pos []int) { f(dst, pos[0], s, pos[1]) })
}
