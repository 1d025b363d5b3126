// Package matrix implements the dense float32 N-dimensional matrix used by
// every other part of april.
//
// A Matrix is a view over a mirrored memory.Block: dimensions, strides and a
// base offset select the elements, and a major order fixes the layout of
// freshly allocated storage. Views created by Select, Slice, Transpose and
// Rewrap share the parent's block; writes through a view are visible in the
// parent. Storage is released when the last matrix referencing it becomes
// unreachable.
//
// Precondition violations (shape mismatch, non-contiguous operand, bad
// coordinates) are fatal and raise *fatal.Error.
package matrix

import (
	"fmt"

	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/memory"
)

// Matrix is a dense float32 matrix or a view into one.
type Matrix struct {
	block    *memory.Block
	dims     Shape
	strides  []int
	offset   int
	order    MajorOrder
	size     int
	ctx      *device.Context
	useAccel bool
}

type options struct {
	order MajorOrder
	ctx   *device.Context
}

// Option configures matrix construction.
type Option func(*options)

// WithMajorOrder selects the storage layout (RowMajor by default).
func WithMajorOrder(o MajorOrder) Option {
	return func(opts *options) { opts.order = o }
}

// WithContext binds the matrix to a dispatch context (device.Default() by default).
func WithContext(ctx *device.Context) Option {
	return func(opts *options) { opts.ctx = ctx }
}

func buildOptions(opts []Option) options {
	o := options{order: RowMajor}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ctx == nil {
		o.ctx = device.Default()
	}
	return o
}

// New allocates a zero-filled matrix with the given dimensions.
func New(dims []int, opts ...Option) *Matrix {
	o := buildOptions(opts)
	shape := Shape(dims).Clone()
	if err := shape.Validate(); err != nil {
		fatal.Raise("matrix.New", fatal.ErrAllocation, "%v", err)
	}
	size := checkedSize("matrix.New", shape)
	return &Matrix{
		block:    memory.New(size),
		dims:     shape,
		strides:  shape.ComputeStrides(o.order),
		order:    o.order,
		size:     size,
		ctx:      o.ctx,
		useAccel: o.ctx.DefaultUseAccelerator(),
	}
}

// FromSlice creates a matrix that adopts data as its storage. The values are
// interpreted in the matrix's major order.
func FromSlice(data []float32, dims []int, opts ...Option) *Matrix {
	o := buildOptions(opts)
	shape := Shape(dims).Clone()
	if err := shape.Validate(); err != nil {
		fatal.Raise("matrix.FromSlice", fatal.ErrAllocation, "%v", err)
	}
	size := checkedSize("matrix.FromSlice", shape)
	if size != len(data) {
		fatal.Shape("matrix.FromSlice", size, len(data))
	}
	return &Matrix{
		block:    memory.Wrap(data),
		dims:     shape,
		strides:  shape.ComputeStrides(o.order),
		order:    o.order,
		size:     size,
		ctx:      o.ctx,
		useAccel: o.ctx.DefaultUseAccelerator(),
	}
}

func checkedSize(op string, shape Shape) int {
	size := 1
	for _, d := range shape {
		if d != 0 && size > (1<<62)/d {
			fatal.Raise(op, fatal.ErrAllocation, "size of %v overflows", []int(shape))
		}
		size *= d
	}
	return size
}

// view returns a matrix sharing m's block and context.
func (m *Matrix) view(dims Shape, strides []int, offset int, order MajorOrder) *Matrix {
	return &Matrix{
		block:    m.block,
		dims:     dims,
		strides:  strides,
		offset:   offset,
		order:    order,
		size:     dims.NumElements(),
		ctx:      m.ctx,
		useAccel: m.useAccel,
	}
}

// Size returns the number of elements.
func (m *Matrix) Size() int { return m.size }

// NumDim returns the rank.
func (m *Matrix) NumDim() int { return len(m.dims) }

// DimSize returns the size of dimension d.
func (m *Matrix) DimSize(d int) int {
	m.checkDim("matrix.DimSize", d)
	return m.dims[d]
}

// Dims returns a copy of the dimension sizes.
func (m *Matrix) Dims() []int { return m.dims.Clone() }

// Strides returns a copy of the strides.
func (m *Matrix) Strides() []int { return append([]int(nil), m.strides...) }

// Offset returns the position of the first element in the underlying block.
func (m *Matrix) Offset() int { return m.offset }

// MajorOrder returns the layout tag.
func (m *Matrix) MajorOrder() MajorOrder { return m.order }

// IsEmpty reports whether any dimension is zero.
func (m *Matrix) IsEmpty() bool { return m.size == 0 }

// Context returns the dispatch context the matrix is bound to.
func (m *Matrix) Context() *device.Context { return m.ctx }

// UseAccelerator reports whether operations may run on the accelerator.
func (m *Matrix) UseAccelerator() bool { return m.useAccel }

// SetUseAccelerator permits or forbids accelerator execution.
func (m *Matrix) SetUseAccelerator(v bool) { m.useAccel = v }

// SharesStorage reports whether m and other are views of the same block.
func (m *Matrix) SharesStorage(other *Matrix) bool { return m.block == other.block }

// IsSimple reports whether the elements occupy a contiguous run of the block
// with the compact strides of the major order. The offset may be anything.
func (m *Matrix) IsSimple() bool {
	compact := m.dims.ComputeStrides(m.order)
	for i, d := range m.dims {
		if d > 1 && m.strides[i] != compact[i] {
			return false
		}
	}
	return true
}

// SameDims reports whether m and other have identical dimensions.
func (m *Matrix) SameDims(other *Matrix) bool { return m.dims.Equal(other.dims) }

func (m *Matrix) checkDim(op string, d int) {
	if d < 0 || d >= len(m.dims) {
		fatal.Raise(op, fatal.ErrInvalidArgument, "dimension %d out of range for rank %d", d, len(m.dims))
	}
}

func (m *Matrix) checkSameDims(op string, other *Matrix) {
	if !m.dims.Equal(other.dims) {
		fatal.Shape(op, []int(m.dims), []int(other.dims))
	}
}

// position maps coordinates to a block position.
func (m *Matrix) position(op string, coords []int) int {
	if len(coords) != len(m.dims) {
		fatal.Raise(op, fatal.ErrInvalidArgument, "expected %d coordinates, got %d", len(m.dims), len(coords))
	}
	pos := m.offset
	for i, c := range coords {
		if c < 0 || c >= m.dims[i] {
			fatal.Raise(op, fatal.ErrInvalidArgument, "coordinate %d out of range [0,%d) in dimension %d", c, m.dims[i], i)
		}
		pos += c * m.strides[i]
	}
	return pos
}

// At returns the element at the given coordinates.
func (m *Matrix) At(coords ...int) float32 {
	pos := m.position("matrix.At", coords)
	return m.block.HostForRead()[pos]
}

// Set stores v at the given coordinates.
func (m *Matrix) Set(v float32, coords ...int) {
	pos := m.position("matrix.Set", coords)
	m.block.HostForWrite()[pos] = v
}

// Values returns a copy of the elements in the matrix's iteration order.
func (m *Matrix) Values() []float32 {
	out := make([]float32, 0, m.size)
	host := m.block.HostForRead()
	m.walk(func(pos int) { out = append(out, host[pos]) })
	return out
}

// RawData returns the host slice backing a simple matrix, starting at its
// offset, for writing. The device copy is invalidated.
func (m *Matrix) RawData() []float32 {
	if !m.IsSimple() {
		fatal.Contiguity("matrix.RawData", "matrix")
	}
	return m.block.HostForWrite()[m.offset : m.offset+m.size]
}

// RawDataForRead is RawData without invalidating the device copy.
func (m *Matrix) RawDataForRead() []float32 {
	if !m.IsSimple() {
		fatal.Contiguity("matrix.RawDataForRead", "matrix")
	}
	return m.block.HostForRead()[m.offset : m.offset+m.size]
}

// Select returns the rank-1 view obtained by fixing dimension dim at index.
// If dest is non-nil it is overwritten with the view and returned, which
// avoids an allocation when iterating over slices.
func (m *Matrix) Select(dim, index int, dest *Matrix) *Matrix {
	const op = "matrix.Select"
	m.checkDim(op, dim)
	if len(m.dims) < 2 {
		fatal.Usage(op, "cannot select from a rank-1 matrix")
	}
	if index < 0 || index >= m.dims[dim] {
		fatal.Raise(op, fatal.ErrInvalidArgument, "index %d out of range [0,%d)", index, m.dims[dim])
	}
	dims := make(Shape, 0, len(m.dims)-1)
	strides := make([]int, 0, len(m.dims)-1)
	for i := range m.dims {
		if i != dim {
			dims = append(dims, m.dims[i])
			strides = append(strides, m.strides[i])
		}
	}
	v := m.view(dims, strides, m.offset+index*m.strides[dim], m.order)
	if dest != nil {
		*dest = *v
		return dest
	}
	return v
}

// Slice returns the sub-matrix view starting at coords with the given sizes.
func (m *Matrix) Slice(coords, sizes []int) *Matrix {
	const op = "matrix.Slice"
	if len(coords) != len(m.dims) || len(sizes) != len(m.dims) {
		fatal.Shape(op, len(m.dims), fmt.Sprintf("%d coords, %d sizes", len(coords), len(sizes)))
	}
	offset := m.offset
	for i := range m.dims {
		if coords[i] < 0 || sizes[i] < 0 || coords[i]+sizes[i] > m.dims[i] {
			fatal.Raise(op, fatal.ErrInvalidArgument, "range [%d,%d) outside [0,%d) in dimension %d",
				coords[i], coords[i]+sizes[i], m.dims[i], i)
		}
		offset += coords[i] * m.strides[i]
	}
	return m.view(Shape(sizes).Clone(), append([]int(nil), m.strides...), offset, m.order)
}

// Transpose returns a view with the dimension order reversed. The major order
// flips with it, so the transpose of a simple matrix is simple.
func (m *Matrix) Transpose() *Matrix {
	n := len(m.dims)
	dims := make(Shape, n)
	strides := make([]int, n)
	for i := range n {
		dims[i] = m.dims[n-1-i]
		strides[i] = m.strides[n-1-i]
	}
	return m.view(dims, strides, m.offset, m.order.Flip())
}

// Rewrap returns a view of a simple matrix with new dimensions of equal size.
func (m *Matrix) Rewrap(dims ...int) *Matrix {
	const op = "matrix.Rewrap"
	if !m.IsSimple() {
		fatal.Contiguity(op, "matrix")
	}
	shape := Shape(dims).Clone()
	if err := shape.Validate(); err != nil {
		fatal.Raise(op, fatal.ErrInvalidArgument, "%v", err)
	}
	if shape.NumElements() != m.size {
		fatal.Shape(op, m.size, shape.NumElements())
	}
	return m.view(shape, shape.ComputeStrides(m.order), m.offset, m.order)
}

// Squeeze returns a view without the dimensions of size 1. A matrix whose
// dimensions are all 1 squeezes to a single dimension of size 1.
func (m *Matrix) Squeeze() *Matrix {
	var dims Shape
	var strides []int
	for i, d := range m.dims {
		if d != 1 {
			dims = append(dims, d)
			strides = append(strides, m.strides[i])
		}
	}
	if len(dims) == 0 {
		dims, strides = Shape{1}, []int{1}
	}
	return m.view(dims, strides, m.offset, m.order)
}

// Clone returns a deep copy with compact storage in the same major order.
func (m *Matrix) Clone() *Matrix {
	return m.CloneAs(m.order)
}

// CloneAs returns a deep copy with compact storage in the given major order.
func (m *Matrix) CloneAs(order MajorOrder) *Matrix {
	c := New(m.dims, WithMajorOrder(order), WithContext(m.ctx))
	c.useAccel = m.useAccel
	c.Copy(m)
	return c
}

// Copy copies the elements of src, which must have the same dimensions.
func (m *Matrix) Copy(src *Matrix) {
	m.checkSameDims("matrix.Copy", src)
	if m.block == src.block && m.offset == src.offset && equalInts(m.strides, src.strides) {
		return
	}
	m.zip2(src, func(dst []float32, d int, s []float32, p int) { dst[d] = s[p] })
}

// String formats the matrix in the ascii text encoding.
func (m *Matrix) String() string {
	return WriteString(m, Ascii)
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
