package matrix

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/fatal"
)

// Level-2 and level-3 operations go through gonum's row-major blas32. A
// column-major (or transposed) operand is passed as its row-major transpose
// with the transpose flag flipped; layouts BLAS cannot describe are compacted
// into a temporary first.

// general describes a 2-D matrix as a row-major BLAS operand. transposed is
// true when the description is of m's transpose.
func general(data []float32, m *Matrix) (g blas32.General, transposed, ok bool) {
	rows, cols := m.dims[0], m.dims[1]
	s0, s1 := m.strides[0], m.strides[1]
	if (cols <= 1 || s1 == 1) && (rows <= 1 || s0 >= max(cols, 1)) {
		stride := s0
		if rows <= 1 {
			stride = max(cols, 1)
		}
		return blas32.General{Rows: rows, Cols: cols, Stride: stride, Data: data[m.offset:]}, false, true
	}
	if (rows <= 1 || s0 == 1) && (cols <= 1 || s1 >= max(rows, 1)) {
		stride := s1
		if cols <= 1 {
			stride = max(rows, 1)
		}
		return blas32.General{Rows: cols, Cols: rows, Stride: stride, Data: data[m.offset:]}, true, true
	}
	return blas32.General{}, false, false
}

// vector describes a rank-1 matrix, or a 2-D matrix with a unit dimension, as
// a BLAS vector.
func vector(op string, data []float32, m *Matrix) blas32.Vector {
	var inc int
	switch {
	case len(m.dims) == 1:
		inc = m.strides[0]
	case len(m.dims) == 2 && m.dims[0] == 1:
		inc = m.strides[1]
	case len(m.dims) == 2 && m.dims[1] == 1:
		inc = m.strides[0]
	default:
		fatal.Raise(op, fatal.ErrShapeMismatch, "expected a vector, got dims %v", []int(m.dims))
	}
	if m.size <= 1 || inc < 1 {
		inc = 1
	}
	return blas32.Vector{N: m.size, Inc: inc, Data: data[m.offset:]}
}

func check2D(op, name string, m *Matrix) {
	if len(m.dims) != 2 {
		fatal.Raise(op, fatal.ErrShapeMismatch, "%s must be 2-D, got dims %v", name, []int(m.dims))
	}
}

// opDims returns the dimensions of op(m).
func opDims(m *Matrix, t device.Transpose) (rows, cols int) {
	if t.IsTransposed() {
		return m.dims[1], m.dims[0]
	}
	return m.dims[0], m.dims[1]
}

// operand returns a BLAS description of m for reading and the transpose to
// apply to it so that it yields op(m).
func operand(m *Matrix, t device.Transpose) (blas32.General, blas.Transpose) {
	g, transposed, ok := general(m.block.HostForRead(), m)
	if !ok {
		m = m.CloneAs(RowMajor)
		g, transposed, _ = general(m.block.HostForRead(), m)
	}
	if transposed {
		t = t.Flip()
	}
	return g, t.BlasTranspose()
}

// Gemm computes m = alpha*op(a)*op(b) + beta*m.
func (m *Matrix) Gemm(transA, transB device.Transpose, alpha float32, a, b *Matrix, beta float32) *Matrix {
	const op = "matrix.Gemm"
	check2D(op, "C", m)
	check2D(op, "A", a)
	check2D(op, "B", b)
	rowsA, colsA := opDims(a, transA)
	rowsB, colsB := opDims(b, transB)
	if colsA != rowsB || m.dims[0] != rowsA || m.dims[1] != colsB {
		fatal.Raise(op, fatal.ErrShapeMismatch, "op(A) %dx%d * op(B) %dx%d into C %v",
			rowsA, colsA, rowsB, colsB, []int(m.dims))
	}
	if m.size == 0 {
		return m
	}
	if colsA == 0 {
		return m.Scal(beta)
	}

	gc, cTransposed, ok := general(m.block.HostForReadAndWrite(), m)
	if !ok {
		tmp := m.CloneAs(RowMajor)
		tmp.Gemm(transA, transB, alpha, a, b, beta)
		m.Copy(tmp)
		return m
	}
	if cTransposed {
		// C^T = op(B)^T * op(A)^T
		a, b = b, a
		transA, transB = transB.Flip(), transA.Flip()
	}
	ga, ta := operand(a, transA)
	gb, tb := operand(b, transB)
	blas32.Gemm(ta, tb, alpha, ga, gb, beta, gc)
	return m
}

// Gemv computes m = alpha*op(a)*x + beta*m for vectors m and x.
func (m *Matrix) Gemv(trans device.Transpose, alpha float32, a, x *Matrix, beta float32) *Matrix {
	const op = "matrix.Gemv"
	check2D(op, "A", a)
	rows, cols := opDims(a, trans)
	if x.size != cols || m.size != rows {
		fatal.Raise(op, fatal.ErrShapeMismatch, "op(A) %dx%d * x[%d] into y[%d]", rows, cols, x.size, m.size)
	}
	vy := vector(op, m.block.HostForReadAndWrite(), m)
	vx := vector(op, x.block.HostForRead(), x)
	if m.size == 0 {
		return m
	}
	if cols == 0 {
		return m.Scal(beta)
	}
	ga, ta := operand(a, trans)
	blas32.Gemv(ta, alpha, ga, vx, beta, vy)
	return m
}

// Ger computes m += alpha*x*y^T for a 2-D m and vectors x, y.
func (m *Matrix) Ger(alpha float32, x, y *Matrix) *Matrix {
	const op = "matrix.Ger"
	check2D(op, "A", m)
	if x.size != m.dims[0] || y.size != m.dims[1] {
		fatal.Raise(op, fatal.ErrShapeMismatch, "x[%d] * y[%d]^T into A %v", x.size, y.size, []int(m.dims))
	}
	vx := vector(op, x.block.HostForRead(), x)
	vy := vector(op, y.block.HostForRead(), y)
	if m.size == 0 {
		return m
	}
	ga, transposed, ok := general(m.block.HostForReadAndWrite(), m)
	if !ok {
		tmp := m.CloneAs(RowMajor)
		tmp.Ger(alpha, x, y)
		m.Copy(tmp)
		return m
	}
	if transposed {
		vx, vy = vy, vx
	}
	blas32.Ger(alpha, vx, vy, ga)
	return m
}
