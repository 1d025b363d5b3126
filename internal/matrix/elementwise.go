package matrix

import (
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/random"
)

// accelerator returns the accelerator an element-wise kernel over m and the
// operands should run on, or nil for the host.
func (m *Matrix) accelerator(op string, operands ...*Matrix) device.Accelerator {
	if m.size == 0 {
		return nil
	}
	all := append([]*Matrix{m}, operands...)
	if m.ctx.Target(op, m.useAccel, contiguous(all...)) != device.Accelerated {
		return nil
	}
	return m.ctx.Accelerator()
}

func deviceErr(op string, acc device.Accelerator, err error) {
	if err != nil {
		fatal.Raise(op, fatal.ErrDevice, "%s: %v", acc.Name(), err)
	}
}

// flat returns the host vector view of a simple matrix for BLAS level-1 calls.
func flat(data []float32, m *Matrix) blas32.Vector {
	return blas32.Vector{N: m.size, Inc: 1, Data: data[m.offset : m.offset+m.size]}
}

// Fill sets every element to v.
func (m *Matrix) Fill(v float32) *Matrix {
	const op = "matrix.Fill"
	if acc := m.accelerator(op); acc != nil {
		deviceErr(op, acc, acc.Fill(m.block.DeviceForWrite(acc), m.offset, m.size, v))
		return m
	}
	m.zip1(func(dst []float32, d int) { dst[d] = v })
	return m
}

// Zeros sets every element to 0.
func (m *Matrix) Zeros() *Matrix { return m.Fill(0) }

// Ones sets every element to 1.
func (m *Matrix) Ones() *Matrix { return m.Fill(1) }

// Linear sets the i-th element in iteration order to start + i*step.
func (m *Matrix) Linear(start, step float32) *Matrix {
	host := m.block.HostForWrite()
	i := 0
	m.walk(func(pos int) {
		host[pos] = start + float32(i)*step
		i++
	})
	return m
}

// Uniform fills the matrix with values drawn uniformly from [lo, hi) in
// iteration order.
func (m *Matrix) Uniform(lo, hi float32, rng random.Source) *Matrix {
	host := m.block.HostForWrite()
	span := float64(hi) - float64(lo)
	m.walk(func(pos int) { host[pos] = lo + float32(span*rng.Float64()) })
	return m
}

// Diag zeroes a square matrix and sets its diagonal to v.
func (m *Matrix) Diag(v float32) *Matrix {
	for _, d := range m.dims {
		if d != m.dims[0] {
			fatal.Raise("matrix.Diag", fatal.ErrShapeMismatch, "matrix %v is not square", []int(m.dims))
		}
	}
	m.Zeros()
	host := m.block.HostForWrite()
	step := 0
	for _, s := range m.strides {
		step += s
	}
	for i := range m.dims[0] {
		host[m.offset+i*step] = v
	}
	return m
}

// Scal multiplies every element by alpha.
func (m *Matrix) Scal(alpha float32) *Matrix {
	const op = "matrix.Scal"
	if acc := m.accelerator(op); acc != nil {
		deviceErr(op, acc, acc.Scal(m.block.DeviceForWrite(acc), m.offset, m.size, alpha))
		return m
	}
	if m.IsSimple() && m.size > 0 {
		blas32.Scal(alpha, flat(m.block.HostForWrite(), m))
		return m
	}
	m.zip1(func(dst []float32, d int) { dst[d] *= alpha })
	return m
}

// ScalarAdd adds v to every element.
func (m *Matrix) ScalarAdd(v float32) *Matrix {
	const op = "matrix.ScalarAdd"
	if acc := m.accelerator(op); acc != nil {
		deviceErr(op, acc, acc.ScalarAdd(m.block.DeviceForWrite(acc), m.offset, m.size, v))
		return m
	}
	m.zip1(func(dst []float32, d int) { dst[d] += v })
	return m
}

// Axpy computes m += alpha*x. x must have the same dimensions.
func (m *Matrix) Axpy(alpha float32, x *Matrix) *Matrix {
	const op = "matrix.Axpy"
	m.checkSameDims(op, x)
	if acc := m.accelerator(op, x); acc != nil {
		xb := x.block.DeviceForRead(acc)
		yb := m.block.DeviceForWrite(acc)
		deviceErr(op, acc, acc.Axpy(yb, m.offset, alpha, xb, x.offset, m.size))
		return m
	}
	if contiguous(m, x) && m.size > 0 {
		xs := x.block.HostForRead()
		blas32.Axpy(alpha, flat(xs, x), flat(m.block.HostForWrite(), m))
		return m
	}
	m.zip2(x, func(dst []float32, d int, s []float32, p int) { dst[d] += alpha * s[p] })
	return m
}

// CMul multiplies m by x element-wise.
func (m *Matrix) CMul(x *Matrix) *Matrix {
	const op = "matrix.CMul"
	m.checkSameDims(op, x)
	if acc := m.accelerator(op, x); acc != nil {
		xb := x.block.DeviceForRead(acc)
		yb := m.block.DeviceForWrite(acc)
		deviceErr(op, acc, acc.CMul(yb, m.offset, xb, x.offset, m.size))
		return m
	}
	m.zip2(x, func(dst []float32, d int, s []float32, p int) { dst[d] *= s[p] })
	return m
}

// Add returns a new matrix m + x.
func (m *Matrix) Add(x *Matrix) *Matrix {
	m.checkSameDims("matrix.Add", x)
	return m.Clone().Axpy(1, x)
}

// Sub returns a new matrix m - x.
func (m *Matrix) Sub(x *Matrix) *Matrix {
	m.checkSameDims("matrix.Sub", x)
	return m.Clone().Axpy(-1, x)
}

// Apply replaces every element v with f(v).
func (m *Matrix) Apply(f func(float32) float32) *Matrix {
	m.zip1(func(dst []float32, d int) { dst[d] = f(dst[d]) })
	return m
}

// ApplyFrom sets m = f(src) element-wise.
func (m *Matrix) ApplyFrom(src *Matrix, f func(float32) float32) *Matrix {
	m.checkSameDims("matrix.ApplyFrom", src)
	m.zip2(src, func(dst []float32, d int, s []float32, p int) { dst[d] = f(s[p]) })
	return m
}

// Combine sets m = f(a, b) element-wise.
func (m *Matrix) Combine(a, b *Matrix, f func(a, b float32) float32) *Matrix {
	const op = "matrix.Combine"
	m.checkSameDims(op, a)
	m.checkSameDims(op, b)
	as, bs := a.block.HostForRead(), b.block.HostForRead()
	dst := m.block.HostForWrite()
	zip([]*Matrix{m, a, b}, func(pos []int) {
		dst[pos[0]] = f(as[pos[1]], bs[pos[2]])
	})
	return m
}

// Combine3 sets m = f(a, b, c) element-wise.
func (m *Matrix) Combine3(a, b, c *Matrix, f func(a, b, c float32) float32) *Matrix {
	const op = "matrix.Combine3"
	m.checkSameDims(op, a)
	m.checkSameDims(op, b)
	m.checkSameDims(op, c)
	as, bs, cs := a.block.HostForRead(), b.block.HostForRead(), c.block.HostForRead()
	dst := m.block.HostForWrite()
	zip([]*Matrix{m, a, b, c}, func(pos []int) {
		dst[pos[0]] = f(as[pos[1]], bs[pos[2]], cs[pos[3]])
	})
	return m
}
