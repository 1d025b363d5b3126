package device

import "errors"

// ErrUnavailable is returned when an accelerator backend cannot be created
// on this host.
var ErrUnavailable = errors.New("accelerator not available")

// Buffer is an accelerator-resident float32 allocation.
type Buffer interface {
	Len() int
}

// Accelerator is a device that owns memory separate from the host and runs
// element-wise kernels on it.
//
// Offsets and lengths are in elements. Kernels may be asynchronous with
// respect to the host; Download blocks until previously issued work on the
// buffer has completed.
type Accelerator interface {
	Name() string
	Capabilities() Capabilities

	Alloc(n int) (Buffer, error)
	Upload(dst Buffer, src []float32) error
	Download(dst []float32, src Buffer) error
	Release(b Buffer)

	Fill(b Buffer, offset, n int, value float32) error
	Scal(b Buffer, offset, n int, alpha float32) error
	ScalarAdd(b Buffer, offset, n int, value float32) error
	// Axpy computes y[yOff+i] += alpha * x[xOff+i].
	Axpy(y Buffer, yOff int, alpha float32, x Buffer, xOff int, n int) error
	// CMul computes y[yOff+i] *= x[xOff+i].
	CMul(y Buffer, yOff int, x Buffer, xOff int, n int) error
}
