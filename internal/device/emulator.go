package device

import (
	"fmt"
	"sync"
)

// Launch records one emulated kernel launch.
type Launch struct {
	Kernel  string
	N       int
	Threads int
	Blocks  int
}

type emuBuffer struct {
	data []float32
}

func (b *emuBuffer) Len() int { return len(b.data) }

// Emulator is an Accelerator whose device memory is a separate host
// allocation. Kernels walk the same block/thread geometry a real device
// launch would use, which makes it the accelerator of choice for tests and
// for hosts without a GPU.
type Emulator struct {
	caps Capabilities

	mu        sync.Mutex
	launches  []Launch
	uploads   int
	downloads int
	live      int
}

// NewEmulator creates an emulated accelerator with the given limits.
func NewEmulator(caps Capabilities) *Emulator {
	return &Emulator{caps: caps}
}

// Name returns the backend name.
func (e *Emulator) Name() string { return "emulator" }

// Capabilities returns the emulated device limits.
func (e *Emulator) Capabilities() Capabilities { return e.caps }

// Alloc allocates a zeroed device buffer.
func (e *Emulator) Alloc(n int) (Buffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("emulator: negative allocation %d", n)
	}
	e.mu.Lock()
	e.live++
	e.mu.Unlock()
	return &emuBuffer{data: make([]float32, n)}, nil
}

// Upload copies host data into the device buffer.
func (e *Emulator) Upload(dst Buffer, src []float32) error {
	b, err := e.buffer(dst)
	if err != nil {
		return err
	}
	if len(src) != len(b.data) {
		return fmt.Errorf("emulator: upload of %d elements into buffer of %d", len(src), len(b.data))
	}
	copy(b.data, src)
	e.mu.Lock()
	e.uploads++
	e.mu.Unlock()
	return nil
}

// Download copies the device buffer into host memory.
func (e *Emulator) Download(dst []float32, src Buffer) error {
	b, err := e.buffer(src)
	if err != nil {
		return err
	}
	if len(dst) != len(b.data) {
		return fmt.Errorf("emulator: download of buffer of %d elements into %d", len(b.data), len(dst))
	}
	copy(dst, b.data)
	e.mu.Lock()
	e.downloads++
	e.mu.Unlock()
	return nil
}

// Release frees the device buffer.
func (e *Emulator) Release(b Buffer) {
	if eb, ok := b.(*emuBuffer); ok && eb.data != nil {
		eb.data = nil
		e.mu.Lock()
		e.live--
		e.mu.Unlock()
	}
}

// Fill sets n elements starting at offset to value.
func (e *Emulator) Fill(b Buffer, offset, n int, value float32) error {
	return e.unary("fill", b, offset, n, func(float32) float32 { return value })
}

// Scal multiplies n elements starting at offset by alpha.
func (e *Emulator) Scal(b Buffer, offset, n int, alpha float32) error {
	return e.unary("scal", b, offset, n, func(v float32) float32 { return v * alpha })
}

// ScalarAdd adds value to n elements starting at offset.
func (e *Emulator) ScalarAdd(b Buffer, offset, n int, value float32) error {
	return e.unary("scalar_add", b, offset, n, func(v float32) float32 { return v + value })
}

// Axpy computes y += alpha*x over n elements.
func (e *Emulator) Axpy(y Buffer, yOff int, alpha float32, x Buffer, xOff int, n int) error {
	return e.binary("axpy", y, yOff, x, xOff, n, func(yv, xv float32) float32 { return yv + alpha*xv })
}

// CMul computes y *= x over n elements.
func (e *Emulator) CMul(y Buffer, yOff int, x Buffer, xOff int, n int) error {
	return e.binary("cmul", y, yOff, x, xOff, n, func(yv, xv float32) float32 { return yv * xv })
}

// Launches returns the kernel launches issued so far.
func (e *Emulator) Launches() []Launch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Launch(nil), e.launches...)
}

// Transfers returns the number of host→device and device→host copies.
func (e *Emulator) Transfers() (uploads, downloads int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uploads, e.downloads
}

// LiveBuffers returns the number of allocated, unreleased buffers.
func (e *Emulator) LiveBuffers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live
}

func (e *Emulator) buffer(b Buffer) (*emuBuffer, error) {
	eb, ok := b.(*emuBuffer)
	if !ok {
		return nil, fmt.Errorf("emulator: foreign buffer %T", b)
	}
	if eb.data == nil {
		return nil, fmt.Errorf("emulator: use of released buffer")
	}
	return eb, nil
}

func (e *Emulator) checkRange(kernel string, b *emuBuffer, offset, n int) error {
	if offset < 0 || n < 0 || offset+n > len(b.data) {
		return fmt.Errorf("emulator: %s range [%d,%d) outside buffer of %d", kernel, offset, offset+n, len(b.data))
	}
	return nil
}

// launch walks the block/thread grid for an n-element kernel.
func (e *Emulator) launch(kernel string, n int, body func(i int)) {
	threads, blocks := ComputeBlockAndGridSizesForArray(n, e.caps)
	e.mu.Lock()
	e.launches = append(e.launches, Launch{Kernel: kernel, N: n, Threads: threads, Blocks: blocks})
	e.mu.Unlock()

	// Each thread strides over its share, as a grid-stride loop does.
	stride := threads * blocks
	for block := 0; block < blocks; block++ {
		for thread := 0; thread < threads; thread++ {
			for i := block*threads + thread; i < n; i += stride {
				body(i)
			}
		}
	}
}

func (e *Emulator) unary(kernel string, b Buffer, offset, n int, f func(float32) float32) error {
	eb, err := e.buffer(b)
	if err != nil {
		return err
	}
	if err := e.checkRange(kernel, eb, offset, n); err != nil {
		return err
	}
	data := eb.data[offset : offset+n]
	e.launch(kernel, n, func(i int) { data[i] = f(data[i]) })
	return nil
}

func (e *Emulator) binary(kernel string, y Buffer, yOff int, x Buffer, xOff int, n int, f func(yv, xv float32) float32) error {
	yb, err := e.buffer(y)
	if err != nil {
		return err
	}
	xb, err := e.buffer(x)
	if err != nil {
		return err
	}
	if err := e.checkRange(kernel, yb, yOff, n); err != nil {
		return err
	}
	if err := e.checkRange(kernel, xb, xOff, n); err != nil {
		return err
	}
	yd := yb.data[yOff : yOff+n]
	xd := xb.data[xOff : xOff+n]
	e.launch(kernel, n, func(i int) { yd[i] = f(yd[i], xd[i]) })
	return nil
}
