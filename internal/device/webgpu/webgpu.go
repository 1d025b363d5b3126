//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/april/internal/device"
)

// Accelerator runs element-wise kernels on a WebGPU device.
type Accelerator struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	name     string

	mu        sync.Mutex
	pipelines map[string]*wgpu.ComputePipeline
	shaders   map[string]*wgpu.ShaderModule
	released  bool
}

var _ device.Accelerator = (*Accelerator)(nil)

// buffer is a storage buffer holding n float32 values.
type buffer struct {
	buf *wgpu.Buffer
	n   int
}

func (b *buffer) Len() int { return b.n }

// New acquires a high-performance adapter and its device.
func New() (acc device.Accelerator, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			acc = nil
			err = fmt.Errorf("webgpu: native library not available: %v: %w", r, device.ErrUnavailable)
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: failed to create instance: %v: %w", err, device.ErrUnavailable)
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %v: %w", err, device.ErrUnavailable)
	}
	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", err)
	}
	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Accelerator{
		instance:  instance,
		adapter:   adapter,
		device:    dev,
		queue:     queue,
		name:      "webgpu",
		pipelines: make(map[string]*wgpu.ComputePipeline),
		shaders:   make(map[string]*wgpu.ShaderModule),
	}, nil
}

// IsAvailable reports whether a WebGPU adapter can be acquired.
func IsAvailable() bool {
	acc, err := New()
	if err != nil {
		return false
	}
	acc.(*Accelerator).Close()
	return true
}

// Name returns the backend name.
func (a *Accelerator) Name() string { return a.name }

// Capabilities returns the backend limits.
func (a *Accelerator) Capabilities() device.Capabilities { return Capabilities() }

func (a *Accelerator) pipeline(k kernel) *wgpu.ComputePipeline {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.pipelines[k.name]; ok {
		return p
	}
	shader := a.device.CreateShaderModuleWGSL(k.source)
	a.shaders[k.name] = shader
	p := a.device.CreateComputePipelineSimple(nil, shader, "main")
	a.pipelines[k.name] = p
	return p
}

func byteSize(n int) uint64 {
	// Zero-length bindings are invalid; empty buffers hold one element.
	return uint64(max(n, 1)) * 4 //nolint:gosec // G115: n is non-negative
}

// mapped creates a buffer with the given contents.
func (a *Accelerator) mapped(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))
	buf := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(buf.GetMappedRange(0, size)), size), data)
	buf.Unmap()
	return buf
}

func floatBytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	//nolint:gosec // reinterpretation of a float32 slice as bytes
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}

func (a *Accelerator) storage(b device.Buffer) (*buffer, error) {
	sb, ok := b.(*buffer)
	if !ok || sb == nil {
		return nil, fmt.Errorf("webgpu: foreign buffer %T", b)
	}
	if sb.buf == nil {
		return nil, fmt.Errorf("webgpu: use of released buffer")
	}
	return sb, nil
}

// Alloc allocates a zeroed storage buffer.
func (a *Accelerator) Alloc(n int) (device.Buffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("webgpu: negative allocation %d", n)
	}
	zero := make([]byte, byteSize(n))
	buf := a.mapped(zero, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst)
	return &buffer{buf: buf, n: n}, nil
}

// Upload copies host data into the buffer through a staging buffer.
func (a *Accelerator) Upload(dst device.Buffer, src []float32) error {
	b, err := a.storage(dst)
	if err != nil {
		return err
	}
	if len(src) != b.n {
		return fmt.Errorf("webgpu: upload of %d elements into buffer of %d", len(src), b.n)
	}
	if b.n == 0 {
		return nil
	}
	staging := a.mapped(floatBytes(src), wgpu.BufferUsageCopySrc)
	defer staging.Release()

	size := uint64(b.n) * 4 //nolint:gosec // G115: n is non-negative
	encoder := a.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, b.buf, 0, size)
	a.queue.Submit(encoder.Finish(nil))
	return nil
}

// Download copies the buffer into host memory. Mapping the staging buffer
// waits for previously submitted work.
func (a *Accelerator) Download(dst []float32, src device.Buffer) error {
	b, err := a.storage(src)
	if err != nil {
		return err
	}
	if len(dst) != b.n {
		return fmt.Errorf("webgpu: download of buffer of %d elements into %d", b.n, len(dst))
	}
	if b.n == 0 {
		return nil
	}
	size := uint64(b.n) * 4 //nolint:gosec // G115: n is non-negative
	staging := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := a.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(b.buf, 0, staging, 0, size)
	a.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(a.device, wgpu.MapModeRead, 0, size); err != nil {
		return fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(floatBytes(dst), unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size))
	staging.Unmap()
	return nil
}

// Release frees the buffer. It is idempotent.
func (a *Accelerator) Release(b device.Buffer) {
	if sb, ok := b.(*buffer); ok && sb.buf != nil {
		sb.buf.Release()
		sb.buf = nil
	}
}

// Close releases pipelines and the device. Buffers must not be used afterwards.
func (a *Accelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return
	}
	a.released = true
	for _, p := range a.pipelines {
		p.Release()
	}
	for _, s := range a.shaders {
		s.Release()
	}
	a.queue.Release()
	a.device.Release()
	a.adapter.Release()
	a.instance.Release()
}

// dispatch runs kernel k over n elements.
func (a *Accelerator) dispatch(k kernel, n, yOff, xOff int, scalar float32, y, x *buffer) error {
	if n == 0 {
		return nil
	}
	if yOff < 0 || yOff+n > y.n {
		return fmt.Errorf("webgpu: %s range [%d,%d) outside buffer of %d", k.name, yOff, yOff+n, y.n)
	}
	if x != nil && (xOff < 0 || xOff+n > x.n) {
		return fmt.Errorf("webgpu: %s source range [%d,%d) outside buffer of %d", k.name, xOff, xOff+n, x.n)
	}

	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], uint32(n))     //nolint:gosec // G115: bounded by buffer length
	binary.LittleEndian.PutUint32(params[4:8], uint32(yOff))  //nolint:gosec // G115: bounded by buffer length
	binary.LittleEndian.PutUint32(params[8:12], uint32(xOff)) //nolint:gosec // G115: bounded by buffer length
	binary.LittleEndian.PutUint32(params[12:16], math.Float32bits(scalar))
	uniform := a.mapped(params, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
	defer uniform.Release()

	pipeline := a.pipeline(k)
	entries := []wgpu.BindGroupEntry{wgpu.BufferBindingEntry(0, y.buf, 0, byteSize(y.n))}
	if k.binary {
		entries = append(entries, wgpu.BufferBindingEntry(1, x.buf, 0, byteSize(x.n)))
	}
	entries = append(entries, wgpu.BufferBindingEntry(uint32(len(entries)), uniform, 0, 16)) //nolint:gosec // G115: at most 3
	bindGroup := a.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := a.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32(workgroups(n)), 1, 1) //nolint:gosec // G115: bounded by max reduce threads
	pass.End()
	a.queue.Submit(encoder.Finish(nil))
	return nil
}

func (a *Accelerator) unaryOp(name string, b device.Buffer, offset, n int, scalar float32) error {
	y, err := a.storage(b)
	if err != nil {
		return err
	}
	return a.dispatch(kernels[name], n, offset, 0, scalar, y, nil)
}

func (a *Accelerator) binaryOp(name string, yb device.Buffer, yOff int, scalar float32, xb device.Buffer, xOff, n int) error {
	y, err := a.storage(yb)
	if err != nil {
		return err
	}
	x, err := a.storage(xb)
	if err != nil {
		return err
	}
	if x == y {
		// Reading and writing one storage buffer in a pass is invalid.
		tmp, err := a.Alloc(x.n)
		if err != nil {
			return err
		}
		defer a.Release(tmp)
		t := tmp.(*buffer)
		encoder := a.device.CreateCommandEncoder(nil)
		encoder.CopyBufferToBuffer(x.buf, 0, t.buf, 0, byteSize(x.n))
		a.queue.Submit(encoder.Finish(nil))
		x = t
	}
	return a.dispatch(kernels[name], n, yOff, xOff, scalar, y, x)
}

// Fill sets n elements starting at offset to value.
func (a *Accelerator) Fill(b device.Buffer, offset, n int, value float32) error {
	return a.unaryOp("fill", b, offset, n, value)
}

// Scal multiplies n elements starting at offset by alpha.
func (a *Accelerator) Scal(b device.Buffer, offset, n int, alpha float32) error {
	return a.unaryOp("scal", b, offset, n, alpha)
}

// ScalarAdd adds value to n elements starting at offset.
func (a *Accelerator) ScalarAdd(b device.Buffer, offset, n int, value float32) error {
	return a.unaryOp("scalar_add", b, offset, n, value)
}

// Axpy computes y[yOff+i] += alpha * x[xOff+i].
func (a *Accelerator) Axpy(y device.Buffer, yOff int, alpha float32, x device.Buffer, xOff int, n int) error {
	return a.binaryOp("axpy", y, yOff, alpha, x, xOff, n)
}

// CMul computes y[yOff+i] *= x[xOff+i].
func (a *Accelerator) CMul(y device.Buffer, yOff int, x device.Buffer, xOff int, n int) error {
	return a.binaryOp("cmul", y, yOff, 0, x, xOff, n)
}
