// Package memory implements the mirrored host/accelerator buffer that backs
// every matrix.
//
// A Block holds a host slice and, once an accelerator has touched it, a device
// buffer of the same length. The pair is kept coherent by an explicit state
// machine:
//
//	HostValid   --DeviceForRead-->  BothValid (upload)
//	DeviceValid --HostForRead-->    BothValid (download)
//	any         --HostForWrite-->   HostValid
//	any         --DeviceForWrite--> DeviceValid
//
// Reads on an invalidated side trigger the synchronizing copy; writes
// invalidate the other side. Blocks are not safe for concurrent mutation.
package memory

import (
	"fmt"
	"math"
	"runtime"

	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/fatal"
)

// State is the coherence state of a Block.
type State int

// Coherence states.
const (
	HostValid State = iota
	DeviceValid
	BothValid
)

func (s State) String() string {
	switch s {
	case HostValid:
		return "host-valid"
	case DeviceValid:
		return "device-valid"
	case BothValid:
		return "both-valid"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const maxElements = math.MaxInt / 4

// Block is a mirrored float32 buffer.
type Block struct {
	host  []float32
	dev   device.Buffer
	accel device.Accelerator
	state State
}

// New allocates a zeroed block of n elements. Negative or overflowing sizes
// raise a fatal allocation error.
func New(n int) *Block {
	if n < 0 || n > maxElements {
		fatal.Raise("memory.New", fatal.ErrAllocation, "cannot allocate %d float32 elements", n)
	}
	return &Block{host: make([]float32, n), state: HostValid}
}

// Wrap adopts data as the host side of a new block without copying.
func Wrap(data []float32) *Block {
	return &Block{host: data, state: HostValid}
}

// Len returns the number of elements.
func (b *Block) Len() int { return len(b.host) }

// State returns the current coherence state.
func (b *Block) State() State { return b.state }

// Accelerator returns the accelerator the device side is bound to, or nil.
func (b *Block) Accelerator() device.Accelerator { return b.accel }

// HostForRead returns the host slice after synchronizing it from the device
// if the host copy is stale. The caller must not write through it.
func (b *Block) HostForRead() []float32 {
	if b.state == DeviceValid {
		b.download()
		b.state = BothValid
	}
	return b.host
}

// HostForWrite returns the host slice for writing and invalidates the device
// copy. Stale host data is synchronized first, so partial writes are safe.
func (b *Block) HostForWrite() []float32 {
	h := b.HostForRead()
	b.state = HostValid
	return h
}

// HostForReadAndWrite is HostForWrite; it exists so call sites state their intent.
func (b *Block) HostForReadAndWrite() []float32 {
	return b.HostForWrite()
}

// DeviceForRead returns the device buffer on acc, uploading the host copy if
// the device side is stale.
func (b *Block) DeviceForRead(acc device.Accelerator) device.Buffer {
	b.bind(acc)
	if b.state == HostValid {
		b.upload()
		b.state = BothValid
	}
	return b.dev
}

// DeviceForWrite returns the device buffer on acc for writing and invalidates
// the host copy.
func (b *Block) DeviceForWrite(acc device.Accelerator) device.Buffer {
	buf := b.DeviceForRead(acc)
	b.state = DeviceValid
	return buf
}

// ReleaseDevice synchronizes the host copy and frees the device buffer.
func (b *Block) ReleaseDevice() {
	if b.dev == nil {
		return
	}
	b.HostForRead()
	b.accel.Release(b.dev)
	b.dev, b.accel = nil, nil
	b.state = HostValid
}

func (b *Block) bind(acc device.Accelerator) {
	if acc == nil {
		fatal.Raise("memory.Block", fatal.ErrDevice, "device access without an accelerator")
	}
	if b.accel != nil {
		if b.accel != acc {
			fatal.Usage("memory.Block", "block bound to %s, accessed from %s", b.accel.Name(), acc.Name())
		}
		return
	}
	buf, err := acc.Alloc(len(b.host))
	if err != nil {
		fatal.Raise("memory.Block", fatal.ErrAllocation, "device alloc of %d elements on %s: %v", len(b.host), acc.Name(), err)
	}
	b.accel, b.dev = acc, buf
	// Device memory is not tracked by the Go heap.
	runtime.AddCleanup(b, func(r deviceRef) { r.acc.Release(r.buf) }, deviceRef{acc, buf})
}

type deviceRef struct {
	acc device.Accelerator
	buf device.Buffer
}

func (b *Block) upload() {
	if err := b.accel.Upload(b.dev, b.host); err != nil {
		fatal.Raise("memory.Block", fatal.ErrDevice, "upload to %s: %v", b.accel.Name(), err)
	}
}

func (b *Block) download() {
	if err := b.accel.Download(b.host, b.dev); err != nil {
		fatal.Raise("memory.Block", fatal.ErrDevice, "download from %s: %v", b.accel.Name(), err)
	}
}
