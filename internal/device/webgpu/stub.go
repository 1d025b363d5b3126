//go:build !windows

package webgpu

import "github.com/born-ml/april/internal/device"

// New reports that WebGPU is unavailable on this platform.
func New() (device.Accelerator, error) {
	return nil, device.ErrUnavailable
}

// IsAvailable reports whether a WebGPU adapter can be acquired.
func IsAvailable() bool { return false }
