// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU accelerator for element-wise kernels.
//
// The backend is available on Windows with wgpu-native installed. Elsewhere
// New returns ErrUnavailable and matrices stay on the host.
//
// Example:
//
//	acc, err := webgpu.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx := backend.NewContext(backend.WithAccelerator(acc, true))
//	x := matrix.New([]int{1024, 1024}, matrix.WithContext(ctx))
package webgpu

import (
	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/device/webgpu"
)

// ErrUnavailable is returned when no WebGPU adapter can be acquired.
var ErrUnavailable = device.ErrUnavailable

// New creates a WebGPU accelerator on the high-performance adapter.
func New() (device.Accelerator, error) { return webgpu.New() }

// IsAvailable reports whether WebGPU can be used on this host.
func IsAvailable() bool { return webgpu.IsAvailable() }
