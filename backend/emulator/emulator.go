// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package emulator provides a host-memory accelerator that follows the
// accelerator contract exactly. It keeps device buffers separate from host
// storage, so mirrored-memory transfers happen as they would on a GPU.
package emulator

import "github.com/born-ml/april/internal/device"

// Emulator is the emulated accelerator.
type Emulator = device.Emulator

// New creates an emulator with the default capabilities.
func New() *Emulator { return device.NewEmulator(device.DefaultCapabilities()) }
