// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend selects where matrix operations execute.
//
// A Context bundles an optional accelerator with the host data-parallel
// settings and launch geometry limits. Matrices bound to a context through
// matrix.WithContext run eligible operations on its accelerator.
package backend

import (
	"log/slog"

	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/parallel"
)

// Context bundles the execution resources a matrix is bound to.
type Context = device.Context

// Option configures a Context.
type Option = device.Option

// Accelerator is a device with its own memory running element-wise kernels.
type Accelerator = device.Accelerator

// Capabilities are the launch geometry limits of a backend.
type Capabilities = device.Capabilities

// ParallelConfig configures host data parallelism.
type ParallelConfig = parallel.Config

// NewContext creates a dispatch context. Without options it is host-only.
func NewContext(opts ...Option) *Context { return device.NewContext(opts...) }

// Default returns the process-wide default context.
func Default() *Context { return device.Default() }

// SetDefault replaces the process-wide default context.
func SetDefault(c *Context) { device.SetDefault(c) }

// WithAccelerator attaches an accelerator.
func WithAccelerator(a Accelerator, useByDefault bool) Option {
	return device.WithAccelerator(a, useByDefault)
}

// WithCapabilities overrides the geometry limits of host-only contexts.
func WithCapabilities(caps Capabilities) Option { return device.WithCapabilities(caps) }

// WithParallel sets the host data-parallel configuration.
func WithParallel(cfg ParallelConfig) Option { return device.WithParallel(cfg) }

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(l *slog.Logger) Option { return device.WithLogger(l) }

// DefaultCapabilities returns the limits used when no accelerator reports its own.
func DefaultCapabilities() Capabilities { return device.DefaultCapabilities() }
