// Package device implements the dispatch layer between the matrix engine and
// the execution backends.
//
// It decides, per operation, whether work runs on the host or on an
// accelerator, computes launch geometry for reductions and element-wise
// kernels, and translates abstract transpose flags into backend codes.
// Geometry functions are pure: they depend only on their arguments and the
// backend Capabilities.
package device

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/born-ml/april/internal/parallel"
)

// Target is where an operation executes.
type Target int

// Execution targets.
const (
	Host Target = iota
	Accelerated
)

// String returns the target name.
func (t Target) String() string {
	if t == Accelerated {
		return "accelerator"
	}
	return "host"
}

// Context bundles the execution resources a matrix is bound to.
type Context struct {
	accel          Accelerator
	useAccelerator bool
	caps           Capabilities
	parallel       parallel.Config
	host           HostFeatures
	logger         *slog.Logger
}

// Option configures a Context.
type Option func(*Context)

// WithAccelerator attaches an accelerator. When useByDefault is true, new
// matrices bound to the context are permitted to run on it.
func WithAccelerator(a Accelerator, useByDefault bool) Option {
	return func(c *Context) {
		c.accel = a
		c.useAccelerator = useByDefault && a != nil
	}
}

// WithCapabilities overrides the geometry limits used when no accelerator
// reports its own.
func WithCapabilities(caps Capabilities) Option {
	return func(c *Context) { c.caps = caps }
}

// WithParallel sets the host data-parallel configuration.
func WithParallel(cfg parallel.Config) Option {
	return func(c *Context) { c.parallel = cfg }
}

// WithHostFeatures overrides the detected host vector extensions.
func WithHostFeatures(h HostFeatures) Option {
	return func(c *Context) { c.host = h }
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewContext creates a dispatch context. Without options it is host-only.
func NewContext(opts ...Option) *Context {
	c := &Context{
		caps:     DefaultCapabilities(),
		parallel: parallel.DefaultConfig(),
		host:     DetectHost(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parallel.MinChunkSize = alignChunk(c.parallel.MinChunkSize, c.host.VectorWidth())
	c.logger.Debug("device context created",
		"accelerator", c.AcceleratorName(),
		"use_accelerator", c.useAccelerator,
		"host_vector_path", c.host.VectorPath())
	return c
}

// alignChunk rounds a host chunk size up to a whole number of vector lanes.
func alignChunk(size, lanes int) int {
	size, lanes = max(size, 1), max(lanes, 1)
	return (size + lanes - 1) / lanes * lanes
}

// Accelerator returns the attached accelerator, or nil.
func (c *Context) Accelerator() Accelerator { return c.accel }

// AcceleratorName returns the accelerator name or "none".
func (c *Context) AcceleratorName() string {
	if c.accel == nil {
		return "none"
	}
	return c.accel.Name()
}

// DefaultUseAccelerator is the initial use-accelerator flag of new matrices.
func (c *Context) DefaultUseAccelerator() bool { return c.useAccelerator }

// Capabilities returns the accelerator limits, or the configured limits for
// host-only contexts.
func (c *Context) Capabilities() Capabilities {
	if c.accel != nil {
		return c.accel.Capabilities()
	}
	return c.caps
}

// Parallel returns the host data-parallel configuration.
func (c *Context) Parallel() parallel.Config { return c.parallel }

// Host returns the detected host CPU features.
func (c *Context) Host() HostFeatures { return c.host }

// Logger returns the dispatch logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Target decides where an operation runs. permitted is the operand's
// use-accelerator flag; simple reports whether all operands are contiguous,
// which accelerator kernels require.
func (c *Context) Target(op string, permitted, simple bool) Target {
	if !permitted || c.accel == nil {
		return Host
	}
	if !simple {
		c.logger.Debug("strided operand runs on host", "op", op)
		return Host
	}
	return Accelerated
}

// String summarizes the context.
func (c *Context) String() string {
	return fmt.Sprintf("device.Context{accelerator=%s use=%t host=%s}",
		c.AcceleratorName(), c.useAccelerator, c.host.VectorPath())
}

var defaultContext atomic.Pointer[Context]

// Default returns the process-wide context used by matrices created without
// an explicit context. It is host-only until SetDefault is called.
func Default() *Context {
	if c := defaultContext.Load(); c != nil {
		return c
	}
	c := NewContext()
	if defaultContext.CompareAndSwap(nil, c) {
		return c
	}
	return defaultContext.Load()
}

// SetDefault replaces the process-wide context. Existing matrices keep the
// context they were created with.
func SetDefault(c *Context) {
	defaultContext.Store(c)
}
