// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package matrix provides the public API of the dense float32 matrix engine.
//
// Matrices are N-dimensional, row- or column-major, and may be views sharing
// storage with a parent. Their memory is mirrored between the host and an
// optional accelerator selected through a device context.
//
// Example:
//
//	a := matrix.FromSlice([]float32{1, 2, 3, 4, 5, 6}, []int{2, 3})
//	b := matrix.New([]int{3, 2})
//	b.Fill(0.5)
//	c := matrix.New([]int{2, 2})
//	c.Gemm(matrix.NoTrans, matrix.NoTrans, 1, a, b, 0)
package matrix

import (
	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/matrix"
)

// Matrix is a dense N-dimensional float32 matrix.
type Matrix = matrix.Matrix

// Shape is the list of dimension sizes.
type Shape = matrix.Shape

// MajorOrder is the storage layout of a matrix.
type MajorOrder = matrix.MajorOrder

// Storage layouts.
const (
	RowMajor = matrix.RowMajor
	ColMajor = matrix.ColMajor
)

// Transpose flags for BLAS operations.
type Transpose = device.Transpose

// Transpose flag values.
const (
	NoTrans = device.NoTrans
	Trans   = device.Trans
)

// Option configures a new matrix.
type Option = matrix.Option

// Encoding selects the value encoding of the text format.
type Encoding = matrix.Encoding

// Text encodings.
const (
	Ascii  = matrix.Ascii
	Binary = matrix.Binary
)

// ErrMalformed is returned when decoding input that is not a serialized matrix.
var ErrMalformed = matrix.ErrMalformed

// New creates a zero-filled matrix with the given dimensions.
func New(dims []int, opts ...Option) *Matrix { return matrix.New(dims, opts...) }

// FromSlice creates a matrix that adopts data as its storage.
func FromSlice(data []float32, dims []int, opts ...Option) *Matrix {
	return matrix.FromSlice(data, dims, opts...)
}

// WithMajorOrder selects the storage layout.
func WithMajorOrder(o MajorOrder) Option { return matrix.WithMajorOrder(o) }

// WithContext binds the matrix to a device context.
func WithContext(ctx *device.Context) Option { return matrix.WithContext(ctx) }

// WriteString encodes m in the text format.
func WriteString(m *Matrix, enc Encoding) string { return matrix.WriteString(m, enc) }

// ReadString decodes a matrix written by WriteString.
func ReadString(s string, opts ...Option) (*Matrix, error) { return matrix.ReadString(s, opts...) }
