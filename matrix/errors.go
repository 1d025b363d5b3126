// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package matrix

import "github.com/born-ml/april/internal/fatal"

// Fault is the value carried by a panic raised on a violated precondition.
// Recover it with Recover and match the kind with errors.Is.
type Fault = fatal.Error

// Fault kinds.
var (
	ErrShapeMismatch   = fatal.ErrShapeMismatch
	ErrContiguity      = fatal.ErrContiguity
	ErrNonFinite       = fatal.ErrNonFinite
	ErrAllocation      = fatal.ErrAllocation
	ErrTypeMismatch    = fatal.ErrTypeMismatch
	ErrUsage           = fatal.ErrUsage
	ErrDevice          = fatal.ErrDevice
	ErrInvalidArgument = fatal.ErrInvalidArgument
)

// Recover converts a fault panic into an error. Use it deferred:
//
//	defer matrix.Recover(&err)
func Recover(errp *error) { fatal.Recover(errp) }
