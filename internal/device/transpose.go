package device

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
)

// Transpose is the abstract linear-algebra operation flag applied to a
// matrix operand.
type Transpose int

// Operation flags.
const (
	NoTrans Transpose = iota
	Trans
	ConjTrans
)

// String returns the flag name.
func (t Transpose) String() string {
	switch t {
	case NoTrans:
		return "NoTrans"
	case Trans:
		return "Trans"
	case ConjTrans:
		return "ConjTrans"
	default:
		return fmt.Sprintf("Transpose(%d)", int(t))
	}
}

// Flip returns the opposite transposition. Conjugation is a no-op on real
// data, so ConjTrans flips to NoTrans.
func (t Transpose) Flip() Transpose {
	if t == NoTrans {
		return Trans
	}
	return NoTrans
}

// IsTransposed reports whether the operand is used transposed.
func (t Transpose) IsTransposed() bool {
	return t != NoTrans
}

// BlasTranspose translates the flag into the host BLAS code.
func (t Transpose) BlasTranspose() blas.Transpose {
	switch t {
	case NoTrans:
		return blas.NoTrans
	case Trans:
		return blas.Trans
	default:
		return blas.ConjTrans
	}
}

// KernelOp is the dense accelerator operation code (cuBLAS numbering).
type KernelOp uint32

// Dense accelerator operation codes.
const (
	KernelOpN KernelOp = 0
	KernelOpT KernelOp = 1
	KernelOpC KernelOp = 2
)

// KernelOp translates the flag into the dense accelerator code.
func (t Transpose) KernelOp() KernelOp {
	switch t {
	case NoTrans:
		return KernelOpN
	case Trans:
		return KernelOpT
	default:
		return KernelOpC
	}
}

// SparseOp is the sparse accelerator operation code (cuSPARSE numbering).
type SparseOp uint32

// Sparse accelerator operation codes.
const (
	SparseNonTranspose       SparseOp = 0
	SparseTranspose          SparseOp = 1
	SparseConjugateTranspose SparseOp = 2
)

// SparseOp translates the flag into the sparse accelerator code.
func (t Transpose) SparseOp() SparseOp {
	switch t {
	case NoTrans:
		return SparseNonTranspose
	case Trans:
		return SparseTranspose
	default:
		return SparseConjugateTranspose
	}
}
