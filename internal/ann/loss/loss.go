// Package loss implements the loss functions that close a forward/backprop
// cycle: they score a network output against a target and produce the
// gradient fed to the top component's Backprop.
//
// Inputs and targets are matrix tokens laid out as [bunch, features].
package loss

import (
	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/token"
)

// LossFunction scores outputs against targets.
type LossFunction interface {
	// AddLoss returns the mean loss per pattern of the bunch and adds it to
	// the running accumulator.
	AddLoss(input, target token.Token) float32
	// ComputeGradient returns the gradient of the summed loss with respect
	// to the input.
	ComputeGradient(input, target token.Token) token.Token
	// AccumLoss returns the mean loss per pattern since the last Reset.
	AccumLoss() float32
	Reset()
	// Clone returns a copy carrying the accumulated loss.
	Clone() LossFunction
}

// accumulator keeps the running sum of pattern losses.
type accumulator struct {
	sum      float64
	patterns int
}

func (a *accumulator) add(sum float32, patterns int) float32 {
	a.sum += float64(sum)
	a.patterns += patterns
	if patterns == 0 {
		return 0
	}
	return sum / float32(patterns)
}

func (a *accumulator) mean() float32 {
	if a.patterns == 0 {
		return 0
	}
	return float32(a.sum / float64(a.patterns))
}

func (a *accumulator) reset() { *a = accumulator{} }

// operands unwraps and checks a pair of [bunch, features] tokens. A zero
// size accepts any feature count.
func operands(op string, size int, input, target token.Token) (in, tgt *matrix.Matrix) {
	in = token.ToMatrix(op, input)
	tgt = token.ToMatrix(op, target)
	if in.NumDim() < 2 {
		fatal.Raise(op, fatal.ErrShapeMismatch, "expected [bunch, features], got dims %v", in.Dims())
	}
	if features := in.Size() / max(in.DimSize(0), 1); size != 0 && features != size {
		fatal.Raise(op, fatal.ErrShapeMismatch, "expected %d features, got dims %v", size, in.Dims())
	}
	if !in.SameDims(tgt) {
		fatal.Shape(op, in.Dims(), tgt.Dims())
	}
	return in, tgt
}
