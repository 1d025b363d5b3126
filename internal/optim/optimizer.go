// Package optim implements single-step weight updates over a weights
// dictionary.
//
// An update never writes the current weights in place. The new values are
// computed into each block's previous-weights buffer, which is then swapped
// with the current one, so the block keeps the last two iterates. Momentum is
// read from that pair.
//
// Example usage:
//
//	grads := ann.ComputeAllGradients(components)
//	opt := optim.NewSGD(optim.SGDConfig{LR: 0.01, Momentum: 0.9})
//	opt.Update(weights, grads)
//
// Sharers of a block accumulate into one gradient, and the block is updated
// once per step.
package optim

import (
	"github.com/born-ml/april/internal/ann"
	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Update applies one step to every block of weights that has a
	// gradient in grads. Blocks without a gradient are left untouched.
	Update(weights ann.WeightsDict, grads map[string]*matrix.Matrix)

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// commit runs step over every block with a gradient, in name order. step
// writes the new weights into next, which aliases the block's previous
// weights; the block is then swapped and checked.
func commit(op string, weights ann.WeightsDict, grads map[string]*matrix.Matrix,
	step func(name string, w, prev, grad, next *matrix.Matrix),
) {
	for _, name := range weights.Names() {
		grad, ok := grads[name]
		if !ok {
			continue
		}
		c := weights[name]
		w, prev := c.Weights(), c.PrevWeights()
		if !grad.SameDims(w) {
			fatal.Raise(op, fatal.ErrShapeMismatch, "gradient of %q is %v, weights are %v", name, grad.Dims(), w.Dims())
		}
		if w.SharesStorage(prev) {
			fatal.Usage(op, "weights %q have no separate previous buffer", name)
		}
		step(name, w, prev, grad, prev)
		c.Swap()
		c.PruneSubnormalAndCheckNormal()
		c.FlushSubnormal()
	}
}
