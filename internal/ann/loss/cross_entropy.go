package loss

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/token"
)

// MultiClassCrossEntropy scores log-probabilities against a target
// distribution: -Σ target·input per pattern. It pairs with a log-softmax
// output component, whose Backprop passes this gradient through.
type MultiClassCrossEntropy struct {
	size int
	acc  accumulator
}

var _ LossFunction = (*MultiClassCrossEntropy)(nil)

// NewMultiClassCrossEntropy creates the loss over size classes; 0 accepts any.
func NewMultiClassCrossEntropy(size int) *MultiClassCrossEntropy {
	return &MultiClassCrossEntropy{size: size}
}

// AddLoss implements LossFunction. Input values must be log-probabilities.
func (l *MultiClassCrossEntropy) AddLoss(input, target token.Token) float32 {
	const op = "loss.MultiClassCrossEntropy.AddLoss"
	in, tgt := operands(op, l.size, input, target)
	// 0·log(0) counts as 0.
	prod := matrix.New(in.Dims())
	prod.Combine(in, tgt, func(x, t float32) float32 {
		if t == 0 {
			return 0
		}
		return t * x
	})
	sum := -prod.Sum()
	if math32.IsNaN(sum) || math32.IsInf(sum, 0) {
		fatal.NonFinite(op, "loss")
	}
	return l.acc.add(sum, in.DimSize(0))
}

// ComputeGradient returns exp(input) - target.
func (l *MultiClassCrossEntropy) ComputeGradient(input, target token.Token) token.Token {
	in, tgt := operands("loss.MultiClassCrossEntropy.ComputeGradient", l.size, input, target)
	g := matrix.New(in.Dims(), matrix.WithContext(in.Context()))
	g.Combine(in, tgt, func(x, t float32) float32 { return math32.Exp(x) - t })
	return token.NewMatrix(g)
}

// AccumLoss implements LossFunction.
func (l *MultiClassCrossEntropy) AccumLoss() float32 { return l.acc.mean() }

// Reset clears the accumulator.
func (l *MultiClassCrossEntropy) Reset() { l.acc.reset() }

// Clone implements LossFunction.
func (l *MultiClassCrossEntropy) Clone() LossFunction {
	c := *l
	return &c
}
