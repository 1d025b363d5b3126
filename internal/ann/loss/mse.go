package loss

import "github.com/born-ml/april/internal/token"

// MSE is the half squared error, 0.5·Σ(input-target)² per pattern.
type MSE struct {
	size int
	acc  accumulator
}

var _ LossFunction = (*MSE)(nil)

// NewMSE creates a mean squared error loss over size features; 0 accepts
// any size.
func NewMSE(size int) *MSE { return &MSE{size: size} }

// AddLoss implements LossFunction.
func (l *MSE) AddLoss(input, target token.Token) float32 {
	in, tgt := operands("loss.MSE.AddLoss", l.size, input, target)
	diff := in.Sub(tgt)
	return l.acc.add(0.5*diff.Dot(diff), in.DimSize(0))
}

// ComputeGradient returns input - target.
func (l *MSE) ComputeGradient(input, target token.Token) token.Token {
	in, tgt := operands("loss.MSE.ComputeGradient", l.size, input, target)
	return token.NewMatrix(in.Sub(tgt))
}

// AccumLoss implements LossFunction.
func (l *MSE) AccumLoss() float32 { return l.acc.mean() }

// Reset clears the accumulator.
func (l *MSE) Reset() { l.acc.reset() }

// Clone implements LossFunction.
func (l *MSE) Clone() LossFunction {
	c := *l
	return &c
}
