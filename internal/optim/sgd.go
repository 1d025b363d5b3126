package optim

import (
	"github.com/born-ml/april/internal/ann"
	"github.com/born-ml/april/internal/matrix"
)

// SGD implements Stochastic Gradient Descent with momentum and weight decay.
//
// Update rule:
//
//	w' = w + momentum·(w - prev) - lr·(grad + weightDecay·w)
//
// where prev is the iterate before w. With zero momentum and weight decay
// this reduces to w' = w - lr·grad.
type SGD struct {
	lr          float32
	momentum    float32
	weightDecay float32
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	LR          float32 // Learning rate (default: 0.01)
	Momentum    float32 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float32 // L2 penalty (default: 0.0)
}

var _ Optimizer = (*SGD)(nil)

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{lr: config.LR, momentum: config.Momentum, weightDecay: config.WeightDecay}
}

// Update implements Optimizer.
func (s *SGD) Update(weights ann.WeightsDict, grads map[string]*matrix.Matrix) {
	lr, mom, wd := s.lr, s.momentum, s.weightDecay
	commit("optim.SGD.Update", weights, grads, func(_ string, w, prev, grad, next *matrix.Matrix) {
		next.Combine3(w, prev, grad, func(w, prev, g float32) float32 {
			return w + mom*(w-prev) - lr*(g+wd*w)
		})
	})
}

// GetLR returns the learning rate.
func (s *SGD) GetLR() float32 { return s.lr }

// SetLR changes the learning rate for subsequent updates.
func (s *SGD) SetLR(lr float32) { s.lr = lr }
