package optim

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/born-ml/april/internal/ann"
	"github.com/born-ml/april/internal/matrix"
)

// Adam implements the Adam optimizer over named weight blocks.
//
// Moment estimates are kept per weights name and allocated on the first
// update that carries a gradient for the block.
type Adam struct {
	lr    float32
	beta1 float32
	beta2 float32
	eps   float32
	t     int                       // Timestep for bias correction
	m     map[string]*matrix.Matrix // First moment estimates
	v     map[string]*matrix.Matrix // Second moment estimates
}

// AdamConfig holds configuration for the Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for the running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

var _ Optimizer = (*Adam)(nil)

// NewAdam creates a new Adam optimizer.
func NewAdam(config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		lr:    config.LR,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
		m:     make(map[string]*matrix.Matrix),
		v:     make(map[string]*matrix.Matrix),
	}
}

// Update implements Optimizer.
func (a *Adam) Update(weights ann.WeightsDict, grads map[string]*matrix.Matrix) {
	a.t++
	bc1 := float32(1 - math.Pow(float64(a.beta1), float64(a.t)))
	bc2 := float32(1 - math.Pow(float64(a.beta2), float64(a.t)))
	lr, b1, b2, eps := a.lr, a.beta1, a.beta2, a.eps

	commit("optim.Adam.Update", weights, grads, func(name string, w, _, grad, next *matrix.Matrix) {
		m := a.moment(a.m, name, w)
		v := a.moment(a.v, name, w)
		m.Scal(b1).Axpy(1-b1, grad)
		v.Combine(v, grad, func(v, g float32) float32 { return b2*v + (1-b2)*g*g })
		next.Combine3(w, m, v, func(w, m, v float32) float32 {
			return w - lr*(m/bc1)/(math32.Sqrt(v/bc2)+eps)
		})
	})
}

func (a *Adam) moment(moments map[string]*matrix.Matrix, name string, w *matrix.Matrix) *matrix.Matrix {
	mt, ok := moments[name]
	if !ok || !mt.SameDims(w) {
		mt = matrix.New(w.Dims(), matrix.WithContext(w.Context()))
		moments[name] = mt
	}
	return mt
}

// GetLR returns the learning rate.
func (a *Adam) GetLR() float32 { return a.lr }
