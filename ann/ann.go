// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ann provides the public API of the ANN component graph.
//
// Components transform a token (a matrix of patterns, one per row) in Forward
// and propagate errors back in Backprop. Trainable weights live in Connections
// blocks kept in a WeightsDict, shared by name between components.
//
// Example:
//
//	net := ann.NewStack("net",
//	    ann.NewDotProduct("l1", "w1", 2, 8, false),
//	    ann.NewBias("b1", "b1", 8),
//	    ann.NewTanh("a1"),
//	    ann.NewDotProduct("l2", "w2", 8, 2, false),
//	    ann.NewLogSoftmax("out"))
//	weights := ann.WeightsDict{}
//	net.Build(2, 2, weights, ann.ComponentsDict{})
//	rng := ann.NewRandom(1)
//	for _, name := range weights.Names() {
//	    weights[name].RandomizeWeights(rng, -0.5, 0.5)
//	}
//	out := net.Forward(ann.NewToken(input), false)
package ann

import (
	"github.com/born-ml/april/internal/ann"
	"github.com/born-ml/april/internal/ann/loss"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/random"
	"github.com/born-ml/april/internal/token"
)

// Component is a node of the graph.
type Component = ann.Component

// GradientComputer is implemented by components that own weights.
type GradientComputer = ann.GradientComputer

// Connections is a trainable weight block with its previous weights.
type Connections = ann.Connections

// WeightsDict maps weight names to Connections.
type WeightsDict = ann.WeightsDict

// ComponentsDict maps component names to components.
type ComponentsDict = ann.ComponentsDict

// Token is the value flowing between components.
type Token = token.Token

// RandomSource is the uniform random source used by initialization and dropout.
type RandomSource = random.Source

// Component variants.
type (
	ActivationComponent = ann.ActivationComponent
	DotProduct          = ann.DotProduct
	Bias                = ann.Bias
	Dropout             = ann.Dropout
	Stack               = ann.Stack
	Whitening           = ann.Whitening
)

// LossFunction accumulates a loss and computes its gradient.
type LossFunction = loss.LossFunction

// NewToken wraps a matrix as a token.
func NewToken(m *matrix.Matrix) Token { return token.NewMatrix(m) }

// ToMatrix returns the matrix carried by a token. Other token types are a
// type mismatch fault.
func ToMatrix(tk Token) *matrix.Matrix { return token.ToMatrix("ann.ToMatrix", tk) }

// NewRandom creates a seeded random generator.
func NewRandom(seed uint64) *random.Generator { return random.New(seed) }

// NewConnections creates a weight block of numOutputs units with numInputs
// weights each. w and oldw may be nil.
func NewConnections(numInputs, numOutputs int, w, oldw *matrix.Matrix, opts ...matrix.Option) *Connections {
	return ann.NewConnections(numInputs, numOutputs, w, oldw, opts...)
}

// NewStack creates a stack running children in order.
func NewStack(name string, children ...Component) *Stack { return ann.NewStack(name, children...) }

// NewDotProduct creates a fully connected layer.
func NewDotProduct(name, weightsName string, inputSize, outputSize int, transpose bool) *DotProduct {
	return ann.NewDotProduct(name, weightsName, inputSize, outputSize, transpose)
}

// NewBias creates a bias component.
func NewBias(name, weightsName string, size int) *Bias { return ann.NewBias(name, weightsName, size) }

// NewDropout creates a dropout component.
func NewDropout(name string, rng RandomSource, value, prob float32, size int) *Dropout {
	return ann.NewDropout(name, rng, value, prob, size)
}

// NewPCAWhitening creates a PCA whitening component.
func NewPCAWhitening(name string, u, s *matrix.Matrix, epsilon float32, takeN int) *Whitening {
	return ann.NewPCAWhitening(name, u, s, epsilon, takeN)
}

// NewZCAWhitening creates a ZCA whitening component.
func NewZCAWhitening(name string, u, s *matrix.Matrix, epsilon float32, takeN int) *Whitening {
	return ann.NewZCAWhitening(name, u, s, epsilon, takeN)
}

// NewLogistic creates a logistic sigmoid activation.
func NewLogistic(name string) *ActivationComponent { return ann.NewLogistic(name) }

// NewTanh creates a hyperbolic tangent activation.
func NewTanh(name string) *ActivationComponent { return ann.NewTanh(name) }

// NewReLU creates a rectified linear unit activation.
func NewReLU(name string) *ActivationComponent { return ann.NewReLU(name) }

// NewSoftplus creates a softplus activation.
func NewSoftplus(name string) *ActivationComponent { return ann.NewSoftplus(name) }

// NewSoftsign creates a softsign activation.
func NewSoftsign(name string) *ActivationComponent { return ann.NewSoftsign(name) }

// NewSin creates a sine activation.
func NewSin(name string) *ActivationComponent { return ann.NewSin(name) }

// NewLinear creates an identity activation.
func NewLinear(name string) *ActivationComponent { return ann.NewLinear(name) }

// NewSoftmax creates a row-wise softmax activation.
func NewSoftmax(name string) *ActivationComponent { return ann.NewSoftmax(name) }

// NewLogSoftmax creates a row-wise log-softmax activation.
func NewLogSoftmax(name string) *ActivationComponent { return ann.NewLogSoftmax(name) }

// NewHardtanh creates a hard tanh clipping to [inf, sup].
func NewHardtanh(name string, inf, sup float32) *ActivationComponent {
	return ann.NewHardtanh(name, inf, sup)
}

// ComputeAllGradients collects the gradients of every weight-owning component.
func ComputeAllGradients(components ComponentsDict) map[string]*matrix.Matrix {
	return ann.ComputeAllGradients(components)
}

// NewMSE creates a mean squared error loss over size outputs (0 accepts any).
func NewMSE(size int) LossFunction { return loss.NewMSE(size) }

// NewMultiClassCrossEntropy creates a cross-entropy loss over log-probabilities.
func NewMultiClassCrossEntropy(size int) LossFunction { return loss.NewMultiClassCrossEntropy(size) }
