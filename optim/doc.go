// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides single-step weight updates for ANN weight blocks.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum and weight decay
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// Each Update commits one step per weight block: the new weights are written
// into the previous-weights buffer, which is then swapped in. Driving epochs
// and batches is left to the caller.
//
// # Basic Usage
//
//	weights := ann.WeightsDict{}
//	net := ann.NewStack("net",
//	    ann.NewDotProduct("l1", "w1", 784, 10, false),
//	    ann.NewLogSoftmax("out"))
//	net.Build(784, 10, weights, ann.ComponentsDict{})
//	opt := optim.NewSGD(optim.SGDConfig{LR: 0.01, Momentum: 0.9})
//
//	for _, batch := range batches {
//	    net.Reset(0)
//	    out := net.Forward(batch.Input, true)
//	    lossFn.AddLoss(out, batch.Target)
//	    net.Backprop(lossFn.ComputeGradient(out, batch.Target))
//	    grads := map[string]*matrix.Matrix{}
//	    net.ComputeGradients(grads)
//	    opt.Update(weights, grads)
//	}
package optim
