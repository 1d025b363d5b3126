// Package ann implements trainable weight blocks and the component graph
// that propagates tokens forward and gradients backward through a network.
//
// Every node implements Component. A component is built once against a
// WeightsDict and a ComponentsDict, then runs repeated cycles of Forward,
// Backprop and Reset. Weight-owning components register their Connections
// under a name, so two components built with the same weights name share
// parameters.
//
// Tokens carry matrices laid out as [bunch, features]. Misuse (backprop
// before forward, unbuilt components, size conflicts) and numeric faults are
// fatal and raise *fatal.Error.
package ann

import (
	"github.com/google/uuid"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/token"
)

// Component is a node of the network graph.
type Component interface {
	Name() string
	// WeightsName is the name of the Connections block the component owns,
	// or "" for weightless components.
	WeightsName() string
	// InputSize and OutputSize are the feature sizes; 0 means unconstrained.
	InputSize() int
	OutputSize() int

	Input() token.Token
	Output() token.Token
	// ErrorInput is the gradient received from above, with respect to the output.
	ErrorInput() token.Token
	// ErrorOutput is the gradient produced, with respect to the input.
	ErrorOutput() token.Token

	Forward(in token.Token, duringTraining bool) token.Token
	Backprop(errIn token.Token) token.Token
	Reset(iteration int)
	Build(inputSize, outputSize int, weights WeightsDict, components ComponentsDict)
	Clone() Component
	PersistedForm() string
}

// GradientComputer is implemented by components that own weights.
type GradientComputer interface {
	// ComputeGradients adds the gradient of the last forward/backprop cycle
	// to grads[WeightsName()], allocating it when absent. Sharers of a
	// block accumulate into the same matrix.
	ComputeGradients(grads map[string]*matrix.Matrix)
}

// ComputeAllGradients collects the gradients of every weight-owning component.
// Containers are skipped since their children are registered themselves.
func ComputeAllGradients(components ComponentsDict) map[string]*matrix.Matrix {
	grads := make(map[string]*matrix.Matrix)
	for _, c := range components {
		if c.WeightsName() == "" {
			continue
		}
		if gc, ok := c.(GradientComputer); ok {
			gc.ComputeGradients(grads)
		}
	}
	return grads
}

type phase int

const (
	uninitialized phase = iota
	built
	forwarded
	backpropagated
)

// lifecycle holds the identity, sizes and token slots shared by all
// components, and enforces the Built → Forward → Backprop → Reset cycle.
type lifecycle struct {
	name        string
	weightsName string
	inputSize   int
	outputSize  int
	phase       phase

	input, output, errorInput, errorOutput token.Token
}

func newLifecycle(prefix, name, weightsName string, inputSize, outputSize int) lifecycle {
	if name == "" {
		name = generateName(prefix)
	}
	return lifecycle{name: name, weightsName: weightsName, inputSize: inputSize, outputSize: outputSize}
}

// generateName returns a unique name for an anonymous component.
func generateName(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func (l *lifecycle) Name() string             { return l.name }
func (l *lifecycle) WeightsName() string      { return l.weightsName }
func (l *lifecycle) InputSize() int           { return l.inputSize }
func (l *lifecycle) OutputSize() int          { return l.outputSize }
func (l *lifecycle) Input() token.Token       { return l.input }
func (l *lifecycle) Output() token.Token      { return l.output }
func (l *lifecycle) ErrorInput() token.Token  { return l.errorInput }
func (l *lifecycle) ErrorOutput() token.Token { return l.errorOutput }

// resolveSizes fixes the sizes at build time. A requested size of 0 keeps
// the declared one; a declared size of 0 adopts the requested one; two
// non-zero sizes must agree.
func (l *lifecycle) resolveSizes(op string, inputSize, outputSize int) {
	resolve := func(what string, declared *int, requested int) {
		switch {
		case requested == 0:
		case *declared == 0:
			*declared = requested
		case *declared != requested:
			fatal.Usage(op, "conflicting %s size: built with %d, requested %d", what, *declared, requested)
		}
	}
	resolve("input", &l.inputSize, inputSize)
	resolve("output", &l.outputSize, outputSize)
	if l.phase == uninitialized {
		l.phase = built
	}
}

// register inserts c into the components dictionary under its name.
func (l *lifecycle) register(op string, c Component, components ComponentsDict) {
	if components == nil {
		return
	}
	if prev, ok := components[l.name]; ok && prev != c {
		fatal.Usage(op, "component name %q already registered", l.name)
	}
	components[l.name] = c
}

func (l *lifecycle) beginForward(op string, in token.Token) *matrix.Matrix {
	if l.phase == uninitialized {
		fatal.Usage(op, "component %q is not built", l.name)
	}
	m := token.ToMatrix(op, in)
	l.input = in
	l.phase = forwarded
	return m
}

func (l *lifecycle) beginBackprop(op string, errIn token.Token) *matrix.Matrix {
	if l.phase != forwarded {
		fatal.Usage(op, "backprop of %q without a preceding forward", l.name)
	}
	m := token.ToMatrix(op, errIn)
	l.errorInput = errIn
	l.phase = backpropagated
	return m
}

// reset clears the token slots and returns to the built phase. It is idempotent.
func (l *lifecycle) reset() {
	l.input, l.output, l.errorInput, l.errorOutput = nil, nil, nil, nil
	if l.phase != uninitialized {
		l.phase = built
	}
}

// checkFeatures verifies that a [bunch, features] matrix has the expected
// feature count. A zero expected size accepts anything.
func checkFeatures(op string, m *matrix.Matrix, expected int) {
	if m.NumDim() < 2 {
		fatal.Raise(op, fatal.ErrShapeMismatch, "expected [bunch, features], got dims %v", m.Dims())
	}
	features := m.Size() / max(m.DimSize(0), 1)
	if expected != 0 && features != expected {
		fatal.Raise(op, fatal.ErrShapeMismatch, "expected %d features, got dims %v", expected, m.Dims())
	}
}

// flatten returns m as a 2-D [bunch, features] matrix, sharing storage when
// m is simple.
func flatten(m *matrix.Matrix) *matrix.Matrix {
	if m.NumDim() == 2 {
		return m
	}
	bunch := m.DimSize(0)
	if !m.IsSimple() {
		m = m.Clone()
	}
	return m.Rewrap(bunch, m.Size()/max(bunch, 1))
}
