package ann

import (
	"fmt"
	"strings"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/token"
)

// Stack chains components: each child's output feeds the next child's input,
// and gradients flow back in reverse order.
type Stack struct {
	lifecycle
	children []Component
}

var _ Component = (*Stack)(nil)
var _ GradientComputer = (*Stack)(nil)

// NewStack creates a stack holding children in order.
func NewStack(name string, children ...Component) *Stack {
	return &Stack{lifecycle: newLifecycle("stack", name, "", 0, 0), children: children}
}

// Push appends components to the stack.
func (s *Stack) Push(children ...Component) *Stack {
	if s.phase != uninitialized {
		fatal.Usage("ann.Stack.Push", "stack %q is already built", s.name)
	}
	s.children = append(s.children, children...)
	return s
}

// Children returns the components in forward order.
func (s *Stack) Children() []Component { return s.children }

// Forward runs the children in order.
func (s *Stack) Forward(in token.Token, duringTraining bool) token.Token {
	const op = "ann.Stack.Forward"
	s.beginForward(op, in)
	out := in
	for _, c := range s.children {
		out = c.Forward(out, duringTraining)
	}
	s.output = out
	return out
}

// Backprop runs the children in reverse order.
func (s *Stack) Backprop(errIn token.Token) token.Token {
	const op = "ann.Stack.Backprop"
	s.beginBackprop(op, errIn)
	g := errIn
	for i := len(s.children) - 1; i >= 0; i-- {
		g = s.children[i].Backprop(g)
	}
	s.errorOutput = g
	return g
}

// ComputeGradients collects the gradients of every weight-owning child.
func (s *Stack) ComputeGradients(grads map[string]*matrix.Matrix) {
	for _, c := range s.children {
		if gc, ok := c.(GradientComputer); ok {
			gc.ComputeGradients(grads)
		}
	}
}

// Reset resets every child.
func (s *Stack) Reset(it int) {
	for _, c := range s.children {
		c.Reset(it)
	}
	s.reset()
}

// Build builds the children in order, feeding each one the previous child's
// output size. The last child receives the requested output size.
func (s *Stack) Build(inputSize, outputSize int, weights WeightsDict, components ComponentsDict) {
	const op = "ann.Stack.Build"
	s.resolveSizes(op, inputSize, outputSize)
	in := s.inputSize
	for i, c := range s.children {
		out := 0
		if i == len(s.children)-1 {
			out = s.outputSize
		}
		c.Build(in, out, weights, components)
		in = c.OutputSize()
	}
	if n := len(s.children); n > 0 {
		s.resolveSizes(op, s.children[0].InputSize(), s.children[n-1].OutputSize())
	}
	s.register(op, s, components)
}

// Clone deep-copies the children.
func (s *Stack) Clone() Component {
	children := make([]Component, len(s.children))
	for i, c := range s.children {
		children[i] = c.Clone()
	}
	return NewStack(s.name, children...)
}

// PersistedForm returns the textual form of the stack and its children.
func (s *Stack) PersistedForm() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ann.components.stack{ name='%s', input=%d, output=%d }", s.name, s.inputSize, s.outputSize)
	for _, c := range s.children {
		fmt.Fprintf(&sb, ":push( %s )", c.PersistedForm())
	}
	return sb.String()
}
