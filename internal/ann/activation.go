package ann

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/token"
)

// activation is the math of one activation function.
type activation interface {
	kind() string
	// apply writes f(in) into out.
	apply(in, out *matrix.Matrix)
	// multiplyDerivatives writes errIn ⊙ f'(in, out) into errOut.
	multiplyDerivatives(in, out, errIn, errOut *matrix.Matrix)
	// rowWise reports whether the function couples the features of a pattern,
	// which requires a [bunch, features] layout.
	rowWise() bool
	params() string
}

// elementwise is an activation defined by a scalar function and its
// derivative expressed through the input x and the output y.
type elementwise struct {
	name  string
	f     func(x float32) float32
	deriv func(x, y float32) float32
	extra string
}

func (e elementwise) kind() string   { return e.name }
func (e elementwise) rowWise() bool  { return false }
func (e elementwise) params() string { return e.extra }

func (e elementwise) apply(in, out *matrix.Matrix) { out.ApplyFrom(in, e.f) }

func (e elementwise) multiplyDerivatives(in, out, errIn, errOut *matrix.Matrix) {
	errOut.Combine3(in, out, errIn, func(x, y, g float32) float32 { return g * e.deriv(x, y) })
}

func logistic(x float32) float32 { return 1 / (1 + math32.Exp(-x)) }

var (
	logisticFunc = elementwise{
		name:  "logistic",
		f:     logistic,
		deriv: func(_, y float32) float32 { return y * (1 - y) },
	}
	tanhFunc = elementwise{
		name:  "tanh",
		f:     math32.Tanh,
		deriv: func(_, y float32) float32 { return 1 - y*y },
	}
	reluFunc = elementwise{
		name: "relu",
		f:    func(x float32) float32 { return max(x, 0) },
		deriv: func(x, _ float32) float32 {
			if x > 0 {
				return 1
			}
			return 0
		},
	}
	softplusFunc = elementwise{
		name: "softplus",
		f: func(x float32) float32 {
			// log(1+e^x) = x + log(1+e^-x) keeps large inputs finite.
			if x > 0 {
				return x + math32.Log(1+math32.Exp(-x))
			}
			return math32.Log(1+math32.Exp(x))
		},
		deriv: func(x, _ float32) float32 { return logistic(x) },
	}
	softsignFunc = elementwise{
		name: "softsign",
		f:    func(x float32) float32 { return x / (1 + math32.Abs(x)) },
		deriv: func(x, _ float32) float32 {
			d := 1 + math32.Abs(x)
			return 1 / (d * d)
		},
	}
	sinFunc = elementwise{
		name:  "sin",
		f:     math32.Sin,
		deriv: func(x, _ float32) float32 { return math32.Cos(x) },
	}
	linearFunc = elementwise{
		name:  "linear",
		f:     func(x float32) float32 { return x },
		deriv: func(_, _ float32) float32 { return 1 },
	}
)

func hardtanhFunc(inf, sup float32) elementwise {
	return elementwise{
		name: "hardtanh",
		f:    func(x float32) float32 { return min(max(x, inf), sup) },
		// Gradients are clipped at the saturation boundaries.
		deriv: func(x, _ float32) float32 {
			if x > inf && x < sup {
				return 1
			}
			return 0
		},
		extra: fmt.Sprintf(", inf=%g, sup=%g", inf, sup),
	}
}

// softmax normalizes every row to a probability distribution.
type softmax struct{ log bool }

func (s softmax) kind() string {
	if s.log {
		return "log_softmax"
	}
	return "softmax"
}

func (s softmax) rowWise() bool  { return true }
func (s softmax) params() string { return "" }

func (s softmax) apply(in, out *matrix.Matrix) {
	var row, dst matrix.Matrix
	for b := range in.DimSize(0) {
		in.Select(0, b, &row)
		out.Select(0, b, &dst)
		if row.Size() == 0 {
			continue
		}
		mx := row.Max()
		dst.ApplyFrom(&row, func(x float32) float32 { return math32.Exp(x - mx) })
		sum := dst.Sum()
		if s.log {
			logSum := math32.Log(sum) + mx
			dst.ApplyFrom(&row, func(x float32) float32 { return x - logSum })
		} else {
			dst.Scal(1 / sum)
		}
	}
}

// multiplyDerivatives applies the softmax Jacobian. The log-softmax gradient
// passes through unchanged: it is meant to be paired with the multi-class
// cross-entropy loss, whose gradient exp(y) - target is already taken with
// respect to the log-softmax input.
func (s softmax) multiplyDerivatives(_, out, errIn, errOut *matrix.Matrix) {
	if s.log {
		errOut.Copy(errIn)
		return
	}
	var y, g, dst matrix.Matrix
	for b := range out.DimSize(0) {
		out.Select(0, b, &y)
		errIn.Select(0, b, &g)
		errOut.Select(0, b, &dst)
		dot := y.Dot(&g)
		dst.Combine(&y, &g, func(yv, gv float32) float32 { return yv * (gv - dot) })
	}
}

// ActivationComponent applies an activation function to its input.
type ActivationComponent struct {
	lifecycle
	f activation
}

var _ Component = (*ActivationComponent)(nil)

func newActivation(name string, size int, f activation) *ActivationComponent {
	return &ActivationComponent{lifecycle: newLifecycle("actf", name, "", size, size), f: f}
}

// NewLogistic returns a logistic (sigmoid) activation component.
func NewLogistic(name string) *ActivationComponent { return newActivation(name, 0, logisticFunc) }

// NewTanh returns a hyperbolic tangent activation component.
func NewTanh(name string) *ActivationComponent { return newActivation(name, 0, tanhFunc) }

// NewHardtanh returns an activation clamping to [inf, sup]. inf must be
// strictly below sup.
func NewHardtanh(name string, inf, sup float32) *ActivationComponent {
	if !(inf < sup) {
		fatal.Raise("ann.NewHardtanh", fatal.ErrInvalidArgument, "inf %g not below sup %g", inf, sup)
	}
	return newActivation(name, 0, hardtanhFunc(inf, sup))
}

// NewReLU returns a rectified linear activation component.
func NewReLU(name string) *ActivationComponent { return newActivation(name, 0, reluFunc) }

// NewSoftplus returns a softplus activation component.
func NewSoftplus(name string) *ActivationComponent { return newActivation(name, 0, softplusFunc) }

// NewSoftsign returns a softsign activation component.
func NewSoftsign(name string) *ActivationComponent { return newActivation(name, 0, softsignFunc) }

// NewSin returns a sine activation component.
func NewSin(name string) *ActivationComponent { return newActivation(name, 0, sinFunc) }

// NewLinear returns the identity activation component.
func NewLinear(name string) *ActivationComponent { return newActivation(name, 0, linearFunc) }

// NewSoftmax returns a row-wise softmax component.
func NewSoftmax(name string) *ActivationComponent { return newActivation(name, 0, softmax{}) }

// NewLogSoftmax returns a row-wise log-softmax component.
func NewLogSoftmax(name string) *ActivationComponent {
	return newActivation(name, 0, softmax{log: true})
}

// Kind returns the activation function name.
func (a *ActivationComponent) Kind() string { return a.f.kind() }

// Forward applies the activation. Row-wise functions see the input
// flattened to [bunch, features]; the output keeps the input's dimensions.
func (a *ActivationComponent) Forward(in token.Token, _ bool) token.Token {
	op := "ann." + a.f.kind() + ".Forward"
	m := a.beginForward(op, in)
	checkFeatures(op, m, a.inputSize)

	out := matrix.New(m.Dims(), matrix.WithContext(m.Context()))
	if a.f.rowWise() {
		flatOut := out.Rewrap(out.DimSize(0), out.Size()/max(out.DimSize(0), 1))
		a.f.apply(flatten(m), flatOut)
	} else {
		a.f.apply(m, out)
	}
	a.output = token.NewMatrix(out)
	return a.output
}

// Backprop multiplies the incoming gradient by the activation derivative.
func (a *ActivationComponent) Backprop(errIn token.Token) token.Token {
	op := "ann." + a.f.kind() + ".Backprop"
	g := a.beginBackprop(op, errIn)
	in := token.ToMatrix(op, a.input)
	out := token.ToMatrix(op, a.output)
	if !g.SameDims(out) {
		fatal.Shape(op, out.Dims(), g.Dims())
	}

	errOut := matrix.New(g.Dims(), matrix.WithContext(g.Context()))
	if a.f.rowWise() {
		a.f.multiplyDerivatives(flatten(in), flatten(out), flatten(g), flatten(errOut))
	} else {
		a.f.multiplyDerivatives(in, out, g, errOut)
	}
	a.errorOutput = token.NewMatrix(errOut)
	return a.errorOutput
}

// Reset clears the stored tokens.
func (a *ActivationComponent) Reset(int) { a.reset() }

// Build fixes the sizes; input and output sizes must agree.
func (a *ActivationComponent) Build(inputSize, outputSize int, _ WeightsDict, components ComponentsDict) {
	op := "ann." + a.f.kind() + ".Build"
	if inputSize != 0 && outputSize != 0 && inputSize != outputSize {
		fatal.Usage(op, "input size %d differs from output size %d", inputSize, outputSize)
	}
	size := max(inputSize, outputSize)
	a.resolveSizes(op, size, size)
	a.register(op, a, components)
}

// Clone returns an unbuilt copy with the same name and function.
func (a *ActivationComponent) Clone() Component {
	c := newActivation(a.name, a.inputSize, a.f)
	c.outputSize = a.outputSize
	return c
}

// PersistedForm returns the textual form of the component.
func (a *ActivationComponent) PersistedForm() string {
	return fmt.Sprintf("ann.components.actf.%s{ name='%s', size=%d%s }", a.f.kind(), a.name, a.inputSize, a.f.params())
}
