package ann

import (
	"fmt"

	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/token"
)

// DotProduct is a fully connected linear layer. Its Connections block is
// [output, input] and the output is input·W^T. With transpose set the block
// is registered as [input, output] and the output is input·W, which lets a
// decoder share an encoder's weights.
type DotProduct struct {
	lifecycle
	transpose bool
	conn      *Connections
}

var _ Component = (*DotProduct)(nil)
var _ GradientComputer = (*DotProduct)(nil)

// NewDotProduct creates a dot-product component. An empty weightsName uses
// the component name.
func NewDotProduct(name, weightsName string, inputSize, outputSize int, transpose bool) *DotProduct {
	l := newLifecycle("dot_product", name, weightsName, inputSize, outputSize)
	if l.weightsName == "" {
		l.weightsName = "w-" + l.name
	}
	return &DotProduct{lifecycle: l, transpose: transpose}
}

// Connections returns the weights block, or nil before Build.
func (d *DotProduct) Connections() *Connections { return d.conn }

// Transposed reports whether the block is used transposed.
func (d *DotProduct) Transposed() bool { return d.transpose }

func (d *DotProduct) weightsTranspose() device.Transpose {
	if d.transpose {
		return device.NoTrans
	}
	return device.Trans
}

// Forward computes input·op(W).
func (d *DotProduct) Forward(in token.Token, _ bool) token.Token {
	const op = "ann.DotProduct.Forward"
	m := d.beginForward(op, in)
	if d.conn == nil {
		fatal.Usage(op, "component %q has no weights", d.name)
	}
	checkFeatures(op, m, d.inputSize)
	x := flatten(m)
	out := matrix.New([]int{x.DimSize(0), d.outputSize}, matrix.WithContext(m.Context()))
	out.Gemm(device.NoTrans, d.weightsTranspose(), 1, x, d.conn.Weights(), 0)
	d.output = token.NewMatrix(out)
	return d.output
}

// Backprop computes errIn·op(W)^T.
func (d *DotProduct) Backprop(errIn token.Token) token.Token {
	const op = "ann.DotProduct.Backprop"
	g := d.beginBackprop(op, errIn)
	checkFeatures(op, g, d.outputSize)
	g = flatten(g)
	errOut := matrix.New([]int{g.DimSize(0), d.inputSize}, matrix.WithContext(g.Context()))
	errOut.Gemm(device.NoTrans, d.weightsTranspose().Flip(), 1, g, d.conn.Weights(), 0)
	in := token.ToMatrix(op, d.input)
	if in.NumDim() != 2 {
		errOut = errOut.Rewrap(in.Dims()...)
	}
	d.errorOutput = token.NewMatrix(errOut)
	return d.errorOutput
}

// ComputeGradients adds errIn^T·input (input^T·errIn when transposed).
func (d *DotProduct) ComputeGradients(grads map[string]*matrix.Matrix) {
	const op = "ann.DotProduct.ComputeGradients"
	if d.phase != backpropagated {
		fatal.Usage(op, "gradients of %q requested before backprop", d.name)
	}
	w := d.conn.Weights()
	grad := gradientFor(op, grads, d.weightsName, w)
	x := flatten(token.ToMatrix(op, d.input))
	g := flatten(token.ToMatrix(op, d.errorInput))
	if d.transpose {
		grad.Gemm(device.Trans, device.NoTrans, 1, x, g, 1)
	} else {
		grad.Gemm(device.Trans, device.NoTrans, 1, g, x, 1)
	}
}

// gradientFor returns the accumulator for name, allocating it like w.
func gradientFor(op string, grads map[string]*matrix.Matrix, name string, w *matrix.Matrix) *matrix.Matrix {
	grad, ok := grads[name]
	if !ok {
		grad = matrix.New(w.Dims(), matrix.WithContext(w.Context()))
		grads[name] = grad
	}
	if !grad.SameDims(w) {
		fatal.Shape(op, w.Dims(), grad.Dims())
	}
	return grad
}

// Reset clears the stored tokens.
func (d *DotProduct) Reset(int) { d.reset() }

// Build fixes the sizes and looks up or creates the weights block.
func (d *DotProduct) Build(inputSize, outputSize int, weights WeightsDict, components ComponentsDict) {
	const op = "ann.DotProduct.Build"
	d.resolveSizes(op, inputSize, outputSize)
	if d.inputSize == 0 || d.outputSize == 0 {
		fatal.Usage(op, "component %q needs input and output sizes, got %d and %d", d.name, d.inputSize, d.outputSize)
	}
	if weights == nil {
		fatal.Usage(op, "component %q built without a weights dictionary", d.name)
	}
	in, out := d.inputSize, d.outputSize
	if d.transpose {
		in, out = out, in
	}
	if d.conn == nil {
		d.conn = weights.GetOrCreate(d.weightsName, in, out)
	} else if !d.conn.CheckInputOutputSizes(in, out) {
		fatal.Usage(op, "component %q rebuilt with sizes %dx%d", d.name, out, in)
	}
	d.register(op, d, components)
}

// Clone returns an unbuilt copy with the same names and sizes.
func (d *DotProduct) Clone() Component {
	return NewDotProduct(d.name, d.weightsName, d.inputSize, d.outputSize, d.transpose)
}

// PersistedForm returns the textual form of the component.
func (d *DotProduct) PersistedForm() string {
	return fmt.Sprintf("ann.components.dot_product{ name='%s', weights='%s', input=%d, output=%d, transpose=%t }",
		d.name, d.weightsName, d.inputSize, d.outputSize, d.transpose)
}

// Bias adds a learned vector to every pattern. Its Connections block is [size, 1].
type Bias struct {
	lifecycle
	conn *Connections
}

var _ Component = (*Bias)(nil)
var _ GradientComputer = (*Bias)(nil)

// NewBias creates a bias component. An empty weightsName uses the component name.
func NewBias(name, weightsName string, size int) *Bias {
	l := newLifecycle("bias", name, weightsName, size, size)
	if l.weightsName == "" {
		l.weightsName = "b-" + l.name
	}
	return &Bias{lifecycle: l}
}

// Connections returns the bias block, or nil before Build.
func (b *Bias) Connections() *Connections { return b.conn }

func (b *Bias) vector() *matrix.Matrix {
	return b.conn.Weights().Rewrap(b.outputSize)
}

// Forward adds the bias to every row.
func (b *Bias) Forward(in token.Token, _ bool) token.Token {
	const op = "ann.Bias.Forward"
	m := b.beginForward(op, in)
	if b.conn == nil {
		fatal.Usage(op, "component %q has no weights", b.name)
	}
	checkFeatures(op, m, b.inputSize)
	out := flatten(m).Clone()
	bias := b.vector()
	var row matrix.Matrix
	for i := range out.DimSize(0) {
		out.Select(0, i, &row).Axpy(1, bias)
	}
	if m.NumDim() != 2 {
		out = out.Rewrap(m.Dims()...)
	}
	b.output = token.NewMatrix(out)
	return b.output
}

// Backprop passes the gradient through unchanged.
func (b *Bias) Backprop(errIn token.Token) token.Token {
	const op = "ann.Bias.Backprop"
	g := b.beginBackprop(op, errIn)
	checkFeatures(op, g, b.outputSize)
	b.errorOutput = errIn
	return b.errorOutput
}

// ComputeGradients adds the column sums of the incoming gradient.
func (b *Bias) ComputeGradients(grads map[string]*matrix.Matrix) {
	const op = "ann.Bias.ComputeGradients"
	if b.phase != backpropagated {
		fatal.Usage(op, "gradients of %q requested before backprop", b.name)
	}
	grad := gradientFor(op, grads, b.weightsName, b.conn.Weights()).Rewrap(b.outputSize)
	g := flatten(token.ToMatrix(op, b.errorInput))
	var row matrix.Matrix
	for i := range g.DimSize(0) {
		grad.Axpy(1, g.Select(0, i, &row))
	}
}

// Reset clears the stored tokens.
func (b *Bias) Reset(int) { b.reset() }

// Build fixes the size and looks up or creates the bias block.
func (b *Bias) Build(inputSize, outputSize int, weights WeightsDict, components ComponentsDict) {
	const op = "ann.Bias.Build"
	if inputSize != 0 && outputSize != 0 && inputSize != outputSize {
		fatal.Usage(op, "input size %d differs from output size %d", inputSize, outputSize)
	}
	size := max(inputSize, outputSize)
	b.resolveSizes(op, size, size)
	if b.outputSize == 0 {
		fatal.Usage(op, "component %q needs a size", b.name)
	}
	if weights == nil {
		fatal.Usage(op, "component %q built without a weights dictionary", b.name)
	}
	if b.conn == nil {
		b.conn = weights.GetOrCreate(b.weightsName, 1, b.outputSize)
	}
	b.register(op, b, components)
}

// Clone returns an unbuilt copy with the same names and size.
func (b *Bias) Clone() Component {
	return NewBias(b.name, b.weightsName, b.outputSize)
}

// PersistedForm returns the textual form of the component.
func (b *Bias) PersistedForm() string {
	return fmt.Sprintf("ann.components.bias{ name='%s', weights='%s', size=%d }", b.name, b.weightsName, b.outputSize)
}
