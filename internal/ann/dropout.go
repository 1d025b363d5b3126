package ann

import (
	"fmt"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/random"
	"github.com/born-ml/april/internal/token"
)

// Dropout masks each unit with probability prob during training, replacing
// it with value. Kept units are scaled by 1/(1-prob) so the expected
// activation matches inference, where the component is the identity.
type Dropout struct {
	lifecycle
	rng   random.Source
	value float32
	prob  float32
	mask  *matrix.Matrix // 1/(1-prob) for kept units, 0 for masked; nil outside training
}

var _ Component = (*Dropout)(nil)

// NewDropout creates a dropout component. size 0 is unconstrained.
func NewDropout(name string, rng random.Source, value, prob float32, size int) *Dropout {
	if !(prob >= 0 && prob <= 1) {
		fatal.Raise("ann.Dropout", fatal.ErrInvalidArgument, "probability %g outside [0,1]", prob)
	}
	return &Dropout{
		lifecycle: newLifecycle("dropout", name, "", size, size),
		rng:       rng,
		value:     value,
		prob:      prob,
	}
}

// Forward masks the input when training.
func (d *Dropout) Forward(in token.Token, duringTraining bool) token.Token {
	const op = "ann.Dropout.Forward"
	m := d.beginForward(op, in)
	checkFeatures(op, m, d.inputSize)
	if !duringTraining || d.prob == 0 {
		d.mask = nil
		d.output = in
		return d.output
	}

	scale := float32(0)
	if d.prob < 1 {
		scale = 1 / (1 - d.prob)
	}
	d.mask = matrix.New(m.Dims(), matrix.WithContext(m.Context()))
	for it := d.mask.Begin(); it.Valid(); it.Next() {
		if float32(d.rng.Float64()) >= d.prob {
			it.Set(scale)
		}
	}
	value := d.value
	out := matrix.New(m.Dims(), matrix.WithContext(m.Context()))
	out.Combine(m, d.mask, func(x, k float32) float32 {
		if k == 0 {
			return value
		}
		return x * k
	})
	d.output = token.NewMatrix(out)
	return d.output
}

// Backprop routes the gradient through the kept units only.
func (d *Dropout) Backprop(errIn token.Token) token.Token {
	const op = "ann.Dropout.Backprop"
	g := d.beginBackprop(op, errIn)
	if d.mask == nil {
		d.errorOutput = errIn
		return d.errorOutput
	}
	if !g.SameDims(d.mask) {
		fatal.Shape(op, d.mask.Dims(), g.Dims())
	}
	d.errorOutput = token.NewMatrix(g.Clone().CMul(d.mask))
	return d.errorOutput
}

// Reset drops the mask and the stored tokens.
func (d *Dropout) Reset(int) {
	d.mask = nil
	d.reset()
}

// Build fixes the size; input and output sizes must agree.
func (d *Dropout) Build(inputSize, outputSize int, _ WeightsDict, components ComponentsDict) {
	const op = "ann.Dropout.Build"
	if inputSize != 0 && outputSize != 0 && inputSize != outputSize {
		fatal.Usage(op, "input size %d differs from output size %d", inputSize, outputSize)
	}
	size := max(inputSize, outputSize)
	d.resolveSizes(op, size, size)
	d.register(op, d, components)
}

// Clone returns an unbuilt copy. A *random.Generator source is cloned so the
// copy draws the same mask sequence independently; other sources are shared.
func (d *Dropout) Clone() Component {
	rng := d.rng
	if g, ok := rng.(*random.Generator); ok {
		rng = g.Clone()
	}
	return NewDropout(d.name, rng, d.value, d.prob, d.inputSize)
}

// PersistedForm returns the textual form of the component.
func (d *Dropout) PersistedForm() string {
	return fmt.Sprintf("ann.components.dropout{ name='%s', size=%d, prob=%g, value=%g }",
		d.name, d.inputSize, d.prob, d.value)
}
