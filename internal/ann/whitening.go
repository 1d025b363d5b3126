package ann

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/token"
)

// Whitening projects the input onto a precomputed eigenbasis U with
// eigenvalues S, scaling each component by 1/sqrt(S+epsilon). PCA whitening
// keeps the rotated, scaled representation of size takeN; ZCA whitening
// rotates it back to the input space.
//
// The basis matrices are immutable after construction and shared by clones.
type Whitening struct {
	lifecycle
	zca     bool
	u, s    *matrix.Matrix
	epsilon float32
	weights WeightsDict
	encoder *DotProduct
	decoder *DotProduct
}

var _ Component = (*Whitening)(nil)

const (
	encoderWeights = "U_S_epsilon"
	decoderWeights = "U"
)

// NewPCAWhitening creates a PCA whitening component from U [I, K] and S [K].
// takeN 0 keeps all K components.
func NewPCAWhitening(name string, u, s *matrix.Matrix, epsilon float32, takeN int) *Whitening {
	return newWhitening("pca_whitening", name, u, s, epsilon, takeN, false)
}

// NewZCAWhitening creates a ZCA whitening component, whose output has the
// input's size.
func NewZCAWhitening(name string, u, s *matrix.Matrix, epsilon float32, takeN int) *Whitening {
	return newWhitening("zca_whitening", name, u, s, epsilon, takeN, true)
}

func newWhitening(kind, name string, u, s *matrix.Matrix, epsilon float32, takeN int, zca bool) *Whitening {
	op := "ann." + kind
	if u.NumDim() != 2 {
		fatal.Raise(op, fatal.ErrShapeMismatch, "U must be 2-D, got dims %v", u.Dims())
	}
	if s.NumDim() != 1 || s.Size() != u.DimSize(1) {
		fatal.Raise(op, fatal.ErrShapeMismatch, "S must be 1-D of size %d, got dims %v", u.DimSize(1), s.Dims())
	}
	if takeN < 0 || takeN > s.Size() {
		fatal.Raise(op, fatal.ErrInvalidArgument, "taking %d components of %d", takeN, s.Size())
	}
	if takeN == 0 {
		takeN = s.Size()
	}
	inputs := u.DimSize(0)
	u = u.Slice([]int{0, 0}, []int{inputs, takeN})
	s = s.Slice([]int{0}, []int{takeN})

	scaled := u.Clone()
	var col matrix.Matrix
	for i := range takeN {
		scaled.Select(1, i, &col).Scal(1 / math32.Sqrt(s.At(i)+epsilon))
	}
	return assembleWhitening(kind, name, u, s, scaled, epsilon, zca)
}

func assembleWhitening(kind, name string, u, s, scaled *matrix.Matrix, epsilon float32, zca bool) *Whitening {
	inputs, takeN := u.DimSize(0), u.DimSize(1)
	outputs := takeN
	if zca {
		outputs = inputs
	}
	w := &Whitening{
		lifecycle: newLifecycle(kind, name, "", inputs, outputs),
		zca:       zca,
		u:         u,
		s:         s,
		epsilon:   epsilon,
		weights:   WeightsDict{encoderWeights: sharedConnections(scaled)},
	}
	w.encoder = NewDotProduct(w.name+"::encoder", encoderWeights, inputs, takeN, true)
	w.encoder.Build(0, 0, w.weights, nil)
	if zca {
		w.weights[decoderWeights] = sharedConnections(u)
		w.decoder = NewDotProduct(w.name+"::decoder", decoderWeights, takeN, inputs, false)
		w.decoder.Build(0, 0, w.weights, nil)
	}
	return w
}

// sharedConnections wraps an immutable matrix as both current and previous
// weights of a block.
func sharedConnections(m *matrix.Matrix) *Connections {
	return &Connections{weights: m, prevWeights: m}
}

// U returns the basis actually used, [I, takeN].
func (w *Whitening) U() *matrix.Matrix { return w.u }

// S returns the eigenvalues actually used, [takeN].
func (w *Whitening) S() *matrix.Matrix { return w.s }

func (w *Whitening) kind() string {
	if w.zca {
		return "zca_whitening"
	}
	return "pca_whitening"
}

// Forward whitens the input.
func (w *Whitening) Forward(in token.Token, duringTraining bool) token.Token {
	op := "ann." + w.kind() + ".Forward"
	w.beginForward(op, in)
	out := w.encoder.Forward(in, duringTraining)
	if w.zca {
		out = w.decoder.Forward(out, duringTraining)
	}
	w.output = out
	return out
}

// Backprop propagates the gradient through the linear transform.
func (w *Whitening) Backprop(errIn token.Token) token.Token {
	op := "ann." + w.kind() + ".Backprop"
	w.beginBackprop(op, errIn)
	g := errIn
	if w.zca {
		g = w.decoder.Backprop(g)
	}
	w.errorOutput = w.encoder.Backprop(g)
	return w.errorOutput
}

// Reset clears the stored tokens.
func (w *Whitening) Reset(it int) {
	w.encoder.Reset(it)
	if w.decoder != nil {
		w.decoder.Reset(it)
	}
	w.reset()
}

// Build checks the sizes against the basis.
func (w *Whitening) Build(inputSize, outputSize int, _ WeightsDict, components ComponentsDict) {
	op := "ann." + w.kind() + ".Build"
	w.resolveSizes(op, inputSize, outputSize)
	w.register(op, w, components)
}

// Clone returns an unbuilt copy sharing the basis matrices.
func (w *Whitening) Clone() Component {
	return assembleWhitening(w.kind(), w.name, w.u, w.s,
		w.weights[encoderWeights].Weights(), w.epsilon, w.zca)
}

// PersistedForm returns the textual form of the component.
func (w *Whitening) PersistedForm() string {
	return fmt.Sprintf("ann.components.%s{ name='%s', U=matrix.fromString[[%s]], S=matrix.fromString[[%s]], epsilon=%g, takeN=0 }",
		w.kind(), w.name,
		matrix.WriteString(w.u, matrix.Binary),
		matrix.WriteString(w.s, matrix.Binary),
		w.epsilon)
}
