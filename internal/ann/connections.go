package ann

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"

	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/random"
)

// weightNearZero is the magnitude below which a randomized weight is redrawn.
const weightNearZero = 1e-7

// smallestNormal is the smallest positive normal float32.
const smallestNormal = 0x1p-126

// Connections is a trainable parameter block between I inputs and O outputs.
// It holds the current weights and the weights before the last update, both
// [O, I] row-major, so row j is output unit j's fan-in.
type Connections struct {
	weights     *matrix.Matrix
	prevWeights *matrix.Matrix
	sharedCount int
}

// NewConnections allocates a block for numInputs inputs and numOutputs
// outputs. w and oldw, when non-nil, are copied in and must be [O, I].
func NewConnections(numInputs, numOutputs int, w, oldw *matrix.Matrix, opts ...matrix.Option) *Connections {
	dims := []int{numOutputs, numInputs}
	opts = append(opts, matrix.WithMajorOrder(matrix.RowMajor))
	c := &Connections{
		weights:     matrix.New(dims, opts...),
		prevWeights: matrix.New(dims, opts...),
	}
	if w != nil {
		c.weights.Copy(w)
	}
	if oldw != nil {
		c.prevWeights.Copy(oldw)
	}
	return c
}

// InputSize returns I.
func (c *Connections) InputSize() int { return c.weights.DimSize(1) }

// OutputSize returns O.
func (c *Connections) OutputSize() int { return c.weights.DimSize(0) }

// Size returns O*I.
func (c *Connections) Size() int { return c.weights.Size() }

// Weights returns the current weights matrix.
func (c *Connections) Weights() *matrix.Matrix { return c.weights }

// PrevWeights returns the weights before the last committed update.
func (c *Connections) PrevWeights() *matrix.Matrix { return c.prevWeights }

// SharedCount returns how many components registered against this block.
func (c *Connections) SharedCount() int { return c.sharedCount }

// IncShared records one more sharer.
func (c *Connections) IncShared() { c.sharedCount++ }

// ResetShared clears the sharer count before a network is rebuilt.
func (c *Connections) ResetShared() { c.sharedCount = 0 }

// CheckInputOutputSizes reports whether the block is [output, input].
func (c *Connections) CheckInputOutputSizes(input, output int) bool {
	return c.InputSize() == input && c.OutputSize() == output
}

func checkRandomBounds(op string, low, high float32) {
	if math32.Abs(low) <= weightNearZero || math32.Abs(high) <= weightNearZero {
		fatal.Raise(op, fatal.ErrInvalidArgument,
			"bounds [%g, %g] must both have magnitude > %g", low, high, weightNearZero)
	}
}

// randomWeight draws from [low, high] until the magnitude exceeds weightNearZero.
func randomWeight(rng random.Source, low, span float64) float32 {
	for {
		v := float32(low + span*rng.Float64())
		if math32.Abs(v) > weightNearZero {
			return v
		}
	}
}

func randomizeInto(w, prev *matrix.Matrix, rng random.Source, low, high float32) {
	span := float64(high) - float64(low)
	wit, pit := w.Begin(), prev.Begin()
	for ; wit.Valid(); wit.Next() {
		v := randomWeight(rng, float64(low), span)
		wit.Set(v)
		pit.Set(v)
		pit.Next()
	}
}

// RandomizeWeights fills the weights uniformly in [low, high], never closer
// to zero than 1e-7, and mirrors every value into the previous weights so the
// first momentum term is zero.
func (c *Connections) RandomizeWeights(rng random.Source, low, high float32) {
	checkRandomBounds("ann.Connections.RandomizeWeights", low, high)
	randomizeInto(c.weights, c.prevWeights, rng, low, high)
}

// RandomizeWeightsAtColumn randomizes the fan-in of output unit col only.
func (c *Connections) RandomizeWeightsAtColumn(col int, rng random.Source, low, high float32) {
	const op = "ann.Connections.RandomizeWeightsAtColumn"
	checkRandomBounds(op, low, high)
	if col < 0 || col >= c.OutputSize() {
		fatal.Raise(op, fatal.ErrInvalidArgument, "column %d out of range [0,%d)", col, c.OutputSize())
	}
	if c.InputSize() == 0 {
		return
	}
	randomizeInto(c.weights.Select(0, col, nil), c.prevWeights.Select(0, col, nil), rng, low, high)
}

// requiredSpan returns the smallest external buffer that holds the block at
// firstPos with rows columnStride apart.
func (c *Connections) requiredSpan(op string, firstPos, columnStride int) int {
	if firstPos < 0 {
		fatal.Raise(op, fatal.ErrInvalidArgument, "negative first position %d", firstPos)
	}
	if columnStride < c.InputSize() {
		fatal.Raise(op, fatal.ErrInvalidArgument, "column stride %d < input size %d", columnStride, c.InputSize())
	}
	if c.OutputSize() == 0 {
		return firstPos
	}
	return firstPos + (c.OutputSize()-1)*columnStride + c.InputSize()
}

func checkExternal(op string, data, oldData *matrix.Matrix, required int) {
	for _, m := range []*matrix.Matrix{data, oldData} {
		if m.Size() < required {
			fatal.Raise(op, fatal.ErrShapeMismatch, "buffer of size %d, expected >= %d", m.Size(), required)
		}
	}
	if !data.IsSimple() || !oldData.IsSimple() {
		fatal.Contiguity(op, "weights buffers")
	}
	if data.NumDim() != oldData.NumDim() {
		fatal.Shape(op, data.NumDim(), oldData.NumDim())
	}
}

// LoadWeights copies O rows of I values from the flattened buffers, row j
// starting at firstPos + j*columnStride, into the weights and previous
// weights. A nil oldData loads both from data. It returns the position after
// the block, firstPos + O*columnStride, for chaining loads of several blocks
// packed in one buffer.
func (c *Connections) LoadWeights(data, oldData *matrix.Matrix, firstPos, columnStride int) int {
	const op = "ann.Connections.LoadWeights"
	if oldData == nil {
		oldData = data
	}
	checkExternal(op, data, oldData, c.requiredSpan(op, firstPos, columnStride))

	src, oldSrc := data.RawDataForRead(), oldData.RawDataForRead()
	w, prev := c.weights.RawData(), c.prevWeights.RawData()
	in, pos := c.InputSize(), firstPos
	for j := range c.OutputSize() {
		copy(w[j*in:(j+1)*in], src[pos:pos+in])
		copy(prev[j*in:(j+1)*in], oldSrc[pos:pos+in])
		pos += columnStride
	}
	return pos
}

// CopyWeightsTo is the inverse of LoadWeights. When oldData is nil or shares
// data's storage, only the current weights are written.
func (c *Connections) CopyWeightsTo(data, oldData *matrix.Matrix, firstPos, columnStride int) int {
	const op = "ann.Connections.CopyWeightsTo"
	if oldData == nil {
		oldData = data
	}
	checkExternal(op, data, oldData, c.requiredSpan(op, firstPos, columnStride))

	w, prev := c.weights.RawDataForRead(), c.prevWeights.RawDataForRead()
	dst, oldDst := data.RawData(), oldData.RawData()
	in, pos := c.InputSize(), firstPos
	for j := range c.OutputSize() {
		if !oldData.SharesStorage(data) {
			copy(oldDst[pos:pos+in], prev[j*in:(j+1)*in])
		}
		copy(dst[pos:pos+in], w[j*in:(j+1)*in])
		pos += columnStride
	}
	return pos
}

// Clone deep-copies both matrices. The sharer count starts at zero.
func (c *Connections) Clone() *Connections {
	return &Connections{
		weights:     c.weights.Clone(),
		prevWeights: c.prevWeights.Clone(),
	}
}

// Swap exchanges the current and previous weights in O(1).
func (c *Connections) Swap() {
	c.weights, c.prevWeights = c.prevWeights, c.weights
}

// PruneSubnormalAndCheckNormal checks that every weight is finite. A NaN or
// infinite weight is fatal: the run cannot continue from corrupted weights.
// Finite weights are left unchanged.
func (c *Connections) PruneSubnormalAndCheckNormal() {
	if !c.weights.IsFinite() {
		fatal.NonFinite("ann.Connections", "weights matrix")
	}
}

// FlushSubnormal sets subnormal weights to zero.
func (c *Connections) FlushSubnormal() {
	c.weights.Apply(func(v float32) float32 {
		if v != 0 && math32.Abs(v) < smallestNormal {
			return 0
		}
		return v
	})
}

// PersistedForm returns the textual form of the block.
func (c *Connections) PersistedForm() string {
	return fmt.Sprintf("ann.connections{ input=%d, output=%d, w=matrix.fromString[[%s]], oldw=matrix.fromString[[%s]] }",
		c.InputSize(), c.OutputSize(),
		matrix.WriteString(c.weights, matrix.Binary),
		matrix.WriteString(c.prevWeights, matrix.Binary))
}

// ParseConnections reconstructs a block from its PersistedForm.
func ParseConnections(s string, opts ...matrix.Option) (*Connections, error) {
	var in, out int
	if _, err := fmt.Sscanf(s, "ann.connections{ input=%d, output=%d,", &in, &out); err != nil {
		return nil, fmt.Errorf("parse connections header: %w", err)
	}
	w, err := embeddedMatrix(s, "w=", opts)
	if err != nil {
		return nil, err
	}
	oldw, err := embeddedMatrix(s, "oldw=", opts)
	if err != nil {
		return nil, err
	}
	if !w.SameDims(oldw) || w.NumDim() != 2 || w.DimSize(0) != out || w.DimSize(1) != in {
		return nil, fmt.Errorf("parse connections: matrices %v/%v do not match input=%d output=%d",
			w.Dims(), oldw.Dims(), in, out)
	}
	return NewConnections(in, out, w, oldw, opts...), nil
}

func embeddedMatrix(s, key string, opts []matrix.Option) (*matrix.Matrix, error) {
	const opening, closing = "matrix.fromString[[", "]]"
	_, rest, ok := strings.Cut(s, " "+key+opening)
	if !ok {
		return nil, fmt.Errorf("parse connections: missing %s", strings.TrimSuffix(key, "="))
	}
	body, _, ok := strings.Cut(rest, closing)
	if !ok {
		return nil, fmt.Errorf("parse connections: unterminated %s", strings.TrimSuffix(key, "="))
	}
	m, err := matrix.ReadString(body, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse connections %s: %w", strings.TrimSuffix(key, "="), err)
	}
	return m, nil
}
