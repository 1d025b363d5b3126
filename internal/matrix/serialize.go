package matrix

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Encoding selects the value encoding of the text format.
type Encoding int

// Text encodings.
const (
	Ascii  Encoding = iota // shortest decimal that round-trips float32
	Binary                 // 8 hex digits of the IEEE-754 bits
)

// String returns the header keyword of the encoding.
func (e Encoding) String() string {
	if e == Binary {
		return "binary"
	}
	return "ascii"
}

// valuesPerLine is the number of values written on each text line.
const valuesPerLine = 10

// ErrMalformed is returned when decoding input that is not a serialized matrix.
var ErrMalformed = errors.New("malformed matrix data")

// WriteString encodes m in the text format:
//
//	<ndim>
//	<dim_0> ... <dim_n-1>
//	<ascii|binary> <row_major|col_major>
//	<values in iteration order>
func WriteString(m *Matrix, enc Encoding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d\n", len(m.dims))
	for i, d := range m.dims {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(d))
	}
	fmt.Fprintf(&sb, "\n%s %s\n", enc, m.order)

	for i, v := range m.Values() {
		if i > 0 {
			if i%valuesPerLine == 0 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}
		if enc == Binary {
			fmt.Fprintf(&sb, "%08x", math.Float32bits(v))
		} else {
			sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

// ReadString decodes a matrix written by WriteString. opts configure the
// returned matrix; its major order is taken from the input.
func ReadString(s string, opts ...Option) (*Matrix, error) {
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), len(s)+1)
	sc.Split(bufio.ScanWords)
	// Every token takes at least one byte plus a separator.
	maxTokens := len(s)/2 + 1
	next := func(what string) (string, error) {
		if !sc.Scan() {
			return "", fmt.Errorf("%w: missing %s", ErrMalformed, what)
		}
		return sc.Text(), nil
	}

	tok, err := next("rank")
	if err != nil {
		return nil, err
	}
	ndim, err := strconv.Atoi(tok)
	if err != nil || ndim < 1 || ndim > maxTokens {
		return nil, fmt.Errorf("%w: bad rank %q", ErrMalformed, tok)
	}
	dims := make([]int, ndim)
	for i := range dims {
		if tok, err = next("dimension"); err != nil {
			return nil, err
		}
		if dims[i], err = strconv.Atoi(tok); err != nil || dims[i] < 0 {
			return nil, fmt.Errorf("%w: bad dimension %q", ErrMalformed, tok)
		}
	}

	if tok, err = next("encoding"); err != nil {
		return nil, err
	}
	var enc Encoding
	switch tok {
	case "ascii":
		enc = Ascii
	case "binary":
		enc = Binary
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrMalformed, tok)
	}
	if tok, err = next("major order"); err != nil {
		return nil, err
	}
	var order MajorOrder
	switch tok {
	case "row_major":
		order = RowMajor
	case "col_major":
		order = ColMajor
	default:
		return nil, fmt.Errorf("%w: unknown major order %q", ErrMalformed, tok)
	}

	size := 1
	for _, d := range dims {
		if d != 0 && size > (1<<40)/d {
			return nil, fmt.Errorf("%w: dimensions %v too large", ErrMalformed, dims)
		}
		size *= d
	}
	if size > maxTokens {
		return nil, fmt.Errorf("%w: %d values declared in %d bytes", ErrMalformed, size, len(s))
	}
	data := make([]float32, size)
	for i := range data {
		if tok, err = next("value"); err != nil {
			return nil, fmt.Errorf("%w (%d of %d read)", err, i, size)
		}
		if data[i], err = parseValue(tok, enc); err != nil {
			return nil, err
		}
	}
	if sc.Scan() {
		return nil, fmt.Errorf("%w: trailing data %q", ErrMalformed, sc.Text())
	}
	opts = append(opts, WithMajorOrder(order))
	return FromSlice(data, dims, opts...), nil
}

func parseValue(tok string, enc Encoding) (float32, error) {
	if enc == Binary {
		bits, err := strconv.ParseUint(tok, 16, 32)
		if err != nil || len(tok) != 8 {
			return 0, fmt.Errorf("%w: bad binary value %q", ErrMalformed, tok)
		}
		return math.Float32frombits(uint32(bits)), nil
	}
	v, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad value %q", ErrMalformed, tok)
	}
	return float32(v), nil
}

var binaryMagic = [4]byte{'A', 'P', 'R', 'M'}

// MarshalBinary encodes the matrix as: magic "APRM", uint32 rank, uint32
// major order, int64 dimensions, then the float32 values in iteration order,
// all little-endian.
func (m *Matrix) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(12 + 8*len(m.dims) + 4*m.size)
	buf.Write(binaryMagic[:])
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(m.dims)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(m.order))
	for _, d := range m.dims {
		_ = binary.Write(&buf, binary.LittleEndian, int64(d))
	}
	var word [4]byte
	for _, v := range m.Values() {
		binary.LittleEndian.PutUint32(word[:], math.Float32bits(v))
		buf.Write(word[:])
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces m with the decoded matrix. m keeps its dispatch
// context, or binds to device.Default() if it has none.
func (m *Matrix) UnmarshalBinary(data []byte) error {
	if len(data) < 12 || !bytes.Equal(data[:4], binaryMagic[:]) {
		return fmt.Errorf("%w: bad binary header", ErrMalformed)
	}
	ndim := int(binary.LittleEndian.Uint32(data[4:8]))
	order := MajorOrder(binary.LittleEndian.Uint32(data[8:12]))
	if ndim < 1 || order > ColMajor || len(data) < 12+8*ndim {
		return fmt.Errorf("%w: bad rank %d or order %d", ErrMalformed, ndim, order)
	}
	dims := make([]int, ndim)
	p := 12
	size := 1
	for i := range dims {
		d := int64(binary.LittleEndian.Uint64(data[p:]))
		if d < 0 || (d != 0 && int64(size) > (1<<40)/d) {
			return fmt.Errorf("%w: bad dimension %d", ErrMalformed, d)
		}
		dims[i] = int(d)
		size *= dims[i]
		p += 8
	}
	if len(data)-p != 4*size {
		return fmt.Errorf("%w: expected %d value bytes, got %d", ErrMalformed, 4*size, len(data)-p)
	}
	values := make([]float32, size)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[p:]))
		p += 4
	}

	opts := []Option{WithMajorOrder(order)}
	if m.ctx != nil {
		opts = append(opts, WithContext(m.ctx))
	}
	*m = *FromSlice(values, dims, opts...)
	return nil
}
