package matrix

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/april/internal/random"
)

func TestWriteStringFormat(t *testing.T) {
	m := FromSlice([]float32{1, 2.5, -3, 0.1}, []int{2, 2})
	assert.Equal(t, "2\n2 2\nascii row_major\n1 2.5 -3 0.1\n", WriteString(m, Ascii))

	b := FromSlice([]float32{1}, []int{1}, WithMajorOrder(ColMajor))
	assert.Equal(t, "1\n1\nbinary col_major\n3f800000\n", WriteString(b, Binary))
}

func TestStringRoundTrip(t *testing.T) {
	rng := random.New(3)
	m := New([]int{3, 4, 5}, WithMajorOrder(ColMajor)).Uniform(-10, 10, rng)
	m.Set(math32.SmallestNonzeroFloat32, 0, 0, 0)
	m.Set(math32.Inf(-1), 1, 1, 1)

	for _, enc := range []Encoding{Ascii, Binary} {
		got, err := ReadString(WriteString(m, enc))
		require.NoError(t, err)
		assert.Equal(t, m.Dims(), got.Dims())
		assert.Equal(t, ColMajor, got.MajorOrder())
		assert.Equal(t, m.Values(), got.Values(), "encoding %v", enc)
	}

	// A strided view serializes its logical contents.
	view := m.Select(2, 3, nil)
	got, err := ReadString(WriteString(view, Binary))
	require.NoError(t, err)
	assert.Equal(t, view.Values(), got.Values())
}

func TestReadStringErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"0\n",
		"2\n2\n",
		"1\n2\nhex row_major\n1 2\n",
		"1\n2\nascii diagonal\n1 2\n",
		"1\n2\nascii row_major\n1\n",
		"1\n2\nascii row_major\n1 x\n",
		"1\n1\nbinary row_major\n3f80\n",
		"1\n1\nascii row_major\n1 2\n",
		"2\n1048576 65536\nascii row_major\n1\n",
		"1\n1099511627776\nbinary row_major\n3f800000\n",
		"99999999999\n1\n",
	} {
		_, err := ReadString(in)
		assert.True(t, errors.Is(err, ErrMalformed), "input %q: %v", in, err)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	m := New([]int{2, 0, 3})
	data, err := m.MarshalBinary()
	require.NoError(t, err)
	var got Matrix
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, []int{2, 0, 3}, got.Dims())

	m = New([]int{4, 3}, WithMajorOrder(ColMajor)).Linear(-1, 0.125)
	data, err = m.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, got.UnmarshalBinary(data))
	assert.True(t, got.Equals(m, 0))
	assert.Equal(t, ColMajor, got.MajorOrder())

	assert.ErrorIs(t, got.UnmarshalBinary(data[:len(data)-1]), ErrMalformed)
	assert.ErrorIs(t, got.UnmarshalBinary([]byte("nope")), ErrMalformed)
}
