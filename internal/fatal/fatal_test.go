package fatal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaiseCarriesKind(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*Error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrShapeMismatch)
		assert.Equal(t, "matrix.Axpy: shape mismatch: expected [2 3], got [3 2]", err.Error())
	}()
	Shape("matrix.Axpy", []int{2, 3}, []int{3, 2})
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		NonFinite("ann.Connections", "weights matrix")
		return nil
	}
	err := run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonFinite))
}

func TestRecoverRepanicsForeignValues(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		var err error
		defer Recover(&err)
		panic("boom")
	})
}
