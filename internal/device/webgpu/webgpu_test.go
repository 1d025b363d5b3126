package webgpu

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/april/internal/device"
)

func TestKernelsAreGridStrided(t *testing.T) {
	for name, k := range kernels {
		assert.Equal(t, name, k.name)
		assert.Contains(t, k.source, "@workgroup_size(256)", name)
		assert.Contains(t, k.source, "i = i + stride", name)
		assert.Equal(t, k.binary, strings.Contains(k.source, "var<storage, read> x"), name)
	}
	assert.Contains(t, kernels["axpy"].source, "y[k] + params.scalar * x[j]")
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities()
	require.NoError(t, caps.Validate())
	assert.Equal(t, workgroupSize, caps.MaxThreadsPerBlock)
}

func TestWorkgroups(t *testing.T) {
	assert.Equal(t, 1, workgroups(1))
	// Each thread of a large array walks many elements.
	n := 1 << 24
	assert.LessOrEqual(t, workgroups(n), Capabilities().MaxReduceNumThreads)
	assert.GreaterOrEqual(t, workgroups(n), 1)
}

func TestNewWithoutAdapter(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("adapter availability depends on the host")
	}
	acc, err := New()
	assert.Nil(t, acc)
	assert.ErrorIs(t, err, device.ErrUnavailable)
	assert.False(t, IsAvailable())
}
