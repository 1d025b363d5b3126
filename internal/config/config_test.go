package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/april/internal/device"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AcceleratorNone, cfg.Device.Accelerator)
	assert.Equal(t, device.DefaultCapabilities(), cfg.Device.Capabilities)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
device:
  accelerator: emulator
  use_by_default: true
  capabilities:
    max_threads_per_block: 512
parallel:
  workers: 3
log:
  level: debug
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, AcceleratorEmulator, cfg.Device.Accelerator)
	assert.True(t, cfg.Device.UseByDefault)
	assert.Equal(t, 512, cfg.Device.Capabilities.MaxThreadsPerBlock)
	// Keys absent from the document keep their defaults.
	assert.Equal(t, device.DefaultCapabilities().MaxReduceThreadSize, cfg.Device.Capabilities.MaxReduceThreadSize)
	assert.Equal(t, 3, cfg.Parallel.Workers)
	assert.Equal(t, Default().Parallel.MinChunkSize, cfg.Parallel.MinChunkSize)
	assert.Equal(t, 3, cfg.ParallelConfig().NumWorkers)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "device:\n  gpu: true\n"},
		{"unknown accelerator", "device:\n  accelerator: cuda\n"},
		{"bad capabilities", "device:\n  capabilities:\n    max_threads_per_block: 0\n"},
		{"negative workers", "parallel:\n  workers: -1\n"},
		{"zero chunk", "parallel:\n  min_chunk_size: 0\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad format", "log:\n  format: xml\n"},
		{"malformed", "device: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadAndFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "april.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	t.Setenv(EnvVar, path)
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	t.Setenv(EnvVar, "")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"
	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestNewContextEmulator(t *testing.T) {
	cfg := Default()
	cfg.Device.Accelerator = AcceleratorEmulator
	cfg.Device.UseByDefault = true
	ctx, err := cfg.NewContext(nil)
	require.NoError(t, err)
	assert.Equal(t, "emulator", ctx.AcceleratorName())
	assert.True(t, ctx.DefaultUseAccelerator())
}

func TestNewContextHostOnly(t *testing.T) {
	cfg := Default()
	cfg.Device.Capabilities.MaxThreadsPerBlock = 128
	ctx, err := cfg.NewContext(nil)
	require.NoError(t, err)
	assert.Nil(t, ctx.Accelerator())
	assert.Equal(t, 128, ctx.Capabilities().MaxThreadsPerBlock)
}

func TestNewContextWebGPUFallsBack(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("adapter availability depends on the host")
	}
	var buf bytes.Buffer
	cfg := Default()
	cfg.Device.Accelerator = AcceleratorWebGPU
	ctx, err := cfg.NewContext(cfg.Logger(&buf))
	require.NoError(t, err)
	assert.Equal(t, "none", ctx.AcceleratorName())
	assert.Contains(t, buf.String(), "accelerator unavailable")
}

func TestNewContextRejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "xml"
	_, err := cfg.NewContext(nil)
	assert.Error(t, err)
}
