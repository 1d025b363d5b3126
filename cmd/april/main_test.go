package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/april/internal/ann"
	"github.com/born-ml/april/internal/config"
	"github.com/born-ml/april/internal/serialization"
)

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestUsage(t *testing.T) {
	code, out, _ := runCLI(t)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "inspect FILE.aprw")
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, version)
	assert.Contains(t, out, "weights format v1")
}

func TestUnknownCommand(t *testing.T) {
	code, _, errOut := runCLI(t, "train")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown command")
}

func TestDevicesWithConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "april.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device:\n  accelerator: emulator\n  use_by_default: true\n"), 0o600))
	code, out, _ := runCLI(t, "-config", path, "devices")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "emulator (default true)")
	assert.Contains(t, out, "host vector path")
}

func TestBadConfig(t *testing.T) {
	code, _, errOut := runCLI(t, "-config", filepath.Join(t.TempDir(), "missing.yaml"), "devices")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "missing.yaml")
}

func TestGeometry(t *testing.T) {
	code, out, _ := runCLI(t, "geometry", "1000")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "reduction: threads 32 thread_size 32 blocks 1")

	code, out, _ = runCLI(t, "geometry", "3", "5")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "block 3x5 grid 1x1")

	code, _, _ = runCLI(t, "geometry", "-4")
	assert.Equal(t, 1, code)
}

func TestInspect(t *testing.T) {
	weights := ann.WeightsDict{}
	weights.GetOrCreate("w1", 3, 2)
	weights.GetOrCreate("b1", 1, 2)
	path := filepath.Join(t.TempDir(), "net.aprw")
	require.NoError(t, serialization.WriteFile(path, weights, map[string]string{"epoch": "3"}))

	code, out, _ := runCLI(t, "inspect", path)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "format v1")
	assert.Regexp(t, `w1\s+3\s+2\s+6`, out)
	assert.Regexp(t, `b1\s+1\s+2\s+2`, out)
	assert.Regexp(t, `meta epoch\s+3`, out)

	code, _, _ = runCLI(t, "inspect")
	assert.Equal(t, 1, code)
}
