package serialization

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/april/internal/ann"
	"github.com/born-ml/april/internal/random"
)

func sampleWeights(t *testing.T) ann.WeightsDict {
	t.Helper()
	weights := ann.WeightsDict{}
	rng := random.New(21)
	weights.GetOrCreate("w1", 3, 2).RandomizeWeights(rng, -1, 1)
	weights.GetOrCreate("b1", 1, 2).RandomizeWeights(rng, -1, 1)
	w2 := weights.GetOrCreate("w2", 2, 4)
	w2.RandomizeWeights(rng, -0.1, 0.1)
	w2.PrevWeights().Fill(0.5)
	return weights
}

func writeSample(t *testing.T) (string, ann.WeightsDict) {
	t.Helper()
	weights := sampleWeights(t)
	path := filepath.Join(t.TempDir(), "net.aprw")
	require.NoError(t, WriteFile(path, weights, map[string]string{"epoch": "3"}))
	return path, weights
}

func assertSameWeights(t *testing.T, want, got ann.WeightsDict) {
	t.Helper()
	require.Equal(t, want.Names(), got.Names())
	for _, name := range want.Names() {
		assert.Equal(t, want[name].Weights().Dims(), got[name].Weights().Dims(), name)
		assert.Equal(t, want[name].Weights().Values(), got[name].Weights().Values(), name)
		assert.Equal(t, want[name].PrevWeights().Values(), got[name].PrevWeights().Values(), name)
		assert.Equal(t, 0, got[name].SharedCount(), name)
	}
}

func TestRoundTrip(t *testing.T) {
	path, weights := writeSample(t)

	r, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Equal(t, []string{"b1", "w1", "w2"}, r.BlockNames())
	assert.Equal(t, "3", r.Metadata()["epoch"])
	assert.Equal(t, FlagHasMetadata, r.Flags()&FlagHasMetadata)
	assert.Equal(t, LibraryVersion, r.Header().AprilVersion)

	info, err := r.BlockInfo("w2")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Input)
	assert.Equal(t, 4, info.Output)
	assert.Equal(t, int64(32), info.Size)

	got, err := r.ReadWeights()
	require.NoError(t, err)
	assertSameWeights(t, weights, got)

	_, err = r.BlockInfo("missing")
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestDataSectionIsAligned(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteWeights(sampleWeights(t), nil))
	fixed, err := decodeFixedHeader(buf.Bytes())
	require.NoError(t, err)

	offset := dataOffset(fixed.headerSize)
	assert.Zero(t, offset%DataAlignment)
	assert.Equal(t, int64(buf.Len()), offset+int64(fixed.dataSize))
	assert.Equal(t, ComputeChecksum(buf.Bytes()[offset:]), fixed.checksum)
	assert.Zero(t, fixed.flags)
}

func TestMmapReader(t *testing.T) {
	path, weights := writeSample(t)

	r, err := NewMmapReader(path)
	require.NoError(t, err)
	require.NoError(t, r.Verify())

	got, err := r.ReadWeights()
	require.NoError(t, err)
	assertSameWeights(t, weights, got)

	raw, err := r.BlockData("w1")
	require.NoError(t, err)
	assert.Equal(t, weights["w1"].Weights().Values(), decodeFloats(raw))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.ReadBlock("w1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCorruptionIsDetected(t *testing.T) {
	path, _ := writeSample(t)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	r, err := OpenWithOptions(path, ReaderOptions{SkipChecksumValidation: true})
	require.NoError(t, err)
	_ = r.Close()

	m, err := NewMmapReader(path)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Verify(), ErrChecksumMismatch)
	_ = m.Close()
}

func TestRejectsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad")

	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o600))
	_, err := Open(path)
	assert.Error(t, err)

	bad := fixedHeader{version: FormatVersion}.encode()
	copy(bad, "BORN")
	require.NoError(t, os.WriteFile(path, bad, 0o600))
	_, err = Open(path)
	assert.ErrorIs(t, err, ErrInvalidMagic)

	require.NoError(t, os.WriteFile(path, fixedHeader{version: 7}.encode(), 0o600))
	_, err = Open(path)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	require.NoError(t, os.WriteFile(path, fixedHeader{version: FormatVersion, headerSize: MaxHeaderSize + 1}.encode(), 0o600))
	_, err = NewMmapReader(path)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)

	// A data section longer than the file.
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteWeights(sampleWeights(t), nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes()[:buf.Len()-4], 0o600))
	_, err = Open(path)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestValidateHeader(t *testing.T) {
	ok := BlockMeta{Name: "w", Input: 2, Output: 2, Offset: 0, PrevOffset: 16, Size: 16}
	tests := []struct {
		name   string
		blocks []BlockMeta
		want   error
	}{
		{"valid", []BlockMeta{ok}, nil},
		{"empty name", []BlockMeta{{Input: 1, Output: 1, PrevOffset: 4, Size: 4}}, ErrInvalidBlockName},
		{"traversal", []BlockMeta{{Name: "../w", Input: 1, Output: 1, PrevOffset: 4, Size: 4}}, ErrInvalidBlockName},
		{"separator", []BlockMeta{{Name: "a/b", Input: 1, Output: 1, PrevOffset: 4, Size: 4}}, ErrInvalidBlockName},
		{"duplicate", []BlockMeta{ok, ok}, ErrInvalidBlockName},
		{"size", []BlockMeta{{Name: "w", Input: 2, Output: 2, PrevOffset: 12, Size: 12}}, ErrInvalidBlockSize},
		{"zero dims", []BlockMeta{{Name: "w", Size: 0}}, ErrInvalidBlockSize},
		{"overlap", []BlockMeta{{Name: "w", Input: 2, Output: 2, Offset: 0, PrevOffset: 8, Size: 16}}, ErrOffsetOverlap},
		{"negative", []BlockMeta{{Name: "w", Input: 2, Output: 2, Offset: -16, PrevOffset: 16, Size: 16}}, ErrNegativeOffset},
		{"bounds", []BlockMeta{{Name: "w", Input: 2, Output: 2, Offset: 0, PrevOffset: 32, Size: 16}}, ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeader(&Header{Blocks: tt.blocks}, 40, ValidationStrict)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	overlap := &Header{Blocks: []BlockMeta{{Name: "w", Input: 2, Output: 2, PrevOffset: 8, Size: 16}}}
	assert.NoError(t, ValidateHeader(overlap, 40, ValidationNormal))
	assert.NoError(t, ValidateHeader(&Header{Blocks: []BlockMeta{{}}}, 0, ValidationNone))
}

func TestChecksum(t *testing.T) {
	data := []byte("april weights")
	sum, err := ComputeChecksumReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ComputeChecksum(data), sum)
	assert.NoError(t, ValidateChecksum(sum, sum))
	assert.ErrorIs(t, ValidateChecksum(sum, [32]byte{}), ErrChecksumMismatch)
}

func TestWriterRejectsBadNames(t *testing.T) {
	weights := ann.WeightsDict{"a/b": ann.NewConnections(1, 1, nil, nil)}
	var buf bytes.Buffer
	err := NewWriter(&buf).WriteWeights(weights, nil)
	assert.ErrorIs(t, err, ErrInvalidBlockName)
	assert.Zero(t, buf.Len())

	w := NewWriter(&buf)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.WriteWeights(ann.WeightsDict{}, nil), ErrClosed)
}
