package serialization

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/april/internal/ann"
	"github.com/born-ml/april/internal/matrix"
)

// Reader reads weights dictionaries from .aprw files.
type Reader struct {
	file       *os.File
	header     Header
	fixed      fixedHeader
	dataOffset int64
	opts       ReaderOptions
	closed     bool
}

// ReaderOptions configures the behavior of Reader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// Open opens a weights file with strict validation.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// OpenWithOptions opens a weights file. The header is parsed and validated,
// and unless skipped the data checksum is verified, before it returns.
func OpenWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for loading weights
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	r := &Reader{file: file, opts: opts}
	if err := r.parseHeader(); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	return r, nil
}

func (r *Reader) parseHeader() error {
	prefix := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, prefix); err != nil {
		return fmt.Errorf("failed to read fixed header: %w", err)
	}
	fixed, err := decodeFixedHeader(prefix)
	if err != nil {
		return err
	}
	r.fixed = fixed

	headerBytes := make([]byte, fixed.headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}
	r.dataOffset = dataOffset(fixed.headerSize)

	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	dataSize := int64(fixed.dataSize) //nolint:gosec // checked against MaxInt64 when decoded
	if r.dataOffset+dataSize > info.Size() {
		return fmt.Errorf("%w: data section of %d bytes at %d, file is %d bytes",
			ErrOutOfBounds, dataSize, r.dataOffset, info.Size())
	}
	if err := ValidateHeader(&r.header, dataSize, r.opts.ValidationLevel); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if !r.opts.SkipChecksumValidation {
		computed, err := ComputeChecksumReader(io.NewSectionReader(r.file, r.dataOffset, dataSize))
		if err != nil {
			return fmt.Errorf("failed to read data for checksum: %w", err)
		}
		if err := ValidateChecksum(computed, r.fixed.checksum); err != nil {
			return err
		}
	}
	return nil
}

// Header returns the file header.
func (r *Reader) Header() Header { return r.header }

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string { return r.header.Metadata }

// Flags returns the file flags.
func (r *Reader) Flags() uint32 { return r.fixed.flags }

// Checksum returns the stored SHA-256 of the data section.
func (r *Reader) Checksum() [32]byte { return r.fixed.checksum }

// BlockNames returns the block names in file order.
func (r *Reader) BlockNames() []string { return blockNames(r.header) }

// BlockInfo returns the metadata of a block.
func (r *Reader) BlockInfo(name string) (*BlockMeta, error) { return blockInfo(r.header, name) }

// ReadBlock loads one block as a Connections.
func (r *Reader) ReadBlock(name string, opts ...matrix.Option) (*ann.Connections, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.BlockInfo(name)
	if err != nil {
		return nil, err
	}
	read := func(offset int64) ([]byte, error) {
		buf := make([]byte, meta.Size)
		if _, err := r.file.ReadAt(buf, r.dataOffset+offset); err != nil {
			return nil, fmt.Errorf("failed to read block %s: %w", name, err)
		}
		return buf, nil
	}
	w, err := read(meta.Offset)
	if err != nil {
		return nil, err
	}
	prev, err := read(meta.PrevOffset)
	if err != nil {
		return nil, err
	}
	return newConnections(meta, w, prev, opts), nil
}

// ReadWeights loads every block into a new dictionary.
func (r *Reader) ReadWeights(opts ...matrix.Option) (ann.WeightsDict, error) {
	return readAll(r.header, func(name string) (*ann.Connections, error) { return r.ReadBlock(name, opts...) })
}

// Close closes the file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// ReadFile loads the weights stored at path.
func ReadFile(path string, opts ...matrix.Option) (ann.WeightsDict, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return r.ReadWeights(opts...)
}

func blockNames(h Header) []string {
	names := make([]string, len(h.Blocks))
	for i, b := range h.Blocks {
		names[i] = b.Name
	}
	return names
}

func blockInfo(h Header, name string) (*BlockMeta, error) {
	for i := range h.Blocks {
		if h.Blocks[i].Name == name {
			return &h.Blocks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, name)
}

func readAll(h Header, read func(name string) (*ann.Connections, error)) (ann.WeightsDict, error) {
	weights := make(ann.WeightsDict, len(h.Blocks))
	for _, b := range h.Blocks {
		c, err := read(b.Name)
		if err != nil {
			return nil, err
		}
		weights[b.Name] = c
	}
	return weights, nil
}

// newConnections decodes both regions of a block. The sharer count starts
// at zero; components increment it when they are built.
func newConnections(meta *BlockMeta, w, prev []byte, opts []matrix.Option) *ann.Connections {
	dims := []int{meta.Output, meta.Input}
	return ann.NewConnections(meta.Input, meta.Output,
		matrix.FromSlice(decodeFloats(w), dims),
		matrix.FromSlice(decodeFloats(prev), dims),
		opts...)
}
