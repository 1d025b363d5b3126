package serialization

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/born-ml/april/internal/ann"
	"github.com/born-ml/april/internal/matrix"
)

// MmapReader provides memory-mapped access to .aprw files. Only the header
// is parsed when opening; block data is read on demand through the OS page
// cache. Always call Close to unmap the file.
type MmapReader struct {
	file       *os.File
	data       []byte // mmap'd region (read-only)
	header     Header
	fixed      fixedHeader
	dataOffset int64
	dataSize   int64
	closed     bool
}

// NewMmapReader maps the file at path and validates its header strictly.
// The checksum is verified by Verify.
func NewMmapReader(path string) (*MmapReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for loading weights
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.Size() < FixedHeaderSize {
		_ = file.Close()
		return nil, fmt.Errorf("failed to parse header: file too small: %d bytes", stat.Size())
	}

	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	r := &MmapReader{file: file, data: data}
	if err := r.parseHeader(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	return r, nil
}

func (r *MmapReader) parseHeader() error {
	fixed, err := decodeFixedHeader(r.data)
	if err != nil {
		return err
	}
	r.fixed = fixed
	size := int64(len(r.data))
	headerEnd := int64(FixedHeaderSize) + int64(fixed.headerSize) //nolint:gosec // bounded by MaxHeaderSize
	if headerEnd > size {
		return fmt.Errorf("header extends beyond file: header_end=%d, file_size=%d", headerEnd, size)
	}
	if err := json.Unmarshal(r.data[FixedHeaderSize:headerEnd], &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}
	r.dataOffset = dataOffset(fixed.headerSize)
	r.dataSize = int64(fixed.dataSize) //nolint:gosec // checked against MaxInt64 when decoded
	if r.dataOffset+r.dataSize > size {
		return fmt.Errorf("%w: data section of %d bytes at %d, file is %d bytes",
			ErrOutOfBounds, r.dataSize, r.dataOffset, size)
	}
	if err := ValidateHeader(&r.header, r.dataSize, ValidationStrict); err != nil {
		return fmt.Errorf("header validation failed: %w", err)
	}
	return nil
}

// Verify checks the data section against the stored checksum.
func (r *MmapReader) Verify() error {
	if r.closed {
		return ErrClosed
	}
	return ValidateChecksum(ComputeChecksum(r.section(0, r.dataSize)), r.fixed.checksum)
}

func (r *MmapReader) section(offset, size int64) []byte {
	start := r.dataOffset + offset
	return r.data[start : start+size]
}

// Header returns the file header.
func (r *MmapReader) Header() Header { return r.header }

// Checksum returns the stored SHA-256 of the data section.
func (r *MmapReader) Checksum() [32]byte { return r.fixed.checksum }

// BlockNames returns the block names in file order.
func (r *MmapReader) BlockNames() []string { return blockNames(r.header) }

// BlockInfo returns the metadata of a block.
func (r *MmapReader) BlockInfo(name string) (*BlockMeta, error) { return blockInfo(r.header, name) }

// BlockData returns the mapped bytes of a block's current weights. The slice
// is valid until Close and must not be modified.
func (r *MmapReader) BlockData(name string) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.BlockInfo(name)
	if err != nil {
		return nil, err
	}
	return r.section(meta.Offset, meta.Size), nil
}

// ReadBlock loads one block as a Connections, copying it out of the mapping.
func (r *MmapReader) ReadBlock(name string, opts ...matrix.Option) (*ann.Connections, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.BlockInfo(name)
	if err != nil {
		return nil, err
	}
	return newConnections(meta, r.section(meta.Offset, meta.Size), r.section(meta.PrevOffset, meta.Size), opts), nil
}

// ReadWeights loads every block into a new dictionary.
func (r *MmapReader) ReadWeights(opts ...matrix.Option) (ann.WeightsDict, error) {
	return readAll(r.header, func(name string) (*ann.Connections, error) { return r.ReadBlock(name, opts...) })
}

// Close unmaps and closes the file.
func (r *MmapReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.data != nil {
		err = munmapFile(r.data)
		r.data = nil
	}
	if closeErr := r.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
