package serialization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/born-ml/april/internal/ann"
)

// Writer writes weights dictionaries in .aprw format.
type Writer struct {
	w      io.Writer
	file   *os.File
	closed bool
}

// NewWriter returns a writer over w. Close does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Create creates or truncates the file at path.
func Create(path string) (*Writer, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for saving weights
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &Writer{w: file, file: file}, nil
}

// WriteWeights writes every block of weights, in name order, with the given
// metadata.
func (w *Writer) WriteWeights(weights ann.WeightsDict, metadata map[string]string) error {
	if w.closed {
		return ErrClosed
	}

	header := Header{
		FormatVersion: FormatVersion,
		AprilVersion:  LibraryVersion,
		CreatedAt:     time.Now().UTC(),
		Blocks:        make([]BlockMeta, 0, len(weights)),
		Metadata:      metadata,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Lay out the data section and fill it.
	var data []byte
	for _, name := range weights.Names() {
		if err := ValidateBlockName(name); err != nil {
			return err
		}
		c := weights[name]
		size := int64(c.Size()) * ElementSize
		meta := BlockMeta{
			Name:       name,
			Input:      c.InputSize(),
			Output:     c.OutputSize(),
			Offset:     int64(len(data)),
			PrevOffset: int64(len(data)) + size,
			Size:       size,
		}
		region := make([]byte, 2*size)
		encodeFloats(region[:size], c.Weights().Values())
		encodeFloats(region[size:], c.PrevWeights().Values())
		data = append(data, region...)
		header.Blocks = append(header.Blocks, meta)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	fixed := fixedHeader{
		version:    FormatVersion,
		headerSize: uint64(len(headerJSON)),
		dataSize:   uint64(len(data)),
		checksum:   ComputeChecksum(data),
	}
	if len(metadata) > 0 {
		fixed.flags |= FlagHasMetadata
	}

	var buf bytes.Buffer
	buf.Write(fixed.encode())
	buf.Write(headerJSON)
	buf.Write(make([]byte, dataOffset(fixed.headerSize)-int64(buf.Len())))
	buf.Write(data)
	if _, err := w.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write weights: %w", err)
	}
	return nil
}

// Close closes the underlying file when the writer owns one.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("failed to close file: %w", err)
		}
	}
	return nil
}

// WriteFile writes weights to the file at path.
func WriteFile(path string, weights ann.WeightsDict, metadata map[string]string) (err error) {
	w, err := Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return w.WriteWeights(weights, metadata)
}
