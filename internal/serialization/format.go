package serialization

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Format constants.
const (
	MagicBytes      = "APRW"
	FormatVersion   = 1
	DataAlignment   = 64   // Data section starts on a 64-byte boundary
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
	ElementSize     = 4    // float32
)

// Flags.
const (
	FlagHasMetadata uint32 = 1 << 0 // custom metadata included
)

// LibraryVersion is recorded in the header of written files.
const LibraryVersion = "0.1.0"

// Header is the JSON header of a weights file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	AprilVersion  string            `json:"april_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Blocks        []BlockMeta       `json:"blocks"`
	Metadata      map[string]string `json:"metadata"`
}

// BlockMeta describes one Connections block.
type BlockMeta struct {
	Name       string `json:"name"`        // Weights name in the dictionary
	Input      int    `json:"input"`       // Fan-in per output unit
	Output     int    `json:"output"`      // Number of output units
	Offset     int64  `json:"offset"`      // Current weights, bytes from the start of data
	PrevOffset int64  `json:"prev_offset"` // Previous weights, bytes from the start of data
	Size       int64  `json:"size"`        // Bytes of each of the two regions
}

// fixedHeader holds the decoded fixed-size prefix.
type fixedHeader struct {
	version    uint32
	flags      uint32
	headerSize uint64
	dataSize   uint64
	checksum   [32]byte
}

func (f fixedHeader) encode() []byte {
	b := make([]byte, FixedHeaderSize)
	copy(b[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(b[4:8], f.version)
	binary.LittleEndian.PutUint32(b[8:12], f.flags)
	binary.LittleEndian.PutUint64(b[16:24], f.headerSize)
	binary.LittleEndian.PutUint64(b[24:32], f.dataSize)
	copy(b[ChecksumOffset:ChecksumOffset+ChecksumSize], f.checksum[:])
	return b
}

func decodeFixedHeader(b []byte) (fixedHeader, error) {
	var f fixedHeader
	if len(b) < FixedHeaderSize {
		return f, fmt.Errorf("file too small: %d bytes (minimum %d)", len(b), FixedHeaderSize)
	}
	if string(b[0:4]) != MagicBytes {
		return f, ErrInvalidMagic
	}
	f.version = binary.LittleEndian.Uint32(b[4:8])
	if f.version != FormatVersion {
		return f, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, f.version, FormatVersion)
	}
	f.flags = binary.LittleEndian.Uint32(b[8:12])
	f.headerSize = binary.LittleEndian.Uint64(b[16:24])
	f.dataSize = binary.LittleEndian.Uint64(b[24:32])
	copy(f.checksum[:], b[ChecksumOffset:ChecksumOffset+ChecksumSize])
	if f.headerSize > MaxHeaderSize {
		return f, ErrHeaderTooLarge
	}
	if f.dataSize > math.MaxInt64 {
		return f, fmt.Errorf("data size too large: %d", f.dataSize)
	}
	return f, nil
}

// dataOffset returns where the data section starts for a JSON header of
// the given size.
func dataOffset(headerSize uint64) int64 {
	end := int64(FixedHeaderSize) + int64(headerSize) //nolint:gosec // bounded by MaxHeaderSize
	return (end + DataAlignment - 1) / DataAlignment * DataAlignment
}

func encodeFloats(dst []byte, values []float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[i*ElementSize:], math.Float32bits(v))
	}
}

func decodeFloats(src []byte) []float32 {
	out := make([]float32, len(src)/ElementSize)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*ElementSize:]))
	}
	return out
}
