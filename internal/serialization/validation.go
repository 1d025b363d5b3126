package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize   = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxBlockCount   = 100_000           // Maximum number of blocks in a file
	MaxBlockNameLen = 4096              // Maximum block name length
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict performs all validation checks (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names and sizes but not region layout.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// region is one contiguous byte range of the data section.
type region struct {
	block        string
	offset, size int64
}

// ValidateBlockName rejects names that are empty, too long, or carry path
// separators, ".." or NUL bytes.
func ValidateBlockName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Kind: ErrInvalidBlockName, Details: "empty name"}
	case len(name) > MaxBlockNameLen:
		return &ValidationError{Kind: ErrInvalidBlockName, Block: name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxBlockNameLen)}
	case strings.Contains(name, ".."):
		return &ValidationError{Kind: ErrInvalidBlockName, Block: name, Details: "contains '..'"}
	case strings.ContainsAny(name, "/\\"):
		return &ValidationError{Kind: ErrInvalidBlockName, Block: name, Details: "contains path separator (/ or \\)"}
	case strings.Contains(name, "\x00"):
		return &ValidationError{Kind: ErrInvalidBlockName, Block: name, Details: "contains null byte"}
	}
	return nil
}

// ValidateBlockSize checks that a block's byte size matches its dimensions.
func ValidateBlockSize(b BlockMeta) error {
	if b.Input <= 0 || b.Output <= 0 {
		return &ValidationError{Kind: ErrInvalidBlockSize, Block: b.Name,
			Details: fmt.Sprintf("dimensions %dx%d", b.Output, b.Input)}
	}
	if want := int64(b.Input) * int64(b.Output) * ElementSize; b.Size != want {
		return &ValidationError{Kind: ErrInvalidBlockSize, Block: b.Name,
			Details: fmt.Sprintf("size %d, expected %d for %dx%d", b.Size, want, b.Output, b.Input)}
	}
	return nil
}

// ValidateBlockOffsets checks that no region is negative, out of the data
// section, or overlapping another.
func ValidateBlockOffsets(blocks []BlockMeta, dataSize int64) error {
	regions := make([]region, 0, 2*len(blocks))
	for _, b := range blocks {
		regions = append(regions, region{b.Name, b.Offset, b.Size}, region{b.Name, b.PrevOffset, b.Size})
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].offset < regions[j].offset })

	for i, r := range regions {
		if r.offset < 0 || r.size < 0 {
			return &ValidationError{Kind: ErrNegativeOffset, Block: r.block,
				Details: fmt.Sprintf("offset=%d, size=%d", r.offset, r.size)}
		}
		if r.offset+r.size > dataSize {
			return &ValidationError{Kind: ErrOutOfBounds, Block: r.block,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", r.offset, r.size, dataSize)}
		}
		if i < len(regions)-1 {
			next := regions[i+1]
			if r.offset+r.size > next.offset {
				return &ValidationError{Kind: ErrOffsetOverlap, Block: r.block, Block2: next.block,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						r.offset, r.offset+r.size, next.offset, next.offset+next.size)}
			}
		}
	}
	return nil
}

// ValidateHeader performs header validation at the given level.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}
	if len(h.Blocks) > MaxBlockCount {
		return &ValidationError{Kind: ErrTooManyBlocks,
			Details: fmt.Sprintf("got %d, max %d", len(h.Blocks), MaxBlockCount)}
	}
	seen := make(map[string]bool, len(h.Blocks))
	for _, b := range h.Blocks {
		if err := ValidateBlockName(b.Name); err != nil {
			return err
		}
		if seen[b.Name] {
			return &ValidationError{Kind: ErrInvalidBlockName, Block: b.Name, Details: "duplicate name"}
		}
		seen[b.Name] = true
		if err := ValidateBlockSize(b); err != nil {
			return err
		}
	}
	if level == ValidationStrict {
		return ValidateBlockOffsets(h.Blocks, dataSize)
	}
	return nil
}
