package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrOffsetOverlap      = errors.New("block regions overlap")
	ErrOutOfBounds        = errors.New("block extends beyond data section")
	ErrNegativeOffset     = errors.New("negative offset or size")
	ErrTooManyBlocks      = errors.New("too many blocks in file")
	ErrInvalidBlockName   = errors.New("invalid block name")
	ErrInvalidBlockSize   = errors.New("block size does not match its dimensions")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrBlockNotFound      = errors.New("block not found")
	ErrClosed             = errors.New("file is closed")
)

// ValidationError provides detailed information about validation failures.
// It unwraps to one of the Err* sentinels.
type ValidationError struct {
	Kind    error  // Sentinel describing the failure
	Block   string // Primary block name involved
	Block2  string // Secondary block name (for overlap errors)
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Block2 != "" {
		return fmt.Sprintf("%s: blocks %q and %q: %s", e.Kind, e.Block, e.Block2, e.Details)
	}
	if e.Block != "" {
		return fmt.Sprintf("%s: block %q: %s", e.Kind, e.Block, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Details)
}

// Unwrap returns the sentinel kind.
func (e *ValidationError) Unwrap() error { return e.Kind }
