package vpp

import (
	"errors"

	"github.com/meigma/vpp/core/internal/inflate"
	"github.com/meigma/vpp/core/internal/vfstype"
)

// Sentinel errors re-exported from internal/vfstype.
var (
	// ErrValidation is returned when archive or texture metadata fails validation.
	ErrValidation = vfstype.ErrValidation

	// ErrNotArchive is returned when AddRootArchive is given something other
	// than a .vpp file.
	ErrNotArchive = vfstype.ErrNotArchive

	// ErrDecompression is returned when a compressed archive cannot be inflated.
	ErrDecompression = vfstype.ErrDecompression

	// ErrMap is returned when a file cannot be memory mapped.
	ErrMap = vfstype.ErrMap

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = vfstype.ErrSizeOverflow

	// ErrNotFrame is returned when a texture operation targets a non-frame entry.
	ErrNotFrame = vfstype.ErrNotFrame

	// ErrTruncatedFrame is returned when frame data is too short for its dimensions.
	ErrTruncatedFrame = vfstype.ErrTruncatedFrame

	// ErrCleared is returned when an EntryView outlived a Clear.
	ErrCleared = vfstype.ErrCleared
)

// Inflate failures, wrapped by ErrDecompression.
var (
	ErrOutOfMemory        = inflate.ErrOutOfMemory
	ErrIncompatibleFormat = inflate.ErrIncompatibleFormat
	ErrInvalidParameters  = inflate.ErrInvalidParameters
	ErrCorruptData        = inflate.ErrCorruptData
	ErrInconsistentState  = inflate.ErrInconsistentState
)

// ValidationError describes the failed check behind ErrValidation.
type ValidationError = vfstype.ValidationError

var errNotDir = errors.New("not a directory")
