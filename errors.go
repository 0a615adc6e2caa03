package vpp

import vppcore "github.com/meigma/vpp/core"

// Errors re-exported from core.
var (
	// ErrValidation is returned when archive or texture metadata fails validation.
	ErrValidation = vppcore.ErrValidation

	// ErrNotArchive is returned when a path is not a .vpp file.
	ErrNotArchive = vppcore.ErrNotArchive

	// ErrDecompression is returned when a compressed archive cannot be inflated.
	ErrDecompression = vppcore.ErrDecompression

	// ErrMap is returned when a file cannot be memory mapped.
	ErrMap = vppcore.ErrMap

	// ErrSizeOverflow is returned when a size value overflows.
	ErrSizeOverflow = vppcore.ErrSizeOverflow

	// ErrNotFrame is returned when a texture operation targets a non-frame entry.
	ErrNotFrame = vppcore.ErrNotFrame

	// ErrTruncatedFrame is returned when frame data is too short for its dimensions.
	ErrTruncatedFrame = vppcore.ErrTruncatedFrame

	// ErrCleared is returned when an entry view outlived a Clear.
	ErrCleared = vppcore.ErrCleared
)

// Inflate failures re-exported from core. They are wrapped by ErrDecompression.
var (
	ErrOutOfMemory        = vppcore.ErrOutOfMemory
	ErrIncompatibleFormat = vppcore.ErrIncompatibleFormat
	ErrInvalidParameters  = vppcore.ErrInvalidParameters
	ErrCorruptData        = vppcore.ErrCorruptData
	ErrInconsistentState  = vppcore.ErrInconsistentState
)
