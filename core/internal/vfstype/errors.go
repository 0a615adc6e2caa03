package vfstype

import "errors"

// Sentinel errors shared by the readers and the virtual filesystem.
var (
	// ErrValidation is returned when container metadata fails validation.
	ErrValidation = errors.New("vpp: validation failed")

	// ErrNotArchive is returned when a path does not name a loadable archive.
	ErrNotArchive = errors.New("vpp: not an archive")

	// ErrDecompression is returned when a compressed archive cannot be inflated.
	ErrDecompression = errors.New("vpp: decompression failed")

	// ErrMap is returned when a file cannot be memory mapped.
	ErrMap = errors.New("vpp: memory map failed")

	// ErrSizeOverflow is returned when offsets or sizes exceed supported limits.
	ErrSizeOverflow = errors.New("vpp: size overflow")

	// ErrNotFrame is returned when a texture operation targets a non-frame entry.
	ErrNotFrame = errors.New("vpp: not a texture frame")

	// ErrTruncatedFrame is returned when frame pixel data is shorter than its dimensions need.
	ErrTruncatedFrame = errors.New("vpp: truncated frame data")

	// ErrCleared is returned when an entry view outlived the VFS contents it referenced.
	ErrCleared = errors.New("vpp: entry invalidated")
)

// ValidationError describes a container whose header or tables are malformed.
type ValidationError struct {
	// Path identifies the container (file path or in-archive path).
	Path string

	// Reason is a short description of the failed check.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "vpp: validation failed: " + e.Reason
	}
	return "vpp: validation failed: " + e.Path + ": " + e.Reason
}

// Unwrap allows errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid returns a *ValidationError for path.
func Invalid(path, reason string) error {
	return &ValidationError{Path: path, Reason: reason}
}
