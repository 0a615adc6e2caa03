package vpp

import vppcore "github.com/meigma/vpp/core"

// --- Re-exports from core ---

// VFS is the virtual filesystem holding loaded archives.
type VFS = vppcore.VFS

// EntryView is a read-only view of a VFS entry.
type EntryView = vppcore.EntryView

// Handle identifies an entry inside a VFS.
type Handle = vppcore.Handle

// Image is a decoded texture frame.
type Image = vppcore.Image

// PixelFormat is the pixel format tag of a texture frame.
type PixelFormat = vppcore.PixelFormat

// Expander lists the members of a nested container format.
type Expander = vppcore.Expander

// ExpanderFunc adapts a function to the Expander interface.
type ExpanderFunc = vppcore.ExpanderFunc

// Expansion is the result of listing a nested container.
type Expansion = vppcore.Expansion

// Member describes one entry listed by an Expander.
type Member = vppcore.Member

// CopyOption configures CopyTo, CopyDir and CopyFile.
type CopyOption = vppcore.CopyOption

// CopyStats reports what an extraction wrote.
type CopyStats = vppcore.CopyStats

// ValidationError describes the failed check behind ErrValidation.
type ValidationError = vppcore.ValidationError

// Pixel formats.
const (
	FormatRGBA5551        = vppcore.FormatRGBA5551
	FormatRGBA32          = vppcore.FormatRGBA32
	FormatRGBA5551Indexed = vppcore.FormatRGBA5551Indexed
	FormatRGBA32Indexed   = vppcore.FormatRGBA32Indexed
)

// Copy options re-exported from core.
var (
	CopyWithOverwrite     = vppcore.CopyWithOverwrite
	CopyWithWorkers       = vppcore.CopyWithWorkers
	CopyWithDecodedFrames = vppcore.CopyWithDecodedFrames
	CopyWithDirectWrites  = vppcore.CopyWithDirectWrites
)

// NormalizePath converts a user-provided path to fs.ValidPath format.
var NormalizePath = vppcore.NormalizePath

// EncodePNG writes a decoded frame as PNG.
var EncodePNG = vppcore.EncodePNG

// Extensions handled by default.
const (
	ArchiveExtension = vppcore.ArchiveExtension
	TextureExtension = vppcore.TextureExtension
)
