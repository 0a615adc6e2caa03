// Package archive reads the directory of VPP outer archives.
//
// Two on-disk versions are supported. Both place a fixed header at offset 0
// and the member directory at ChunkSize; member data starts on the next chunk
// boundary after the directory (v1) or after the filename table (v2). A v2
// archive may carry its whole payload as a single zlib stream.
package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/meigma/vpp/core/internal/vfstype"
)

const (
	// Signature is the little-endian magic at offset 0.
	Signature uint32 = 0x51890ACE

	// ChunkSize is the alignment unit for directory and member data.
	ChunkSize = 0x800

	// MaxFiles is the largest accepted member count.
	MaxFiles = 5000

	// Uncompressed is the CompressedDataSize marker for uncompressed v2 archives.
	Uncompressed uint32 = 0xFFFFFFFF

	v1HeaderSize = 16
	v1RecordSize = 64
	v1NameSize   = 60

	v2HeaderSize = 92
	v2RecordSize = 28
	v2NameSize   = 44
)

// Align rounds n up to the next multiple of ChunkSize. Align(0) is 0.
func Align(n uint64) uint64 {
	if rem := n % ChunkSize; rem != 0 {
		return n + (ChunkSize - rem)
	}
	return n
}

// Header holds the fields of a v1 or v2 archive header.
// Fields that a version does not carry are zero.
type Header struct {
	Version   uint32
	FileCount uint32

	// FileSize is the archive size recorded in the header.
	FileSize uint32

	// Name is the embedded archive name (v2 only).
	Name string

	DirectorySize        uint32
	FilenamesSize        uint32
	CompressedDataSize   uint32
	UncompressedDataSize uint32
}

// Compressed reports whether the member payload is a single zlib stream.
func (h *Header) Compressed() bool {
	return h.Version == 2 && h.CompressedDataSize != Uncompressed
}

// FilenamesOffset returns the start of the v2 filename table.
func (h *Header) FilenamesOffset() uint64 {
	return Align(ChunkSize + uint64(h.DirectorySize))
}

// DataOffset returns the offset of the first member byte (or of the
// compressed stream for compressed archives).
func (h *Header) DataOffset() uint64 {
	if h.Version == 1 {
		return Align(ChunkSize + uint64(h.FileCount)*v1RecordSize)
	}
	return Align(h.FilenamesOffset() + uint64(h.FilenamesSize))
}

// ReadHeader decodes and validates the archive header at the start of data.
// name is used in error messages only.
func ReadHeader(name string, data []byte) (*Header, error) {
	if len(data) < v1HeaderSize {
		return nil, vfstype.Invalid(name, fmt.Sprintf("file too short for header (%d bytes)", len(data)))
	}
	le := binary.LittleEndian
	if sig := le.Uint32(data[0:]); sig != Signature {
		return nil, vfstype.Invalid(name, fmt.Sprintf("signature mismatch 0x%08X", sig))
	}

	h := &Header{Version: le.Uint32(data[4:])}
	switch h.Version {
	case 1:
		h.FileCount = le.Uint32(data[8:])
		h.FileSize = le.Uint32(data[12:])
	case 2:
		if len(data) < v2HeaderSize {
			return nil, vfstype.Invalid(name, fmt.Sprintf("file too short for v2 header (%d bytes)", len(data)))
		}
		h.Name = cString(data[0x08 : 0x08+v2NameSize])
		h.FileCount = le.Uint32(data[0x3C:])
		h.FileSize = le.Uint32(data[0x40:])
		h.DirectorySize = le.Uint32(data[0x44:])
		h.FilenamesSize = le.Uint32(data[0x48:])
		h.CompressedDataSize = le.Uint32(data[0x4C:])
		h.UncompressedDataSize = le.Uint32(data[0x50:])
	default:
		return nil, vfstype.Invalid(name, fmt.Sprintf("unsupported version %d", h.Version))
	}

	if h.FileCount == 0 || h.FileCount > MaxFiles {
		return nil, vfstype.Invalid(name, fmt.Sprintf("bad file count %d", h.FileCount))
	}
	return h, nil
}

// cString returns b up to its first NUL byte.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
