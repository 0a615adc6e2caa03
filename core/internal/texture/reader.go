// Package texture reads PEG texture containers and decodes their frames.
package texture

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/meigma/vpp/core/internal/vfstype"
)

const (
	// Signature is the little-endian magic at offset 0.
	Signature uint32 = 0x564B4547

	// HeaderSize is the size of the fixed container header.
	HeaderSize = 32

	// FrameRecordSize is the size of one frame table record.
	FrameRecordSize = 64

	// DefaultMaxFrameSize is the largest frame accepted by ReadEntries.
	DefaultMaxFrameSize = 1_000_000

	frameNameSize = 48
)

// Header is the fixed container header.
type Header struct {
	Version uint32

	// FrameTableSize is the byte size of the frame table that follows the header.
	FrameTableSize uint32

	// DataSize is the byte size of the frame payload after the frame table.
	DataSize uint32

	// FrameCount is the number of frame records.
	FrameCount uint32
}

// End returns the offset one past the container's last payload byte.
func (h *Header) End() uint64 {
	return HeaderSize + uint64(h.FrameTableSize) + uint64(h.DataSize)
}

// Frame is a decoded frame table record.
type Frame struct {
	Index  int
	Name   string
	Width  uint16
	Height uint16
	Format Format

	// Offset is relative to the start of the container.
	Offset uint32
}

// ReadHeader decodes and validates the container header.
func ReadHeader(name string, data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, vfstype.Invalid(name, fmt.Sprintf("too short for texture header (%d bytes)", len(data)))
	}
	le := binary.LittleEndian
	if sig := le.Uint32(data[0:]); sig != Signature {
		return nil, vfstype.Invalid(name, fmt.Sprintf("signature mismatch 0x%08X != 0x%08X", sig, Signature))
	}
	return &Header{
		Version:        le.Uint32(data[4:]),
		FrameTableSize: le.Uint32(data[8:]),
		DataSize:       le.Uint32(data[12:]),
		FrameCount:     le.Uint32(data[16:]),
	}, nil
}

// ReadFrames decodes every frame record of the container.
func ReadFrames(name string, h *Header, data []byte) ([]Frame, error) {
	count := uint64(h.FrameCount)
	if HeaderSize+count*FrameRecordSize > uint64(len(data)) {
		return nil, vfstype.Invalid(name, fmt.Sprintf("frame table of %d records exceeds container size", count))
	}
	le := binary.LittleEndian
	frames := make([]Frame, count)
	for i := range frames {
		rec := data[HeaderSize+i*FrameRecordSize:]
		name := rec[12 : 12+frameNameSize]
		if n := bytes.IndexByte(name, 0); n >= 0 {
			name = name[:n]
		}
		frames[i] = Frame{
			Index:  i,
			Name:   string(name),
			Width:  le.Uint16(rec[0:]),
			Height: le.Uint16(rec[2:]),
			Format: Format(le.Uint16(rec[4:])),
			Offset: le.Uint32(rec[60:]),
		}
	}
	return frames, nil
}

// FrameSize derives the byte length of frames[i] from the next frame's offset,
// or from the container end for the last frame. The result may be negative
// for malformed tables.
func FrameSize(h *Header, frames []Frame, i int) int64 {
	end := int64(h.End()) //nolint:gosec // sum of three uint32 values
	if i+1 < len(frames) {
		end = int64(frames[i+1].Offset)
	}
	return end - int64(frames[i].Offset)
}
