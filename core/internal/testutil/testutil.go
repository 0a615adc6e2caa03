// Package testutil builds synthetic archives and texture containers for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

const (
	chunkSize = 0x800

	archiveSignature = 0x51890ACE
	textureSignature = 0x564B4547

	v1RecordSize      = 64
	v2HeaderSize      = 92
	v2RecordSize      = 28
	textureHeaderSize = 32
	frameRecordSize   = 64
)

var le = binary.LittleEndian

// Member is one file stored in a synthetic archive.
type Member struct {
	Name string
	Data []byte
}

func align(n int) int {
	if rem := n % chunkSize; rem != 0 {
		return n + chunkSize - rem
	}
	return n
}

// layout places members back to back on chunk boundaries starting at base
// and returns their offsets and the aligned end.
func layout(members []Member, base int) ([]int, int) {
	offsets := make([]int, len(members))
	cursor := base
	for i, m := range members {
		offsets[i] = cursor
		cursor = align(cursor + len(m.Data))
	}
	return offsets, cursor
}

// BuildV1 returns a version 1 archive holding members.
//
// The file is padded to the next chunk boundary after the last member so that
// members shorter than a chunk end strictly inside the file.
func BuildV1(t testing.TB, members []Member) []byte {
	t.Helper()

	dataStart := align(chunkSize + len(members)*v1RecordSize)
	offsets, end := layout(members, dataStart)
	buf := make([]byte, end)

	le.PutUint32(buf[0:], archiveSignature)
	le.PutUint32(buf[4:], 1)
	le.PutUint32(buf[8:], uint32(len(members))) //nolint:gosec // test sizes are small
	le.PutUint32(buf[12:], uint32(end))         //nolint:gosec // test sizes are small
	for i, m := range members {
		require.Less(t, len(m.Name), 60, "v1 names hold at most 59 bytes")
		rec := buf[chunkSize+i*v1RecordSize:]
		copy(rec, m.Name)
		le.PutUint32(rec[60:], uint32(len(m.Data))) //nolint:gosec // test sizes are small
		copy(buf[offsets[i]:], m.Data)
	}
	return buf
}

// BuildV2 returns a version 2 archive holding members, optionally with the
// member payload stored as a single zlib stream.
func BuildV2(t testing.TB, members []Member, compressed bool) []byte {
	t.Helper()

	dirSize := len(members) * v2RecordSize
	var names bytes.Buffer
	for _, m := range members {
		names.WriteString(m.Name)
		names.WriteByte(0)
	}
	filenamesOffset := align(chunkSize + dirSize)
	dataOffset := align(filenamesOffset + names.Len())

	// Runtime offsets are relative to the payload start.
	rel, payloadEnd := layout(members, 0)
	payload := make([]byte, payloadEnd)
	for i, m := range members {
		copy(payload[rel[i]:], m.Data)
	}

	stored := payload
	compressedSize := uint32(0xFFFFFFFF)
	if compressed {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		_, err := zw.Write(payload)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		stored = z.Bytes()
		compressedSize = uint32(len(stored)) //nolint:gosec // test sizes are small
	}

	buf := make([]byte, dataOffset+len(stored))
	le.PutUint32(buf[0x00:], archiveSignature)
	le.PutUint32(buf[0x04:], 2)
	copy(buf[0x08:0x08+44], "synthetic")
	le.PutUint32(buf[0x3C:], uint32(len(members)))  //nolint:gosec // test sizes are small
	le.PutUint32(buf[0x40:], uint32(len(buf)))      //nolint:gosec // test sizes are small
	le.PutUint32(buf[0x44:], uint32(dirSize))       //nolint:gosec // test sizes are small
	le.PutUint32(buf[0x48:], uint32(names.Len()))   //nolint:gosec // test sizes are small
	le.PutUint32(buf[0x4C:], compressedSize)
	le.PutUint32(buf[0x50:], uint32(len(payload))) //nolint:gosec // test sizes are small

	nameEnd := 0
	for i, m := range members {
		nameEnd += len(m.Name) + 1
		rec := buf[chunkSize+i*v2RecordSize:]
		le.PutUint32(rec[0:], uint32(nameEnd))       //nolint:gosec // test sizes are small
		le.PutUint32(rec[4:], uint32(rel[i]))        //nolint:gosec // test sizes are small
		le.PutUint32(rec[12:], uint32(len(m.Data))) //nolint:gosec // test sizes are small
		le.PutUint32(rec[16:], uint32(len(m.Data))) //nolint:gosec // test sizes are small
	}
	copy(buf[filenamesOffset:], names.Bytes())
	copy(buf[dataOffset:], stored)
	return buf
}

// Frame is one image stored in a synthetic texture container.
type Frame struct {
	Name   string
	Width  uint16
	Height uint16
	Format uint16
	Data   []byte
}

// BuildTexture returns a texture container holding frames. Frame data is
// stored back to back after the frame table.
func BuildTexture(t testing.TB, frames []Frame) []byte {
	t.Helper()

	tableSize := len(frames) * frameRecordSize
	dataSize := 0
	for _, f := range frames {
		dataSize += len(f.Data)
	}
	buf := make([]byte, textureHeaderSize+tableSize+dataSize)

	le.PutUint32(buf[0:], textureSignature)
	le.PutUint32(buf[4:], 6)
	le.PutUint32(buf[8:], uint32(tableSize))    //nolint:gosec // test sizes are small
	le.PutUint32(buf[12:], uint32(dataSize))    //nolint:gosec // test sizes are small
	le.PutUint32(buf[16:], uint32(len(frames))) //nolint:gosec // test sizes are small
	le.PutUint32(buf[24:], uint32(len(frames))) //nolint:gosec // test sizes are small
	le.PutUint32(buf[28:], 0x10)

	cursor := textureHeaderSize + tableSize
	for i, f := range frames {
		require.LessOrEqual(t, len(f.Name), 48, "frame names hold at most 48 bytes")
		rec := buf[textureHeaderSize+i*frameRecordSize:]
		le.PutUint16(rec[0:], f.Width)
		le.PutUint16(rec[2:], f.Height)
		le.PutUint16(rec[4:], f.Format)
		copy(rec[12:60], f.Name)
		le.PutUint32(rec[60:], uint32(cursor)) //nolint:gosec // test sizes are small
		copy(buf[cursor:], f.Data)
		cursor += len(f.Data)
	}
	return buf
}

// IndexedFrame returns a 0x104 frame payload with the given palette words and
// pixel indices. Palette entry i is stored at raw slot i.
func IndexedFrame(palette [256]uint16, pixels []byte) []byte {
	data := make([]byte, 512+len(pixels))
	for i, v := range palette {
		le.PutUint16(data[i*2:], v)
	}
	copy(data[512:], pixels)
	return data
}

// WriteFile writes data to dir/name and returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
