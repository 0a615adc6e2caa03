package archive

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/vpp/core/internal/testutil"
	"github.com/meigma/vpp/core/internal/vfstype"
)

func TestAlign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want uint64
	}{
		{0, 0},
		{1, ChunkSize},
		{ChunkSize, ChunkSize},
		{ChunkSize + 1, 2 * ChunkSize},
		{5 * ChunkSize, 5 * ChunkSize},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Align(tt.in), "Align(%d)", tt.in)
	}
}

func TestReadHeaderRejects(t *testing.T) {
	t.Parallel()

	good := testutil.BuildV1(t, []testutil.Member{{Name: "a.txt", Data: []byte("a")}})

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:8] }},
		{"signature", func(b []byte) []byte { b[0] ^= 0xFF; return b }},
		{"version 3", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[4:], 3); return b }},
		{"zero files", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[8:], 0); return b }},
		{"too many files", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[8:], MaxFiles+1); return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := tt.mutate(bytes.Clone(good))
			_, err := ReadHeader("bad.vpp", data)
			require.ErrorIs(t, err, vfstype.ErrValidation)
			var valErr *vfstype.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, "bad.vpp", valErr.Path)
		})
	}
}

func TestReadEntriesV1(t *testing.T) {
	t.Parallel()

	small := []byte("0123456789")
	large := bytes.Repeat([]byte{0xAB}, 2050)
	data := testutil.BuildV1(t, []testutil.Member{
		{Name: "small.txt", Data: small},
		{Name: "large.bin", Data: large},
	})

	h, err := ReadHeader("test.vpp", data)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), h.Version)
	assert.False(t, h.Compressed())
	assert.Equal(t, uint64(2*ChunkSize), h.DataOffset())

	entries, skips, err := ReadEntries("test.vpp", h, data, ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, skips)
	require.Len(t, entries, 2)

	assert.Equal(t, "small.txt", entries[0].Name)
	assert.Equal(t, uint64(2*ChunkSize), entries[0].Offset)
	assert.Equal(t, uint64(3*ChunkSize), entries[1].Offset)
	assert.LessOrEqual(t, entries[0].End(), entries[1].Offset)
	assert.Zero(t, entries[1].Offset%ChunkSize)

	assert.Equal(t, small, data[entries[0].Offset:entries[0].End()])
	assert.Equal(t, large, data[entries[1].Offset:entries[1].End()])
}

func TestReadEntriesSkips(t *testing.T) {
	t.Parallel()

	// The second member fills its chunk exactly, so it ends at the end of the file.
	data := testutil.BuildV1(t, []testutil.Member{
		{Name: "empty.txt"},
		{Name: "full.bin", Data: bytes.Repeat([]byte{1}, ChunkSize)},
	})
	h, err := ReadHeader("test.vpp", data)
	require.NoError(t, err)

	entries, skips, err := ReadEntries("test.vpp", h, data, ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.Len(t, skips, 2)
	assert.Equal(t, ReasonEmpty, skips[0].Reason)
	assert.Equal(t, ReasonOverrun, skips[1].Reason)

	entries, skips, err = ReadEntries("test.vpp", h, data, ReadOptions{ExactFit: true})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "full.bin", entries[0].Name)
	assert.Equal(t, 1, entries[0].Index)
	require.Len(t, skips, 1)
}

func TestReadEntriesSkippedMemberAdvancesOffset(t *testing.T) {
	t.Parallel()

	data := testutil.BuildV1(t, []testutil.Member{
		{Name: "a.txt", Data: []byte("aaaa")},
		{Name: "b.txt", Data: []byte("bbbb")},
	})
	// Shrink the file so the directory still fits but "b.txt" does not.
	h, err := ReadHeader("test.vpp", data)
	require.NoError(t, err)
	truncated := data[:3*ChunkSize+2]

	entries, skips, err := ReadEntries("test.vpp", h, truncated, ReadOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, skips, 1)
	assert.Equal(t, uint64(3*ChunkSize), skips[0].Entry.Offset)
}

func TestReadEntriesDirectoryOverrun(t *testing.T) {
	t.Parallel()

	data := testutil.BuildV1(t, []testutil.Member{{Name: "a.txt", Data: []byte("a")}})
	binary.LittleEndian.PutUint32(data[8:], MaxFiles)
	h, err := ReadHeader("test.vpp", data)
	require.NoError(t, err)

	_, _, err = ReadEntries("test.vpp", h, data, ReadOptions{})
	require.ErrorIs(t, err, vfstype.ErrValidation)
}

func TestReadEntriesV2Uncompressed(t *testing.T) {
	t.Parallel()

	members := []testutil.Member{
		{Name: "one.tbl", Data: []byte("first member")},
		{Name: "two.peg", Data: bytes.Repeat([]byte{7}, 3000)},
		{Name: "three.txt", Data: []byte("third")},
	}
	data := testutil.BuildV2(t, members, false)

	h, err := ReadHeader("v2.vpp", data)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), h.Version)
	assert.Equal(t, "synthetic", h.Name)
	assert.False(t, h.Compressed())

	entries, skips, err := ReadEntries("v2.vpp", h, data, ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, skips)
	require.Len(t, entries, len(members))
	for i, e := range entries {
		assert.Equal(t, members[i].Name, e.Name)
		assert.Equal(t, i, e.Index)
		assert.Equal(t, members[i].Data, data[e.Offset:e.End()])
	}
}

func TestReadEntriesV2Compressed(t *testing.T) {
	t.Parallel()

	members := []testutil.Member{
		{Name: "a.txt", Data: []byte("alpha")},
		{Name: "b.bin", Data: bytes.Repeat([]byte("b"), 4097)},
	}
	raw := testutil.BuildV2(t, members, true)

	h, err := ReadHeader("c.vpp", raw)
	require.NoError(t, err)
	require.True(t, h.Compressed())

	dataOffset := h.DataOffset()
	zr, err := zlib.NewReader(bytes.NewReader(raw[dataOffset : dataOffset+uint64(h.CompressedDataSize)]))
	require.NoError(t, err)
	payload, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Len(t, payload, int(h.UncompressedDataSize))

	cached := append(bytes.Clone(raw[:dataOffset]), payload...)
	entries, skips, err := ReadEntries("c.vpp", h, cached, ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, skips)
	require.Len(t, entries, 2)
	for i, e := range entries {
		assert.Less(t, e.End()-dataOffset, uint64(len(payload)))
		assert.Equal(t, members[i].Data, cached[e.Offset:e.End()])
	}
}

func TestReadEntriesV2ShortFilenameTable(t *testing.T) {
	t.Parallel()

	data := testutil.BuildV2(t, []testutil.Member{
		{Name: "a", Data: []byte("a")},
		{Name: "b", Data: []byte("b")},
	}, false)
	// Claim only the first name's bytes.
	binary.LittleEndian.PutUint32(data[0x48:], 2)

	h, err := ReadHeader("v2.vpp", data)
	require.NoError(t, err)
	_, _, err = ReadEntries("v2.vpp", h, data, ReadOptions{})
	require.ErrorIs(t, err, vfstype.ErrValidation)
}
