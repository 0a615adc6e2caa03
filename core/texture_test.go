package vpp

import (
	"bytes"
	"context"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/vpp/core/internal/testutil"
)

// texturePalette stores red at raw slot 16 and blue at raw slot 3. Slot 16
// is palette index 8 after the slot permutation; slot 3 is unaffected.
func texturePalette() [256]uint16 {
	var palette [256]uint16
	palette[16] = 0x801F
	palette[3] = 0xFC00
	return palette
}

func textureFrames() []testutil.Frame {
	return []testutil.Frame{
		{Name: "icon_a", Width: 2, Height: 1, Format: 0x104, Data: testutil.IndexedFrame(texturePalette(), []byte{8, 3})},
		{Name: "icon_b", Width: 1, Height: 1, Format: 0x7, Data: []byte{0x10, 0x20, 0x30, 0x00}},
		{Name: "odd", Width: 1, Height: 1, Format: 0x99, Data: []byte{1, 2, 3, 4}},
	}
}

// loadTextureArchive loads an archive holding one texture container and
// returns the container entry.
func loadTextureArchive(t *testing.T, v *VFS) EntryView {
	t.Helper()

	dir := t.TempDir()
	peg := testutil.BuildTexture(t, textureFrames())
	path := writeV1(t, dir, "interface.vpp", []testutil.Member{
		{Name: "readme.txt", Data: seq(7, 0)},
		{Name: "icons.peg", Data: peg},
	})
	root, err := v.AddRootArchive(path)
	require.NoError(t, err)
	container, ok := root.Child("icons.peg")
	require.True(t, ok)
	return container
}

func TestTextureExpansion(t *testing.T) {
	t.Parallel()

	v := New()
	defer v.Close()
	peg := loadTextureArchive(t, v)

	assert.True(t, peg.IsContainer())
	frames := peg.Children()
	require.Len(t, frames, 3)
	assert.Equal(t, 1+2+3, v.Len())

	want := textureFrames()
	data := peg.Bytes()
	for i, f := range frames {
		assert.Equal(t, want[i].Name, f.Name())
		assert.Equal(t, 2, f.Depth())
		assert.Equal(t, i, f.Index())
		assert.Equal(t, uint64(len(want[i].Data)), f.Size())
		assert.Equal(t, peg.OffsetInRoot()+f.OffsetInParent(), f.OffsetInRoot())
		assert.Equal(t, data[f.OffsetInParent():f.OffsetInParent()+f.Size()], f.Bytes())
		assert.Equal(t, want[i].Data, f.Bytes())
	}
	// The last frame runs to the end of the container.
	last := frames[len(frames)-1]
	assert.Equal(t, peg.Size(), last.OffsetInParent()+last.Size())
}

func TestDecodeFrame(t *testing.T) {
	t.Parallel()

	v := New()
	defer v.Close()
	frames := loadTextureArchive(t, v).Children()

	img, err := v.DecodeFrame(frames[0])
	require.NoError(t, err)
	assert.Equal(t, "icon_a", img.Name)
	assert.Equal(t, FormatRGBA5551Indexed, img.Format)
	assert.Equal(t, []uint32{0xFFF80000, 0xFF0000F8}, img.Pix)

	img, err = v.DecodeFrame(frames[1])
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFF102030), img.ARGBAt(0, 0))

	img, err = v.DecodeFrame(frames[2])
	require.NoError(t, err, "unknown formats decode to an empty image")
	assert.Empty(t, img.Pix)
	assert.True(t, img.Bounds().Empty())
	assert.Equal(t, "odd", img.Name)
}

func TestDecodeFrameRejectsNonFrames(t *testing.T) {
	t.Parallel()

	v := New()
	defer v.Close()
	peg := loadTextureArchive(t, v)

	_, err := v.DecodeFrame(peg)
	assert.ErrorIs(t, err, ErrNotFrame)

	_, err = v.DecodeFrame(peg.Root())
	assert.ErrorIs(t, err, ErrNotFrame)

	_, err = v.DecodeFrames(peg.Root())
	assert.ErrorIs(t, err, ErrNotFrame)

	frame := peg.Children()[0]
	require.NoError(t, v.Clear())
	_, err = v.DecodeFrame(frame)
	assert.ErrorIs(t, err, ErrCleared)
}

func TestDecodeFrames(t *testing.T) {
	t.Parallel()

	v := New()
	defer v.Close()
	peg := loadTextureArchive(t, v)

	images, err := v.DecodeFrames(peg)
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, []string{"icon_a", "icon_b", "odd"}, []string{images[0].Name, images[1].Name, images[2].Name})

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, images[0]))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, decoded.Bounds().Dx())
	r, g, b, a := decoded.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xF8F8, 0, 0, 0xFFFF}, []uint32{r, g, b, a})
}

func TestWithoutTextureExpander(t *testing.T) {
	t.Parallel()

	v := New(WithoutExpander("peg"))
	defer v.Close()
	peg := loadTextureArchive(t, v)
	assert.False(t, peg.IsContainer())
	assert.Equal(t, 3, v.Len())
}

func TestCustomExpander(t *testing.T) {
	t.Parallel()

	halves := ExpanderFunc(func(_ string, data []byte) (Expansion, error) {
		n := uint64(len(data) / 2)
		return Expansion{Members: []Member{
			{Name: "front", Index: 0, Offset: 0, Size: n},
			{Name: "back", Index: 1, Offset: n, Size: uint64(len(data)) - n},
			{Name: "outside", Index: 2, Offset: uint64(len(data)), Size: 10},
		}}, nil
	})

	dir := t.TempDir()
	path := writeV1(t, dir, "split.vpp", []testutil.Member{{Name: "blob.half", Data: []byte("abcdef")}})

	v := New(WithExpander(".HALF", halves))
	defer v.Close()
	root, err := v.AddRootArchive(path)
	require.NoError(t, err)

	member := root.Children()[0]
	children := member.Children()
	require.Len(t, children, 2, "members outside the container are dropped")
	assert.Equal(t, "abc", string(children[0].Bytes()))
	assert.Equal(t, "def", string(children[1].Bytes()))
}

func TestBrokenTextureKeepsContainer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeV1(t, dir, "broken.vpp", []testutil.Member{{Name: "bad.peg", Data: []byte("not a texture at all, really")}})

	v := New()
	defer v.Close()
	root, err := v.AddRootArchive(path)
	require.NoError(t, err)

	peg := root.Children()[0]
	assert.Equal(t, "bad.peg", peg.Name())
	assert.False(t, peg.IsContainer())
}

func TestMunge(t *testing.T) {
	t.Parallel()

	for i := range 256 {
		assert.Equal(t, i, Munge(Munge(i)))
	}
	assert.Equal(t, 16, Munge(8))
	assert.Equal(t, 3, Munge(3))
}

func TestDecodeFrameOversizedDimensions(t *testing.T) {
	t.Parallel()

	frames := []testutil.Frame{
		{Name: "huge", Width: 0xFFFF, Height: 0xFFFF, Format: 0x104, Data: testutil.IndexedFrame(texturePalette(), []byte{1})},
		{Name: "huge32", Width: 0xFFFF, Height: 0xFFFF, Format: 0x7, Data: seq(64, 1)},
		{Name: "huge_odd", Width: 0xFFFF, Height: 0xFFFF, Format: 0x99, Data: seq(64, 2)},
	}
	v := New()
	defer v.Close()
	root, err := v.AddRootArchive(writeV1(t, t.TempDir(), "hostile.vpp", []testutil.Member{
		{Name: "tex.peg", Data: testutil.BuildTexture(t, frames)},
	}))
	require.NoError(t, err)
	peg, ok := root.Child("tex.peg")
	require.True(t, ok)
	children := peg.Children()
	require.Len(t, children, 3)

	tests := []struct {
		name    string
		frame   EntryView
		wantErr error
	}{
		{name: "indexed", frame: children[0], wantErr: ErrTruncatedFrame},
		{name: "rgba32", frame: children[1], wantErr: ErrTruncatedFrame},
		{name: "unknown format", frame: children[2]},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			img, err := v.DecodeFrame(tc.frame)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, img)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, img.Pix)
		})
	}

	dest := t.TempDir()
	stats, err := v.CopyDir(context.Background(), dest, "hostile.vpp/tex.peg", CopyWithDecodedFrames(true))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, 3, stats.Dropped)
	assert.NoFileExists(t, filepath.Join(dest, "hostile.vpp", "tex.peg.frames", "huge.png"))
}
