package vpp

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/vpp/core/internal/archive"
	"github.com/meigma/vpp/core/internal/testutil"
)

func seq(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i*7)
	}
	return b
}

func writeV1(t *testing.T, dir, name string, members []testutil.Member) string {
	t.Helper()
	return testutil.WriteFile(t, dir, name, testutil.BuildV1(t, members))
}

func TestAddRootArchiveV1(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	small := seq(10, 1)
	large := seq(2050, 9)
	path := writeV1(t, dir, "misc.vpp", []testutil.Member{
		{Name: "small.txt", Data: small},
		{Name: "large.bin", Data: large},
	})

	v := New()
	defer v.Close()

	root, err := v.AddRootArchive(path)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.Equal(t, "misc.vpp", root.Name())
	assert.Equal(t, ".vpp", root.Extension())
	assert.Equal(t, -1, root.Index())
	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, 3, v.Len())

	children := root.Children()
	require.Len(t, children, 2)

	a, b := children[0], children[1]
	assert.Equal(t, "small.txt", a.Name())
	assert.Equal(t, "large.bin", b.Name())
	assert.Equal(t, 0, a.Index())
	assert.Equal(t, 1, b.Index())
	assert.Equal(t, 1, a.Depth())
	assert.Equal(t, small, a.Bytes())
	assert.Equal(t, large, b.Bytes())

	// Aligned, non-overlapping ranges.
	assert.Zero(t, a.OffsetInRoot()%archive.ChunkSize)
	assert.Zero(t, b.OffsetInRoot()%archive.ChunkSize)
	assert.LessOrEqual(t, a.OffsetInRoot()+a.Size(), b.OffsetInRoot())
	assert.Equal(t, a.OffsetInRoot(), a.OffsetInParent())

	parent, ok := a.Parent()
	require.True(t, ok)
	assert.Equal(t, root.Handle(), parent.Handle())
	assert.Equal(t, root.Handle(), b.Root().Handle())

	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	abs = filepath.ToSlash(abs)
	assert.Equal(t, abs, root.AbsolutePath())
	assert.Equal(t, abs+"/small.txt", a.AbsolutePath())
	assert.Equal(t, filepath.ToSlash(path)+"/large.bin", b.RelativePath())

	got, ok := v.Entry(abs + "/large.bin")
	require.True(t, ok)
	assert.Equal(t, b.Handle(), got.Handle())

	child, ok := root.Child("small.txt")
	require.True(t, ok)
	assert.Equal(t, a.Handle(), child.Handle())
}

func TestAddRootArchiveDedup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeV1(t, dir, "dup.vpp", []testutil.Member{{Name: "a", Data: seq(5, 0)}})

	v := New()
	defer v.Close()

	first, err := v.AddRootArchive(path)
	require.NoError(t, err)
	n := v.Len()

	// A different spelling of the same file still dedups on the absolute path.
	second, err := v.AddRootArchive(filepath.Join(dir, ".", "dup.vpp"))
	require.NoError(t, err)
	assert.Equal(t, first.Handle(), second.Handle())
	assert.Equal(t, n, v.Len())
	assert.Len(t, second.Children(), 1)
	assert.Len(t, v.Roots(), 1)
}

func TestAddRootArchiveRejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := testutil.BuildV1(t, []testutil.Member{{Name: "a", Data: seq(5, 0)}})
	corrupt := bytes.Clone(good)
	corrupt[0] ^= 0xFF

	tooMany := bytes.Clone(good)
	tooMany[8], tooMany[9] = 0xFF, 0xFF

	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.vpp"), 0o750))

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"missing", filepath.Join(dir, "missing.vpp"), os.ErrNotExist},
		{"directory", filepath.Join(dir, "folder.vpp"), ErrNotArchive},
		{"wrong extension", testutil.WriteFile(t, dir, "data.bin", good), ErrNotArchive},
		{"bad signature", testutil.WriteFile(t, dir, "corrupt.vpp", corrupt), ErrValidation},
		{"too many files", testutil.WriteFile(t, dir, "many.vpp", tooMany), ErrValidation},
		{"truncated", testutil.WriteFile(t, dir, "short.vpp", good[:8]), ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			v := New()
			defer v.Close()

			_, err := v.AddRootArchive(tc.path)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, 0, v.Len())
			assert.Empty(t, v.Roots())
		})
	}
}

func TestAddRootArchiveUppercaseExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeV1(t, dir, "SOUNDS.VPP", []testutil.Member{{Name: "a.wav", Data: seq(5, 0)}})

	v := New()
	defer v.Close()

	root, err := v.AddRootArchive(path)
	require.NoError(t, err)
	assert.Equal(t, ".vpp", root.Extension())
}

func TestAddRootArchiveSkipsMembers(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	dir := t.TempDir()
	// The last member fills its chunk exactly, so it ends at end of file.
	path := writeV1(t, dir, "skips.vpp", []testutil.Member{
		{Name: "empty.txt", Data: nil},
		{Name: "kept.txt", Data: seq(3, 0)},
		{Name: "exact.bin", Data: seq(archive.ChunkSize, 2)},
	})

	v := New(WithLogger(logger))
	defer v.Close()

	root, err := v.AddRootArchive(path)
	require.NoError(t, err)
	require.Len(t, root.Children(), 1)
	assert.Equal(t, "kept.txt", root.Children()[0].Name())
	assert.Equal(t, 1, root.Children()[0].Index())

	out := logs.String()
	assert.Contains(t, out, "entry=empty.txt")
	assert.Contains(t, out, "entry=exact.bin")
	assert.Equal(t, 2, strings.Count(out, "level=WARN"))

	exact := New(WithExactFitMembers(true))
	defer exact.Close()
	root, err = exact.AddRootArchive(path)
	require.NoError(t, err)
	require.Len(t, root.Children(), 2)
	assert.Equal(t, seq(archive.ChunkSize, 2), root.Children()[1].Bytes())
}

func TestAddRootArchiveV2(t *testing.T) {
	t.Parallel()

	members := []testutil.Member{
		{Name: "alpha.txt", Data: seq(100, 3)},
		{Name: "beta.bin", Data: seq(5000, 4)},
		{Name: "gamma.tga", Data: seq(1, 5)},
	}

	for _, compressed := range []bool{false, true} {
		name := "plain"
		if compressed {
			name = "compressed"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			cacheDir := filepath.Join(dir, "cache")
			raw := testutil.BuildV2(t, members, compressed)
			path := testutil.WriteFile(t, dir, "level.vpp", raw)

			v := New(WithCacheDir(cacheDir))
			defer v.Close()

			root, err := v.AddRootArchive(path)
			require.NoError(t, err)
			children := root.Children()
			require.Len(t, children, len(members))
			for i, c := range children {
				assert.Equal(t, members[i].Name, c.Name())
				assert.Equal(t, members[i].Data, c.Bytes())
				assert.Less(t, c.OffsetInRoot()+c.Size(), root.Size())
			}

			if !compressed {
				assert.Nil(t, v.Cache(), "plain archives never open the cache")
				assert.Equal(t, uint64(len(raw)), root.Size())
				return
			}

			c := v.Cache()
			require.NotNil(t, c)
			entries, err := c.Entries()
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "level.vpp", entries[0].Key.Source)
			assert.Equal(t, entries[0].Meta.Size(), root.Size())

			// A second VFS reuses the cached file.
			again := New(WithCacheDir(cacheDir))
			defer again.Close()
			root2, err := again.AddRootArchive(path)
			require.NoError(t, err)
			assert.Equal(t, members[1].Data, root2.Children()[1].Bytes())
			entries, err = again.Cache().Entries()
			require.NoError(t, err)
			assert.Len(t, entries, 1)

			// Replacing the archive under the same name must not serve the
			// stale cache entry.
			replaced := []testutil.Member{
				{Name: "alpha.txt", Data: seq(100, 30)},
				{Name: "beta.bin", Data: seq(5000, 40)},
				{Name: "gamma.tga", Data: seq(1, 50)},
			}
			staged := testutil.WriteFile(t, dir, "level.vpp.new", testutil.BuildV2(t, replaced, true))
			require.NoError(t, os.Rename(staged, path))

			fresh := New(WithCacheDir(cacheDir))
			defer fresh.Close()
			root3, err := fresh.AddRootArchive(path)
			require.NoError(t, err)
			for i, c := range root3.Children() {
				assert.Equal(t, replaced[i].Data, c.Bytes())
			}
			entries, err = fresh.Cache().Entries()
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.NotEqual(t, entries[0].Key.Digest, entries[1].Key.Digest)
			assert.Equal(t, "level.vpp", entries[0].Key.Source)
			assert.Equal(t, "level.vpp", entries[1].Key.Source)
		})
	}
}

func TestAddRootArchiveCorruptStream(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	raw := testutil.BuildV2(t, []testutil.Member{{Name: "a", Data: seq(4000, 1)}}, true)
	h, err := archive.ReadHeader("x", raw)
	require.NoError(t, err)
	// Replace the zlib stream header with garbage.
	raw[h.DataOffset()] = 0x00
	raw[h.DataOffset()+1] = 0x00
	path := testutil.WriteFile(t, dir, "bad.vpp", raw)

	v := New(WithCacheDir(filepath.Join(dir, "cache")))
	defer v.Close()

	_, err = v.AddRootArchive(path)
	require.ErrorIs(t, err, ErrDecompression)
	assert.Equal(t, 0, v.Len())

	entries, err := v.Cache().Entries()
	require.NoError(t, err)
	assert.Empty(t, entries, "failed inflation must not leave a cache entry")
}

func TestAddRootArchiveDecoderLimit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	raw := testutil.BuildV2(t, []testutil.Member{{Name: "a", Data: seq(4000, 1)}}, true)
	path := testutil.WriteFile(t, dir, "big.vpp", raw)

	v := New(WithCacheDir(filepath.Join(dir, "cache")), WithMaxDecoderMemory(1024))
	defer v.Close()

	_, err := v.AddRootArchive(path)
	require.ErrorIs(t, err, ErrDecompression)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestClearInvalidatesViews(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeV1(t, dir, "c.vpp", []testutil.Member{{Name: "a", Data: seq(5, 0)}})

	v := New()
	root, err := v.AddRootArchive(path)
	require.NoError(t, err)
	child := root.Children()[0]
	require.True(t, child.Valid())

	require.NoError(t, v.Clear())
	assert.Equal(t, 0, v.Len())
	assert.False(t, root.Valid())
	assert.False(t, child.Valid())
	assert.Nil(t, child.Bytes())
	assert.Empty(t, child.Name())
	_, ok := v.Entry(root.AbsolutePath())
	assert.False(t, ok)

	// Reloading after Clear works and yields fresh views.
	root, err = v.AddRootArchive(path)
	require.NoError(t, err)
	assert.True(t, root.Valid())
	assert.Equal(t, seq(5, 0), root.Children()[0].Bytes())
	require.NoError(t, v.Close())
}

func TestEntriesAndWalk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeV1(t, dir, "one.vpp", []testutil.Member{{Name: "a", Data: seq(5, 0)}, {Name: "b", Data: seq(5, 1)}})
	second := writeV1(t, dir, "two.vpp", []testutil.Member{{Name: "c", Data: seq(5, 2)}})

	v := New()
	defer v.Close()
	_, err := v.AddRootArchive(first)
	require.NoError(t, err)
	_, err = v.AddRootArchive(second)
	require.NoError(t, err)

	var names []string
	for e := range v.Entries() {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"one.vpp", "a", "b", "two.vpp", "c"}, names)

	count := 0
	stop := assert.AnError
	err = v.Walk(func(e EntryView) error {
		count++
		if e.Name() == "b" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, count)
}

func TestSameBaseNameRoots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeV1(t, filepath.Join(dir, "a"), "shared.vpp", []testutil.Member{{Name: "x", Data: seq(5, 0)}})
	second := writeV1(t, filepath.Join(dir, "b"), "shared.vpp", []testutil.Member{{Name: "y", Data: seq(5, 1)}})

	v := New()
	defer v.Close()
	r1, err := v.AddRootArchive(first)
	require.NoError(t, err)
	r2, err := v.AddRootArchive(second)
	require.NoError(t, err)

	assert.Equal(t, "shared.vpp", r1.FSPath())
	assert.Equal(t, "shared.vpp~2", r2.FSPath())
	assert.Equal(t, "shared.vpp~2/y", r2.Children()[0].FSPath())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeV1(t, dir, "fonts.vpp", []testutil.Member{{Name: "font.vf3", Data: seq(9, 0)}})

	v := New()
	defer v.Close()

	e, err := v.Resolve(dir, "fonts.vpp", "font.vf3")
	require.NoError(t, err)
	assert.Equal(t, seq(9, 0), e.Bytes())
	assert.Len(t, v.Roots(), 1)

	root, err := v.Resolve(dir, "fonts.vpp")
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.Len(t, v.Roots(), 1)

	_, err = v.Resolve(dir, "fonts.vpp", "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
