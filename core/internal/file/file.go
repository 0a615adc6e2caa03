// Package file implements fs.File and fs.FileInfo for virtual filesystem
// entries backed by a memory mapping.
package file

import (
	"fmt"
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/meigma/vpp/core/internal/sizing"
	"github.com/meigma/vpp/core/internal/vfstype"
)

// Source is the backing store of an open File. The File owns one reference
// to the source and drops it on Close.
type Source interface {
	io.ReaderAt
	Release() error
}

// File implements fs.File over a byte range of a Source.
//
// A File stays readable after the VFS that opened it is cleared, because it
// holds its own reference to the mapping.
type File struct {
	name    string
	modTime time.Time

	mu      sync.Mutex
	src     Source
	section *io.SectionReader
	closed  bool
}

// Interface compliance.
var (
	_ fs.File     = (*File)(nil)
	_ io.ReaderAt = (*File)(nil)
	_ io.Seeker   = (*File)(nil)
)

// Open returns a File reading size bytes of src starting at off.
// The caller transfers one reference of src to the File.
func Open(src Source, name string, off, size uint64, modTime time.Time) (*File, error) {
	o, err := sizing.ToInt64(off, vfstype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	n, err := sizing.ToInt64(size, vfstype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	return &File{
		name:    name,
		modTime: modTime,
		src:     src,
		section: io.NewSectionReader(src, o, n),
	}, nil
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, &fs.PathError{Op: "read", Path: f.name, Err: fs.ErrClosed}
	}
	return f.section.Read(p)
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, &fs.PathError{Op: "read", Path: f.name, Err: fs.ErrClosed}
	}
	if off < 0 {
		return 0, &fs.PathError{Op: "read", Path: f.name, Err: fmt.Errorf("negative offset %d", off)}
	}
	return f.section.ReadAt(p, off)
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, &fs.PathError{Op: "seek", Path: f.name, Err: fs.ErrClosed}
	}
	return f.section.Seek(offset, whence)
}

// Stat returns file info.
func (f *File) Stat() (fs.FileInfo, error) {
	return &Info{name: Base(f.name), size: f.section.Size(), modTime: f.modTime}, nil
}

// Close releases the File's reference to its source.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return &fs.PathError{Op: "close", Path: f.name, Err: fs.ErrClosed}
	}
	f.closed = true
	return f.src.Release()
}

// Info implements fs.FileInfo for regular files.
type Info struct {
	name    string
	size    int64
	modTime time.Time
}

// NewInfo creates an Info for an entry of the given size.
func NewInfo(name string, size uint64, modTime time.Time) (*Info, error) {
	n, err := sizing.ToInt64(size, vfstype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	return &Info{name: name, size: n, modTime: modTime}, nil
}

func (fi *Info) Name() string       { return fi.name }
func (fi *Info) Size() int64        { return fi.size }
func (fi *Info) Mode() fs.FileMode  { return 0o444 }
func (fi *Info) ModTime() time.Time { return fi.modTime }
func (fi *Info) IsDir() bool        { return false }
func (fi *Info) Sys() any           { return nil }

// DirInfo implements fs.FileInfo for containers and the VFS root.
type DirInfo struct {
	name    string
	modTime time.Time
}

// NewDirInfo creates a DirInfo with the given name.
func NewDirInfo(name string, modTime time.Time) *DirInfo {
	return &DirInfo{name: name, modTime: modTime}
}

func (di *DirInfo) Name() string       { return di.name }
func (di *DirInfo) Size() int64        { return 0 }
func (di *DirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o555 }
func (di *DirInfo) ModTime() time.Time { return di.modTime }
func (di *DirInfo) IsDir() bool        { return true }
func (di *DirInfo) Sys() any           { return nil }

// DirEntry implements fs.DirEntry by wrapping fs.FileInfo.
type DirEntry struct {
	info    fs.FileInfo
	infoErr error
}

// NewDirEntry creates a DirEntry wrapping the given FileInfo.
func NewDirEntry(info fs.FileInfo, err error) *DirEntry {
	return &DirEntry{info: info, infoErr: err}
}

func (de *DirEntry) Name() string               { return de.info.Name() }
func (de *DirEntry) IsDir() bool                { return de.info.IsDir() }
func (de *DirEntry) Type() fs.FileMode          { return de.info.Mode().Type() }
func (de *DirEntry) Info() (fs.FileInfo, error) { return de.info, de.infoErr }
