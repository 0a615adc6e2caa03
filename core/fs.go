package vpp

import (
	"bytes"
	"io"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/meigma/vpp/core/internal/file"
)

// Interface compliance.
var (
	_ fs.FS         = (*VFS)(nil)
	_ fs.StatFS     = (*VFS)(nil)
	_ fs.ReadFileFS = (*VFS)(nil)
	_ fs.ReadDirFS  = (*VFS)(nil)
)

// The fs.FS view of a VFS lists root archives at ".". Root archives and
// nested containers with at least one child are directories; every other
// entry is a regular file. A root archive appears under its base name, with
// a "~N" suffix when two loaded archives share a base name.

// Open implements fs.FS.
//
// The returned file holds a reference to the archive mapping and stays
// readable after Clear until it is closed.
func (v *VFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if name == "." {
		return &openDir{name: ".", entries: v.rootDirEntries()}, nil
	}
	h, ok := v.byFS[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	n := &v.nodes[h]
	if len(n.children) > 0 {
		return &openDir{name: name, modTime: n.modTime, entries: v.childDirEntries(n)}, nil
	}

	m := v.maps[n.backing]
	if !m.Acquire() {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrClosed}
	}
	f, err := file.Open(m, name, n.offsetInRoot, n.size, n.modTime)
	if err != nil {
		_ = m.Release() //nolint:errcheck // open already failed
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return f, nil
}

// Stat implements fs.StatFS.
func (v *VFS) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if name == "." {
		return file.NewDirInfo(".", time.Time{}), nil
	}
	h, ok := v.byFS[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	info, err := nodeInfo(&v.nodes[h])
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return info, nil
}

// ReadFile implements fs.ReadFileFS.
//
// ReadFile returns a copy of the entry's raw bytes. Unlike Open it also
// works on containers, returning the container's own bytes.
func (v *VFS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	h, ok := v.byFS[name]
	if !ok {
		if name == "." {
			return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
		}
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	n := &v.nodes[h]
	data := v.maps[n.backing].Bytes()
	return bytes.Clone(data[n.offsetInRoot : n.offsetInRoot+n.size]), nil
}

// ReadDir implements fs.ReadDirFS.
// Entries are sorted by name.
func (v *VFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if name == "." {
		return v.rootDirEntries(), nil
	}
	h, ok := v.byFS[name]
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	n := &v.nodes[h]
	if len(n.children) == 0 {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errNotDir}
	}
	return v.childDirEntries(n), nil
}

// rootDirEntries lists the root archives. Callers hold mu.
func (v *VFS) rootDirEntries() []fs.DirEntry {
	entries := make([]fs.DirEntry, 0, len(v.roots))
	for _, h := range v.roots {
		entries = append(entries, dirEntry(&v.nodes[h]))
	}
	sortDirEntries(entries)
	return entries
}

// childDirEntries lists the children of n. Callers hold mu.
func (v *VFS) childDirEntries(n *node) []fs.DirEntry {
	entries := make([]fs.DirEntry, 0, len(n.children))
	for _, c := range n.children {
		child := &v.nodes[c]
		// Children whose fs path collided with an earlier sibling are only
		// reachable through Entry.
		if h, ok := v.byFS[child.fsPath]; !ok || h != c {
			continue
		}
		entries = append(entries, dirEntry(child))
	}
	sortDirEntries(entries)
	return entries
}

func sortDirEntries(entries []fs.DirEntry) {
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
}

func dirEntry(n *node) fs.DirEntry {
	info, err := nodeInfo(n)
	if err != nil {
		return file.NewDirEntry(file.NewDirInfo(file.Base(n.fsPath), n.modTime), err)
	}
	return file.NewDirEntry(info, nil)
}

func nodeInfo(n *node) (fs.FileInfo, error) {
	name := file.Base(n.fsPath)
	if len(n.children) > 0 {
		return file.NewDirInfo(name, n.modTime), nil
	}
	return file.NewInfo(name, n.size, n.modTime)
}

// openDir implements fs.ReadDirFile for root archives and containers.
// The listing is a snapshot taken at Open.
type openDir struct {
	name    string
	modTime time.Time
	entries []fs.DirEntry
	offset  int
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return file.NewDirInfo(file.Base(d.name), d.modTime), nil
}

func (d *openDir) Close() error {
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return slices.Clone(rest), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return slices.Clone(rest[:n]), nil
}
