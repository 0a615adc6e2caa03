// Package fuse exposes a loaded VFS as a read-only FUSE filesystem.
//
// The mounted tree mirrors the VFS fs.FS view: each root archive is a
// directory at the top level, containers are directories, and leaf entries
// are regular files whose reads are served from the archive mapping.
package fuse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	vpp "github.com/meigma/vpp/core"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// VFS is the virtual filesystem to expose.
	VFS *vpp.VFS

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Mount mounts the VFS at the configured mountpoint. The caller must call
// Unmount on the returned Server when done. The mountpoint directory is
// created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.VFS == nil {
		return nil, fmt.Errorf("vfs is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &node{options: &options, name: "."}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "vpp",
			Name:       "vpp",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("vpp filesystem mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// node is a directory or file addressed by its fs.FS path in the VFS.
// Nodes hold no entry state of their own, so a Clear followed by a reload
// is picked up on the next lookup.
type node struct {
	gofuse.Inode
	options *Options
	name    string
}

var (
	_ gofuse.InodeEmbedder = (*node)(nil)
	_ gofuse.NodeLookuper  = (*node)(nil)
	_ gofuse.NodeReaddirer = (*node)(nil)
	_ gofuse.NodeGetattrer = (*node)(nil)
	_ gofuse.NodeOpener    = (*node)(nil)
)

func (n *node) child(name string) string {
	if n.name == "." {
		return name
	}
	return path.Join(n.name, name)
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	full := n.child(name)
	info, err := n.options.VFS.Stat(full)
	if err != nil {
		return nil, n.errno("lookup", full, err)
	}

	fillAttr(&out.Attr, info)
	mode := uint32(syscall.S_IFREG)
	if info.IsDir() {
		mode = syscall.S_IFDIR
	}
	child := n.NewInode(ctx, &node{options: n.options, name: full}, gofuse.StableAttr{Mode: mode})
	return child, 0
}

func (n *node) Readdir(_ context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := n.options.VFS.ReadDir(n.name)
	if err != nil {
		return nil, n.errno("readdir", n.name, err)
	}

	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(syscall.S_IFREG)
		if e.IsDir() {
			mode = syscall.S_IFDIR
		}
		list = append(list, fuse.DirEntry{Name: e.Name(), Mode: mode})
	}
	return gofuse.NewListDirStream(list), 0
}

func (n *node) Getattr(_ context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if h, ok := f.(*handle); ok {
		info, err := h.file.Stat()
		if err == nil {
			fillAttr(&out.Attr, info)
			return 0
		}
	}
	info, err := n.options.VFS.Stat(n.name)
	if err != nil {
		return n.errno("getattr", n.name, err)
	}
	fillAttr(&out.Attr, info)
	return 0
}

func (n *node) Open(_ context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}

	f, err := n.options.VFS.Open(n.name)
	if err != nil {
		return nil, 0, n.errno("open", n.name, err)
	}
	ra, ok := f.(io.ReaderAt)
	if !ok {
		_ = f.Close() //nolint:errcheck // directory handles carry no state
		return nil, 0, syscall.EISDIR
	}

	// Archive content is immutable while mapped.
	return &handle{file: f, reader: ra, logger: n.options.Logger, name: n.name}, fuse.FOPEN_KEEP_CACHE, 0
}

// errno maps a VFS error to a FUSE status. Unexpected errors are logged.
func (n *node) errno(op, name string, err error) syscall.Errno {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, fs.ErrInvalid):
		return syscall.EINVAL
	case errors.Is(err, fs.ErrClosed), errors.Is(err, vpp.ErrCleared):
		return syscall.ESTALE
	}
	n.options.Logger.Error("fuse operation failed", "op", op, "path", name, "error", err)
	return syscall.EIO
}

// handle is an open file. It keeps the archive mapping alive until Release.
type handle struct {
	file   fs.File
	reader io.ReaderAt
	logger *slog.Logger
	name   string
}

var (
	_ gofuse.FileReader   = (*handle)(nil)
	_ gofuse.FileReleaser = (*handle)(nil)
)

func (h *handle) Read(_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.reader.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("read failed", "path", h.name, "offset", off, "error", err)
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *handle) Release(_ context.Context) syscall.Errno {
	if err := h.file.Close(); err != nil && !errors.Is(err, fs.ErrClosed) {
		h.logger.Warn("release failed", "path", h.name, "error", err)
	}
	return 0
}

func fillAttr(out *fuse.Attr, info fs.FileInfo) {
	if info.IsDir() {
		out.Mode = syscall.S_IFDIR | 0o555
	} else {
		out.Mode = syscall.S_IFREG | 0o444
		out.Size = uint64(info.Size()) //nolint:gosec // sizes are validated on load
		out.Blocks = (out.Size + 511) / 512
	}
	mtime := info.ModTime()
	out.SetTimes(nil, &mtime, &mtime)
}
