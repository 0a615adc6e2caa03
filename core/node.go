package vpp

import (
	"path"
	"strings"
	"time"
)

// Handle identifies a node in a VFS arena.
type Handle int32

// InvalidHandle is the parent handle of root archives.
const InvalidHandle Handle = -1

// node is one VFS entry: a root archive, an archive member or a nested
// container member. Nodes are immutable once committed.
type node struct {
	name    string
	ext     string
	absPath string
	relPath string
	fsPath  string

	index          int
	size           uint64
	offsetInParent uint64
	offsetInRoot   uint64
	depth          int
	modTime        time.Time

	backing  int // index into VFS.maps
	parent   Handle
	root     Handle
	children []Handle
}

// extension returns the lowercased extension of name including the dot.
func extension(name string) string {
	return strings.ToLower(path.Ext(name))
}

// EntryView is a read-only view of a VFS node.
//
// Views are cheap values. A view becomes invalid when the VFS is cleared;
// accessors on an invalid view return zero values.
type EntryView struct {
	v   *VFS
	h   Handle
	gen uint64
}

// node returns a copy of the viewed node, or false if the view is stale.
func (e EntryView) node() (node, bool) {
	if e.v == nil {
		return node{}, false
	}
	e.v.mu.RLock()
	defer e.v.mu.RUnlock()
	if e.gen != e.v.gen || e.h < 0 || int(e.h) >= len(e.v.nodes) {
		return node{}, false
	}
	return e.v.nodes[e.h], true
}

// Valid reports whether the view still refers to a live node.
func (e EntryView) Valid() bool {
	_, ok := e.node()
	return ok
}

// Handle returns the node's arena handle.
func (e EntryView) Handle() Handle { return e.h }

// Name returns the entry's display name.
func (e EntryView) Name() string {
	n, _ := e.node()
	return n.name
}

// Extension returns the lowercased extension including the leading dot.
func (e EntryView) Extension() string {
	n, _ := e.node()
	return n.ext
}

// Size returns the entry length in bytes.
func (e EntryView) Size() uint64 {
	n, _ := e.node()
	return n.size
}

// Index returns the entry's position in its container, or -1 for root archives.
func (e EntryView) Index() int {
	n, ok := e.node()
	if !ok {
		return -1
	}
	return n.index
}

// Depth returns 0 for root archives, 1 for their members and so on.
func (e EntryView) Depth() int {
	n, _ := e.node()
	return n.depth
}

// OffsetInParent returns the entry's byte offset within its parent's bytes.
func (e EntryView) OffsetInParent() uint64 {
	n, _ := e.node()
	return n.offsetInParent
}

// OffsetInRoot returns the entry's byte offset within the root archive's
// effective backing store.
func (e EntryView) OffsetInRoot() uint64 {
	n, _ := e.node()
	return n.offsetInRoot
}

// AbsolutePath returns the unique key of the entry: the root archive's
// absolute path joined with member names.
func (e EntryView) AbsolutePath() string {
	n, _ := e.node()
	return n.absPath
}

// RelativePath returns the root archive path as supplied to AddRootArchive
// joined with member names.
func (e EntryView) RelativePath() string {
	n, _ := e.node()
	return n.relPath
}

// ModTime returns the modification time of the root archive file.
func (e EntryView) ModTime() time.Time {
	n, _ := e.node()
	return n.modTime
}

// FSPath returns the entry's path in the VFS fs.FS view.
func (e EntryView) FSPath() string {
	n, _ := e.node()
	return n.fsPath
}

// IsRoot reports whether the entry is a root archive.
func (e EntryView) IsRoot() bool {
	n, ok := e.node()
	return ok && n.parent == InvalidHandle
}

// IsContainer reports whether the entry has child entries.
func (e EntryView) IsContainer() bool {
	n, _ := e.node()
	return len(n.children) > 0
}

// Parent returns the containing entry. ok is false for root archives and
// stale views.
func (e EntryView) Parent() (EntryView, bool) {
	n, ok := e.node()
	if !ok || n.parent == InvalidHandle {
		return EntryView{}, false
	}
	return EntryView{v: e.v, h: n.parent, gen: e.gen}, true
}

// Root returns the root archive containing the entry.
func (e EntryView) Root() EntryView {
	n, ok := e.node()
	if !ok {
		return EntryView{}
	}
	return EntryView{v: e.v, h: n.root, gen: e.gen}
}

// Children returns the entry's children in container order.
func (e EntryView) Children() []EntryView {
	n, ok := e.node()
	if !ok {
		return nil
	}
	views := make([]EntryView, len(n.children))
	for i, h := range n.children {
		views[i] = EntryView{v: e.v, h: h, gen: e.gen}
	}
	return views
}

// Child returns the direct child with the given name.
func (e EntryView) Child(name string) (EntryView, bool) {
	for _, c := range e.Children() {
		if c.Name() == name {
			return c, true
		}
	}
	return EntryView{}, false
}

// Bytes returns the entry's bytes from the memory-mapped backing store.
//
// The slice is read-only and only valid until the VFS is cleared. Use Open
// for access that must survive Clear. Bytes returns nil for stale views.
func (e EntryView) Bytes() []byte {
	if e.v == nil {
		return nil
	}
	e.v.mu.RLock()
	defer e.v.mu.RUnlock()
	if e.gen != e.v.gen || e.h < 0 || int(e.h) >= len(e.v.nodes) {
		return nil
	}
	n := &e.v.nodes[e.h]
	data := e.v.maps[n.backing].Bytes()
	return data[n.offsetInRoot : n.offsetInRoot+n.size : n.offsetInRoot+n.size]
}
