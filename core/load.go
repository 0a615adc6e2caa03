package vpp

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/meigma/vpp/core/cache"
	"github.com/meigma/vpp/core/internal/archive"
	"github.com/meigma/vpp/core/internal/mmap"
	"github.com/meigma/vpp/core/internal/sizing"
	"github.com/meigma/vpp/core/internal/vfstype"
)

// LoadState names the stages an archive passes through in AddRootArchive.
type LoadState = vfstype.LoadState

// staging holds the nodes of one archive before they are committed.
// Handles inside staging are local indices.
type staging struct {
	nodes   []node
	byPath  map[string]Handle
	mapping *mmap.Mapping
	archive string
}

// AddRootArchive maps and indexes the archive at path.
//
// The path must name an existing regular file with a .vpp extension (case
// insensitive). Loading an archive whose absolute path is already loaded
// returns the existing root without parsing it again.
//
// Compressed archives are inflated once into the decompression cache and
// the cache file is mapped in place of the archive.
//
// Any failure leaves the VFS unchanged. Malformed members and nested
// containers are skipped with a warning instead of failing the load.
func (v *VFS) AddRootArchive(path string) (EntryView, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return EntryView{}, &fs.PathError{Op: "add", Path: path, Err: err}
	}
	abs = filepath.ToSlash(abs)

	if view, ok := v.loadedRoot(abs); ok {
		v.log().Debug("archive already loaded", "archive", abs)
		return view, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return EntryView{}, &fs.PathError{Op: "add", Path: path, Err: err}
	}
	if info.IsDir() {
		return EntryView{}, &fs.PathError{Op: "add", Path: path, Err: fmt.Errorf("%w: is a directory", vfstype.ErrNotArchive)}
	}
	if !strings.EqualFold(filepath.Ext(path), ArchiveExtension) {
		return EntryView{}, &fs.PathError{Op: "add", Path: path, Err: fmt.Errorf("%w: extension is not %s", vfstype.ErrNotArchive, ArchiveExtension)}
	}

	st, err := v.stage(path, abs, info.ModTime())
	if err != nil {
		v.log().Debug("archive load failed", "archive", path, "state", vfstype.StateRejected, "error", err)
		return EntryView{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if h, ok := v.byPath[abs]; ok {
		// Lost a race with a concurrent load of the same archive.
		_ = st.mapping.Release() //nolint:errcheck // duplicate mapping is discarded
		return v.view(h), nil
	}
	root := v.commit(st)
	v.log().Debug("archive loaded", "archive", path, "state", vfstype.StateIndexed, "entries", len(st.nodes))
	return v.view(root), nil
}

// loadedRoot returns the root archive with absolute path abs if present.
func (v *VFS) loadedRoot(abs string) (EntryView, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	h, ok := v.byPath[abs]
	if !ok || v.nodes[h].parent != InvalidHandle {
		return EntryView{}, false
	}
	return v.view(h), true
}

// stage maps the archive and builds its nodes without touching the VFS.
func (v *VFS) stage(path, abs string, modTime time.Time) (*staging, error) {
	log := v.log().With("archive", path)

	raw, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vfstype.ErrMap, err)
	}
	log.Debug("archive state", "state", vfstype.StateMapped, "size", raw.Len())

	name := filepath.Base(path)
	hdr, err := archive.ReadHeader(path, raw.Bytes())
	if err != nil {
		_ = raw.Release() //nolint:errcheck // load already failed
		return nil, err
	}

	backing := raw
	if hdr.Compressed() {
		backing, err = v.remapDecompressed(path, raw, hdr)
		_ = raw.Release() //nolint:errcheck // the raw mapping is no longer needed
		if err != nil {
			return nil, err
		}
		log.Debug("archive state", "state", vfstype.StateRemapped, "size", backing.Len())
	}

	members, skips, err := archive.ReadEntries(path, hdr, backing.Bytes(), archive.ReadOptions{ExactFit: v.exactFit})
	if err != nil {
		_ = backing.Release() //nolint:errcheck // load already failed
		return nil, err
	}
	log.Debug("archive state", "state", vfstype.StateDirectoryParsed, "version", hdr.Version, "members", len(members))
	for _, s := range skips {
		log.Warn("skipping archive member", "entry", s.Entry.Name, "offset", s.Entry.Offset, "size", s.Entry.Size, "reason", s.Reason)
	}

	st := &staging{
		byPath:  make(map[string]Handle),
		mapping: backing,
		archive: path,
	}
	root := st.add(node{
		name:    name,
		ext:     extension(name),
		absPath: abs,
		relPath: filepath.ToSlash(path),
		index:   -1,
		size:    uint64(backing.Len()),
		modTime: modTime,
		parent:  InvalidHandle,
	})
	st.nodes[root].root = root
	v.addMembers(st, root, members)
	return st, nil
}

// add appends n to the staging arena and returns its local handle.
func (st *staging) add(n node) Handle {
	h := Handle(len(st.nodes)) //nolint:gosec // bounded by MaxFiles and frame counts
	st.nodes = append(st.nodes, n)
	st.byPath[n.absPath] = h
	return h
}

// addMembers appends children of parent for members, whose offsets are
// relative to the parent's bytes, and expands nested containers.
func (v *VFS) addMembers(st *staging, parent Handle, members []Member) {
	p := st.nodes[parent]
	for _, m := range members {
		absPath := p.absPath + "/" + m.Name
		if _, dup := st.byPath[absPath]; dup {
			v.log().Warn("skipping duplicate entry", "archive", st.archive, "entry", absPath)
			continue
		}
		h := st.add(node{
			name:           m.Name,
			ext:            extension(m.Name),
			absPath:        absPath,
			relPath:        p.relPath + "/" + m.Name,
			index:          m.Index,
			size:           m.Size,
			offsetInParent: m.Offset,
			offsetInRoot:   p.offsetInRoot + m.Offset,
			depth:          p.depth + 1,
			modTime:        p.modTime,
			parent:         parent,
			root:           p.root,
		})
		st.nodes[parent].children = append(st.nodes[parent].children, h)
		v.expand(st, h)
	}
}

// expand lists the children of h when a registered Expander handles its
// extension and the depth limit allows it.
func (v *VFS) expand(st *staging, h Handle) {
	n := st.nodes[h]
	x, ok := v.expanders[n.ext]
	if !ok || n.depth+1 >= maxDepth {
		return
	}
	data, ok := sizing.Slice(st.mapping.Bytes(), n.offsetInRoot, n.size)
	if !ok {
		return
	}
	exp, err := x.Expand(n.name, data)
	if err != nil {
		v.log().Warn("skipping nested container", "archive", st.archive, "entry", n.relPath, "offset", n.offsetInRoot, "size", n.size, "error", err)
		return
	}
	for _, s := range exp.Skipped {
		v.log().Warn("skipping nested entry", "archive", st.archive, "entry", n.relPath+"/"+s.Member.Name, "offset", s.Member.Offset, "size", s.Member.Size, "reason", s.Reason)
	}

	members := exp.Members[:0:0]
	for _, m := range exp.Members {
		if !sizing.Fits(m.Offset, m.Size, len(data)) {
			v.log().Warn("skipping nested entry", "archive", st.archive, "entry", n.relPath+"/"+m.Name, "offset", m.Offset, "size", m.Size, "reason", "exceeds container")
			continue
		}
		members = append(members, m)
	}
	v.addMembers(st, h, members)
}

// commit moves staged nodes into the VFS. Callers hold mu exclusively.
func (v *VFS) commit(st *staging) Handle {
	base := Handle(len(v.nodes)) //nolint:gosec // arena size is bounded by loaded archives
	backing := len(v.maps)
	v.maps = append(v.maps, st.mapping)

	for i := range st.nodes {
		n := st.nodes[i]
		n.backing = backing
		n.root += base
		if n.parent != InvalidHandle {
			n.parent += base
		}
		children := make([]Handle, len(n.children))
		for j, c := range n.children {
			children[j] = c + base
		}
		n.children = children

		if n.parent == InvalidHandle {
			n.fsPath = v.uniqueRootName(n.name)
		} else {
			n.fsPath = v.nodes[n.parent].fsPath + "/" + fsName(n.name, n.index)
		}

		h := base + Handle(i) //nolint:gosec // bounded as above
		v.nodes = append(v.nodes, n)
		v.byPath[n.absPath] = h
		if _, taken := v.byFS[n.fsPath]; !taken {
			v.byFS[n.fsPath] = h
		}
	}
	v.roots = append(v.roots, base)
	return base
}

// uniqueRootName returns name, or name with a numeric suffix when another
// root already uses it in the fs.FS view.
func (v *VFS) uniqueRootName(name string) string {
	name = fsName(name, 0)
	if _, taken := v.byFS[name]; !taken {
		return name
	}
	for i := 2; ; i++ {
		candidate := name + "~" + strconv.Itoa(i)
		if _, taken := v.byFS[candidate]; !taken {
			return candidate
		}
	}
}

// fsName maps a member name to a valid fs.FS path element.
func fsName(name string, index int) string {
	name = strings.ReplaceAll(name, "/", "_")
	switch name {
	case "", ".", "..":
		return "#" + strconv.Itoa(index)
	}
	return name
}

// remapDecompressed returns a mapping of the decompressed form of the
// compressed archive raw, writing it to the cache when needed.
func (v *VFS) remapDecompressed(path string, raw *mmap.Mapping, hdr *archive.Header) (*mmap.Mapping, error) {
	log := v.log().With("archive", path)
	data := raw.Bytes()
	dataOffset := hdr.DataOffset()
	compEnd := dataOffset + uint64(hdr.CompressedDataSize)
	if compEnd > uint64(len(data)) {
		return nil, vfstype.Invalid(path, fmt.Sprintf("compressed data [0x%X, 0x%X) exceeds file size 0x%X", dataOffset, compEnd, len(data)))
	}

	c, err := v.decompressionCache()
	if err != nil {
		return nil, err
	}
	key := cache.KeyFor(path, data[:compEnd])
	meta := cache.Meta{DataOffset: dataOffset, UncompressedSize: uint64(hdr.UncompressedDataSize)}

	entry, ok := c.Lookup(key)
	if ok {
		log.Debug("decompression cache hit", "path", entry.Path, "digest", key.Digest)
	} else {
		log.Debug("archive state", "state", vfstype.StateDecompressing, "digest", key.Digest)
		log.Info("decompressing archive",
			"offset", dataOffset, "compressed", hdr.CompressedDataSize, "uncompressed", hdr.UncompressedDataSize)

		var inflateErr error
		entry, err = c.Store(key, meta, func(w io.Writer) error {
			if _, err := w.Write(data[:dataOffset]); err != nil {
				return err
			}
			res, err := v.inflater.Inflate(w, data[dataOffset:compEnd], int64(hdr.UncompressedDataSize))
			if err != nil {
				inflateErr = err
				return err
			}
			if res.Underrun() {
				log.Debug("compressed stream shorter than declared size", "inflated", res.Inflated, "zero_filled", res.ZeroFilled)
			}
			return nil
		})
		if inflateErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", vfstype.ErrDecompression, path, inflateErr)
		}
		if err != nil {
			return nil, fmt.Errorf("cache decompressed archive %s: %w", path, err)
		}
		log.Info("cached decompressed archive", "path", entry.Path)
	}
	log.Debug("archive state", "state", vfstype.StateCacheReady, "path", entry.Path)

	m, err := mmap.Open(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vfstype.ErrMap, err)
	}
	if uint64(m.Len()) != meta.Size() {
		_ = m.Release() //nolint:errcheck // mapping is discarded
		return nil, errors.Join(
			fmt.Errorf("%w: cache file %s is %d bytes, want %d", vfstype.ErrValidation, entry.Path, m.Len(), meta.Size()),
			c.Delete(key),
		)
	}
	return m, nil
}
