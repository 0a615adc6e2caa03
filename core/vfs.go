package vpp

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/meigma/vpp/core/cache"
	"github.com/meigma/vpp/core/cache/disk"
	"github.com/meigma/vpp/core/internal/inflate"
	"github.com/meigma/vpp/core/internal/mmap"
	"github.com/meigma/vpp/core/internal/texture"
)

// ArchiveExtension is the extension accepted by AddRootArchive.
const ArchiveExtension = ".vpp"

// DefaultMaxDecoderMemory is the default limit on the decompressed size of
// a compressed archive.
const DefaultMaxDecoderMemory = inflate.DefaultMaxMemory

// DefaultMaxFrameSize is the default limit on texture frame size.
const DefaultMaxFrameSize = texture.DefaultMaxFrameSize

// VFS is a read-only virtual filesystem over memory-mapped game archives.
//
// Root archives are indexed eagerly by AddRootArchive: every member and every
// nested container member becomes a node. Node bytes are zero-copy slices of
// the archive mapping (or of the decompressed cache file for compressed
// archives).
//
// A VFS is safe for concurrent use. Readers share a lock; AddRootArchive and
// Clear take it exclusively while committing.
type VFS struct {
	mu     sync.RWMutex
	nodes  []node
	byPath map[string]Handle
	byFS   map[string]Handle
	roots  []Handle
	maps   []*mmap.Mapping
	gen    uint64

	logger           *slog.Logger
	cache            cache.Cache
	cacheDir         string
	cacheMu          sync.Mutex
	inflater         *inflate.Inflater
	maxDecoderMemory uint64
	expanders        map[string]Expander
	exactFit         bool
	maxFrameSize     uint64
}

// New creates an empty VFS.
func New(opts ...Option) *VFS {
	v := &VFS{
		byPath:           make(map[string]Handle),
		byFS:             make(map[string]Handle),
		gen:              1,
		maxDecoderMemory: DefaultMaxDecoderMemory,
		maxFrameSize:     DefaultMaxFrameSize,
		expanders:        make(map[string]Expander),
	}
	for _, opt := range opts {
		opt(v)
	}
	if _, set := v.expanders[TextureExtension]; !set {
		v.expanders[TextureExtension] = TextureExpander{MaxFrameSize: v.maxFrameSize}
	}
	for ext, x := range v.expanders {
		if x == nil {
			delete(v.expanders, ext)
		}
	}
	v.inflater = inflate.New(v.maxDecoderMemory)
	return v
}

// log returns the logger, falling back to a discard logger if nil.
func (v *VFS) log() *slog.Logger {
	if v.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return v.logger
}

// DefaultCacheDir returns the directory used for decompressed archives when
// no cache is configured.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "vpp")
	}
	return filepath.Join(os.TempDir(), "vpp-cache")
}

// decompressionCache returns the configured cache, creating the disk cache
// on first use.
func (v *VFS) decompressionCache() (cache.Cache, error) {
	v.cacheMu.Lock()
	defer v.cacheMu.Unlock()
	if v.cache != nil {
		return v.cache, nil
	}
	dir := v.cacheDir
	if dir == "" {
		dir = DefaultCacheDir()
	}
	c, err := disk.New(dir)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", dir, err)
	}
	v.log().Debug("opened decompression cache", "dir", dir)
	v.cache = c
	return c, nil
}

// Cache returns the decompression cache, or nil if none has been opened yet.
func (v *VFS) Cache() cache.Cache {
	v.cacheMu.Lock()
	defer v.cacheMu.Unlock()
	return v.cache
}

// view returns a view of h for the current generation. Callers hold mu.
func (v *VFS) view(h Handle) EntryView {
	return EntryView{v: v, h: h, gen: v.gen}
}

// Entry returns the entry whose absolute path is absPath.
func (v *VFS) Entry(absPath string) (EntryView, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	h, ok := v.byPath[filepath.ToSlash(absPath)]
	if !ok {
		return EntryView{}, false
	}
	return v.view(h), true
}

// Lookup returns the entry at name in the fs.FS view of the VFS.
func (v *VFS) Lookup(name string) (EntryView, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	h, ok := v.byFS[name]
	if !ok {
		return EntryView{}, false
	}
	return v.view(h), true
}

// Roots returns the loaded root archives in load order.
func (v *VFS) Roots() []EntryView {
	v.mu.RLock()
	defer v.mu.RUnlock()
	views := make([]EntryView, len(v.roots))
	for i, h := range v.roots {
		views[i] = v.view(h)
	}
	return views
}

// Len returns the number of entries, root archives included.
func (v *VFS) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.nodes)
}

// Entries returns an iterator over all entries in depth-first order,
// starting from each root archive.
func (v *VFS) Entries() iter.Seq[EntryView] {
	return func(yield func(EntryView) bool) {
		for _, root := range v.Roots() {
			if !walk(root, yield) {
				return
			}
		}
	}
}

// Walk calls fn for every entry in the order of Entries. A non-nil error
// from fn stops the walk and is returned.
func (v *VFS) Walk(fn func(EntryView) error) error {
	var err error
	for e := range v.Entries() {
		if err = fn(e); err != nil {
			return err
		}
	}
	return nil
}

func walk(e EntryView, yield func(EntryView) bool) bool {
	if !yield(e) {
		return false
	}
	for _, c := range e.Children() {
		if !walk(c, yield) {
			return false
		}
	}
	return true
}

// Clear removes every entry and releases the VFS's references to the
// archive mappings. Files opened before Clear remain readable until closed.
// Views obtained before Clear become invalid.
func (v *VFS) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var errs []error
	for _, m := range v.maps {
		if err := m.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	v.nodes = nil
	v.roots = nil
	v.maps = nil
	clear(v.byPath)
	clear(v.byFS)
	v.gen++
	v.log().Debug("vfs cleared", "generation", v.gen)
	return errors.Join(errs...)
}

// Close is an alias for Clear.
func (v *VFS) Close() error {
	return v.Clear()
}
