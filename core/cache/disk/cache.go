// Package disk implements cache.Cache on the local filesystem.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meigma/vpp/core/cache"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700

	payloadExt  = ".vpp"
	manifestExt = ".manifest"
)

// Cache implements cache.Cache using the local filesystem.
//
// Each entry is a decompressed archive file plus a FlatBuffers manifest
// sidecar, stored in a directory hierarchy sharded by digest prefix.
// The cache is safe for concurrent use.
type Cache struct {
	dir            string       // root directory for cached files
	shardPrefixLen int          // number of hex chars for subdirectory sharding
	dirPerm        os.FileMode  // permissions for created directories
	maxBytes       int64        // maximum cache size (0 = unlimited)
	bytes          atomic.Int64 // current total size of cached files
	pruneMu        sync.Mutex   // serializes prune operations
	storeMu        sync.Mutex   // serializes writers of the same cache
	now            func() time.Time
}

var _ cache.Cache = (*Cache)(nil)

// Option configures a disk cache.
type Option func(*Cache)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *Cache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithMaxBytes sets the maximum cache size in bytes.
// Values < 0 are invalid. Use 0 to disable the limit.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// New creates a disk-backed cache rooted at dir.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	c := &Cache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if c.maxBytes < 0 {
		return nil, errors.New("max bytes must be >= 0")
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, err
	}
	size, err := dirSize(dir)
	if err != nil {
		return nil, err
	}
	c.bytes.Store(size)
	return c, nil
}

// Dir returns the cache root directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Lookup returns the entry for key if its file and manifest are present
// and agree with each other.
func (c *Cache) Lookup(key cache.Key) (cache.Entry, bool) {
	stem, err := c.stem(key)
	if err != nil {
		return cache.Entry{}, false
	}
	entry, err := readEntry(stem)
	if err != nil || entry.Key != key {
		return cache.Entry{}, false
	}
	return entry, true
}

// Store writes the decompressed archive for key.
//
// Content is written to a temp file in the shard directory and renamed into
// place, followed by the manifest, so a partially written entry is never
// returned by Lookup.
func (c *Cache) Store(key cache.Key, meta cache.Meta, write func(io.Writer) error) (cache.Entry, error) {
	stem, err := c.stem(key)
	if err != nil {
		return cache.Entry{}, err
	}

	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	if entry, err := readEntry(stem); err == nil && entry.Key == key {
		return entry, nil
	}

	want := meta.Size()
	if c.maxBytes > 0 && want > uint64(c.maxBytes) {
		return cache.Entry{}, fmt.Errorf("%w: %d > %d bytes", cache.ErrTooLarge, want, c.maxBytes)
	}

	dir := filepath.Dir(stem)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return cache.Entry{}, err
	}
	c.removeStem(stem)

	tmp, err := os.CreateTemp(dir, "cache-*")
	if err != nil {
		return cache.Entry{}, err
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()         //nolint:errcheck // best-effort cleanup
			_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		}
	}()

	counter := &countingWriter{w: tmp}
	if err := write(counter); err != nil {
		return cache.Entry{}, err
	}
	if counter.n != want {
		return cache.Entry{}, fmt.Errorf("%w: wrote %d bytes, want %d", cache.ErrSizeMismatch, counter.n, want)
	}
	if err := tmp.Close(); err != nil {
		return cache.Entry{}, err
	}

	created := c.now()
	mdata := encodeManifest(&manifest{key: key, meta: meta, payloadSize: want, created: created})
	need := int64(want) + int64(len(mdata)) //nolint:gosec // bounded by maxBytes or file size
	if ok, err := c.ensureCapacity(need); err != nil {
		return cache.Entry{}, err
	} else if !ok {
		return cache.Entry{}, fmt.Errorf("%w: %d bytes", cache.ErrTooLarge, need)
	}

	if err := os.Rename(tmpPath, stem+payloadExt); err != nil {
		return cache.Entry{}, err
	}
	success = true
	if err := writeFileAtomic(stem+manifestExt, mdata); err != nil {
		_ = os.Remove(stem + payloadExt) //nolint:errcheck // best-effort cleanup
		return cache.Entry{}, err
	}
	c.bytes.Add(need)

	return cache.Entry{Key: key, Meta: meta, Path: stem + payloadExt, Created: time.Unix(0, created.UnixNano())}, nil
}

// Delete removes the entry for key.
func (c *Cache) Delete(key cache.Key) error {
	stem, err := c.stem(key)
	if err != nil {
		return err
	}
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	c.removeStem(stem)
	return nil
}

// Entries lists every valid entry in the cache.
func (c *Cache) Entries() ([]cache.Entry, error) {
	var entries []cache.Entry
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, manifestExt) {
			return nil
		}
		entry, err := readEntry(strings.TrimSuffix(path, manifestExt))
		if err != nil {
			return nil //nolint:nilerr // incomplete entries are not listed
		}
		entries = append(entries, entry)
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}

// MaxBytes returns the configured cache size limit (0 = unlimited).
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the current cache size in bytes.
func (c *Cache) SizeBytes() int64 {
	return c.bytes.Load()
}

// Prune removes cached entries until the cache is at or below targetBytes.
func (c *Cache) Prune(targetBytes int64) (int64, error) {
	if targetBytes < 0 {
		targetBytes = 0
	}
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()

	freed, remaining, err := pruneDir(c.dir, targetBytes)
	if err != nil {
		return 0, err
	}
	c.bytes.Store(remaining)
	return freed, nil
}

// stem returns the entry path without extension.
func (c *Cache) stem(key cache.Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	hexHash := key.Digest.Encoded()
	name := hexHash + "-" + key.Source
	if c.shardPrefixLen <= 0 {
		return filepath.Join(c.dir, name), nil
	}
	prefixLen := min(c.shardPrefixLen, len(hexHash))
	return filepath.Join(c.dir, hexHash[:prefixLen], name), nil
}

// removeStem deletes both files of an entry and adjusts the size counter.
func (c *Cache) removeStem(stem string) {
	for _, path := range []string{stem + manifestExt, stem + payloadExt} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if err := os.Remove(path); err == nil {
			c.bytes.Add(-info.Size())
		}
	}
}

func (c *Cache) ensureCapacity(need int64) (bool, error) {
	if c.maxBytes <= 0 {
		return true, nil
	}
	if need > c.maxBytes {
		return false, nil
	}
	if c.SizeBytes()+need <= c.maxBytes {
		return true, nil
	}
	if _, err := c.Prune(c.maxBytes - need); err != nil {
		return false, err
	}
	return c.SizeBytes()+need <= c.maxBytes, nil
}

// readEntry loads the manifest at stem and checks it against the payload file.
func readEntry(stem string) (cache.Entry, error) {
	mdata, err := os.ReadFile(stem + manifestExt) //nolint:gosec // path is derived from the cache key
	if err != nil {
		return cache.Entry{}, err
	}
	m, err := decodeManifest(mdata)
	if err != nil {
		return cache.Entry{}, err
	}
	info, err := os.Stat(stem + payloadExt)
	if err != nil {
		return cache.Entry{}, err
	}
	if m.payloadSize != m.meta.Size() || uint64(info.Size()) != m.payloadSize { //nolint:gosec // file sizes are non-negative
		return cache.Entry{}, fmt.Errorf("%w: payload is %d bytes, manifest says %d", errManifest, info.Size(), m.payloadSize)
	}
	return cache.Entry{Key: m.key, Meta: m.meta, Path: stem + payloadExt, Created: m.created}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "manifest-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()         //nolint:errcheck // best-effort cleanup
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return err
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n) //nolint:gosec // n is non-negative
	return n, err
}
