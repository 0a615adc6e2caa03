// Package cache defines storage for decompressed archive payloads.
package cache

import (
	_ "crypto/sha256" // registers digest.SHA256
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

// Key identifies one decompressed archive.
//
// Digest covers the compressed archive bytes, so an archive replaced on disk
// under the same name never resolves to a stale entry.
type Key struct {
	// Source is the archive base name, lowercased.
	Source string

	// Digest is the digest of the archive bytes [0, DataOffset+CompressedSize).
	Digest digest.Digest
}

// KeyFor returns the key for the archive at path whose compressed region is raw.
func KeyFor(path string, raw []byte) Key {
	return Key{
		Source: strings.ToLower(filepath.Base(path)),
		Digest: digest.FromBytes(raw),
	}
}

// Validate checks that the key is usable for storage.
func (k Key) Validate() error {
	if k.Source == "" {
		return errEmptySource
	}
	return k.Digest.Validate()
}

// Meta describes the layout of a decompressed archive file: the raw header
// prefix [0, DataOffset) followed by UncompressedSize payload bytes.
type Meta struct {
	DataOffset       uint64
	UncompressedSize uint64
}

// Size returns the expected length of the cache file.
func (m Meta) Size() uint64 {
	return m.DataOffset + m.UncompressedSize
}

// Entry describes a stored decompressed archive.
type Entry struct {
	Key     Key
	Meta    Meta
	Path    string
	Created time.Time
}

// Cache stores decompressed archives as files that callers can memory map.
//
// Implementations must be safe for concurrent use.
type Cache interface {
	// Lookup returns the entry for key if a complete, consistent file exists.
	Lookup(key Key) (Entry, bool)

	// Store creates the file for key by calling write with a writer for its
	// content. The content becomes visible only if write succeeds and produced
	// exactly meta.Size() bytes. An existing valid entry is returned as is.
	Store(key Key, meta Meta, write func(io.Writer) error) (Entry, error)

	// Delete removes the entry for key. Missing entries are a no-op.
	Delete(key Key) error

	// Entries lists every valid entry.
	Entries() ([]Entry, error)

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes entries, oldest first, until the cache is at or below
	// targetBytes. Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}
