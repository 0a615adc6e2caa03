// Package cache defines the store for decompressed archives.
//
// Compressed version 2 archives hold their whole member payload as one zlib
// stream. The virtual filesystem inflates such an archive once and memory
// maps the result, so the inflated form must live in a file. A Cache keeps
// those files keyed by the archive's base name and the digest of its
// compressed bytes: a modified archive gets a new entry even when its name
// is unchanged.
//
// The disk subpackage provides the file-backed implementation.
package cache
