//go:generate flatc --go --go-namespace fb -o internal schema/cache.fbs

// Package vpp provides a read-only virtual filesystem over game archives
// and the texture containers nested inside them.
//
// Root archives (.vpp, versions 1 and 2) are memory mapped and indexed
// eagerly by AddRootArchive:
//   - Every archive member becomes an entry whose bytes are a zero-copy slice of the mapping
//   - Members with a registered Expander (texture containers by default) are expanded into child entries
//   - Archives whose payload is one zlib stream are inflated once into a disk cache and the cache file is mapped instead
//
// Texture frames are decoded on demand by DecodeFrame and DecodeFrames.
//
// The package implements fs.FS and related interfaces for stdlib compatibility.
package vpp
