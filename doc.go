// Package vpp provides read-only access to game archives and the texture
// containers packed inside them.
//
// A Client carries the shared configuration (logger, decompression cache,
// limits) and loads archives into a VFS:
//
//	c, err := vpp.NewClient(vpp.WithCacheDir(dir))
//	fsys, err := c.Load(ctx, "/games/rf/levels1.vpp", "/games/rf/textures")
//	data, err := fs.ReadFile(fsys, "levels1.vpp/l1s1.rfl")
//
// The VFS implements fs.FS. The core subpackage holds the archive readers,
// texture decoder and virtual filesystem; this package re-exports what most
// callers need.
package vpp
