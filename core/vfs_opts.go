package vpp

import (
	"log/slog"
	"strings"

	"github.com/meigma/vpp/core/cache"
)

// Option configures a VFS.
type Option func(*VFS)

// WithLogger sets the logger for load progress and skip warnings.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(v *VFS) {
		v.logger = logger
	}
}

// WithCache sets the store for decompressed archives.
func WithCache(c cache.Cache) Option {
	return func(v *VFS) {
		v.cache = c
	}
}

// WithCacheDir stores decompressed archives in a disk cache rooted at dir.
// The cache is created on the first compressed archive. Ignored when
// WithCache is also given.
func WithCacheDir(dir string) Option {
	return func(v *VFS) {
		v.cacheDir = dir
	}
}

// WithMaxDecoderMemory limits the decompressed size of a compressed archive.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(v *VFS) {
		v.maxDecoderMemory = limit
	}
}

// WithExpander registers x for members whose extension is ext.
func WithExpander(ext string, x Expander) Option {
	return func(v *VFS) {
		v.expanders[normalizeExt(ext)] = x
	}
}

// WithoutExpander disables expansion of members whose extension is ext,
// including the built-in texture expander.
func WithoutExpander(ext string) Option {
	return func(v *VFS) {
		v.expanders[normalizeExt(ext)] = nil
	}
}

// WithExactFitMembers accepts archive members that end exactly at the end
// of the archive data. By default such members are skipped.
func WithExactFitMembers(enabled bool) Option {
	return func(v *VFS) {
		v.exactFit = enabled
	}
}

// WithMaxFrameSize sets the largest texture frame kept by the built-in
// texture expander. Set limit to 0 to disable the limit.
func WithMaxFrameSize(limit uint64) Option {
	return func(v *VFS) {
		v.maxFrameSize = limit
	}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// CopyOption configures CopyTo, CopyDir and CopyFile.
type CopyOption func(*copyConfig)

type copyConfig struct {
	overwrite bool
	workers   int
	frames    bool
	direct    bool
}

// CopyWithOverwrite allows overwriting existing files.
// By default, existing files are skipped (CopyFile returns fs.ErrExist).
func CopyWithOverwrite(overwrite bool) CopyOption {
	return func(c *copyConfig) {
		c.overwrite = overwrite
	}
}

// CopyWithWorkers sets the number of concurrent writers.
// Values < 0 force serial writes. Zero uses GOMAXPROCS.
func CopyWithWorkers(n int) CopyOption {
	return func(c *copyConfig) {
		c.workers = n
	}
}

// CopyWithDecodedFrames also writes every decodable texture frame as a PNG
// file under "<container>.frames/".
func CopyWithDecodedFrames(enabled bool) CopyOption {
	return func(c *copyConfig) {
		c.frames = enabled
	}
}

// CopyWithDirectWrites writes straight to the final path instead of a temp
// file followed by a rename.
func CopyWithDirectWrites(enabled bool) CopyOption {
	return func(c *copyConfig) {
		c.direct = enabled
	}
}
