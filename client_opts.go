package vpp

import (
	"errors"
	"log/slog"
	"os"

	vppcore "github.com/meigma/vpp/core"
	corecache "github.com/meigma/vpp/core/cache"
	coredisk "github.com/meigma/vpp/core/cache/disk"
)

// Option configures a Client.
type Option func(*Client) error

// DefaultCacheSize is the size limit used by WithCacheDir.
const DefaultCacheSize int64 = 4 << 30 // 4 GB

// --- Caching Options ---

// WithCacheDir stores inflated archives in a disk cache at dir, limited to
// DefaultCacheSize.
func WithCacheDir(dir string) Option {
	return WithCacheDirSize(dir, DefaultCacheSize)
}

// WithCacheDirSize stores inflated archives in a disk cache at dir, limited
// to maxBytes (0 = unlimited).
func WithCacheDirSize(dir string, maxBytes int64) Option {
	return func(c *Client) error {
		if maxBytes < 0 {
			return errors.New("cache size must be >= 0")
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
		dc, err := coredisk.New(dir, coredisk.WithMaxBytes(maxBytes))
		if err != nil {
			return err
		}
		c.cache = dc
		return nil
	}
}

// WithCache uses a custom decompression cache.
func WithCache(cache corecache.Cache) Option {
	return func(c *Client) error {
		c.cache = cache
		return nil
	}
}

// --- Loading Options ---

// WithLogger sets the logger for load progress and skip warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithMaxDecoderMemory limits the inflated size of a compressed archive.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(c *Client) error {
		c.vfsOpts = append(c.vfsOpts, vppcore.WithMaxDecoderMemory(limit))
		return nil
	}
}

// WithMaxFrameSize sets the largest texture frame that is indexed.
// Set limit to 0 to disable the limit.
func WithMaxFrameSize(limit uint64) Option {
	return func(c *Client) error {
		c.vfsOpts = append(c.vfsOpts, vppcore.WithMaxFrameSize(limit))
		return nil
	}
}

// WithExactFitMembers accepts archive members that end exactly at the end
// of the archive data.
func WithExactFitMembers(enabled bool) Option {
	return func(c *Client) error {
		c.vfsOpts = append(c.vfsOpts, vppcore.WithExactFitMembers(enabled))
		return nil
	}
}

// WithExpander registers x for members whose extension is ext.
func WithExpander(ext string, x Expander) Option {
	return func(c *Client) error {
		if x == nil {
			return errors.New("expander is nil")
		}
		c.vfsOpts = append(c.vfsOpts, vppcore.WithExpander(ext, x))
		return nil
	}
}

// WithoutExpander disables expansion of members whose extension is ext.
func WithoutExpander(ext string) Option {
	return func(c *Client) error {
		c.vfsOpts = append(c.vfsOpts, vppcore.WithoutExpander(ext))
		return nil
	}
}
