package vpp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	vppcore "github.com/meigma/vpp/core"
	corecache "github.com/meigma/vpp/core/cache"
)

// Client loads archives into virtual filesystems with shared settings.
//
// A Client is safe for concurrent use. VFS values it returns share the
// Client's decompression cache.
type Client struct {
	logger *slog.Logger

	// Cache for inflated compressed archives.
	cache corecache.Cache

	vfsOpts []vppcore.Option
}

// NewClient creates a new client with the given options.
//
// Without a cache option, compressed archives are cached below
// vppcore.DefaultCacheDir().
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Cache returns the configured decompression cache, or nil.
func (c *Client) Cache() corecache.Cache {
	return c.cache
}

// NewVFS returns an empty VFS configured like the client.
func (c *Client) NewVFS() *VFS {
	opts := slices.Clone(c.vfsOpts)
	if c.logger != nil {
		opts = append(opts, vppcore.WithLogger(c.logger))
	}
	if c.cache != nil {
		opts = append(opts, vppcore.WithCache(c.cache))
	}
	return vppcore.New(opts...)
}

// Load returns a VFS holding the archives at paths.
//
// A path naming a directory loads every .vpp file directly inside it, in
// name order. Load stops at the first archive that fails to load; the
// partially filled VFS is closed and the error returned.
func (c *Client) Load(ctx context.Context, paths ...string) (*VFS, error) {
	v := c.NewVFS()
	for _, p := range paths {
		archives, err := archivePaths(p)
		if err != nil {
			return nil, errors.Join(err, v.Close())
		}
		for _, a := range archives {
			if err := ctx.Err(); err != nil {
				return nil, errors.Join(err, v.Close())
			}
			if _, err := v.AddRootArchive(a); err != nil {
				return nil, errors.Join(fmt.Errorf("load %s: %w", a, err), v.Close())
			}
		}
	}
	return v, nil
}

// archivePaths expands a directory into the archives it holds.
func archivePaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var archives []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ArchiveExtension) {
			archives = append(archives, filepath.Join(path, e.Name()))
		}
	}
	return archives, nil
}
