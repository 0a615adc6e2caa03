package vpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/meigma/vpp/core/internal/batch"
)

// FramesSuffix is appended to a container's path to form the directory that
// receives its extracted children.
const FramesSuffix = ".frames"

// CopyStats reports what an extraction wrote.
type CopyStats = batch.ProcessStats

// CopyTo extracts the named entries to destDir.
//
// paths are fs.FS paths (see Open). Archive members are written as raw
// bytes at their fs path below destDir. Nested entries are written below
// "<container>.frames/"; with CopyWithDecodedFrames texture frames are
// written there as PNG files instead. Root archives are directories in the
// fs.FS view and are not copied by CopyTo; use CopyDir.
//
// By default:
//   - Existing files are skipped (use CopyWithOverwrite to overwrite)
//   - Files are written to a temp file and renamed (use CopyWithDirectWrites to skip the temp file)
func (v *VFS) CopyTo(ctx context.Context, destDir string, paths []string, opts ...CopyOption) (CopyStats, error) {
	cfg := newCopyConfig(opts)
	var views []EntryView
	for _, p := range paths {
		p = NormalizePath(p)
		if !fs.ValidPath(p) {
			return CopyStats{}, &fs.PathError{Op: "copy", Path: p, Err: fs.ErrInvalid}
		}
		e, ok := v.Lookup(p)
		if !ok {
			return CopyStats{}, &fs.PathError{Op: "copy", Path: p, Err: fs.ErrNotExist}
		}
		if e.IsRoot() {
			continue
		}
		views = append(views, e)
	}
	return v.copyEntries(ctx, destDir, v.batchEntries(views, &cfg), &cfg)
}

// CopyDir extracts every entry under prefix to destDir.
//
// If prefix is "" or ".", all loaded archives are extracted. Entries are
// laid out as described for CopyTo.
func (v *VFS) CopyDir(ctx context.Context, destDir, prefix string, opts ...CopyOption) (CopyStats, error) {
	cfg := newCopyConfig(opts)
	prefix = NormalizePath(prefix)
	if !fs.ValidPath(prefix) {
		return CopyStats{}, &fs.PathError{Op: "copy", Path: prefix, Err: fs.ErrInvalid}
	}

	var starts []EntryView
	if prefix == "." {
		starts = v.Roots()
	} else {
		e, ok := v.Lookup(prefix)
		if !ok {
			return CopyStats{}, &fs.PathError{Op: "copy", Path: prefix, Err: fs.ErrNotExist}
		}
		starts = []EntryView{e}
	}

	var views []EntryView
	for _, start := range starts {
		walk(start, func(e EntryView) bool {
			if !e.IsRoot() {
				views = append(views, e)
			}
			return true
		})
	}
	return v.copyEntries(ctx, destDir, v.batchEntries(views, &cfg), &cfg)
}

// CopyFile extracts a single entry to destPath.
//
// Unlike CopyTo, CopyFile writes to exactly destPath, which lets the caller
// rename the entry. The destination's parent directory must exist. With
// CopyWithDecodedFrames a texture frame is written as PNG.
//
// Unlike CopyTo and CopyDir (which skip existing files when overwrite is
// disabled), CopyFile returns fs.ErrExist.
func (v *VFS) CopyFile(srcPath, destPath string, opts ...CopyOption) error {
	cfg := newCopyConfig(opts)
	srcPath = NormalizePath(srcPath)
	if !fs.ValidPath(srcPath) {
		return &fs.PathError{Op: "copyfile", Path: srcPath, Err: fs.ErrInvalid}
	}
	e, ok := v.Lookup(srcPath)
	if !ok {
		return &fs.PathError{Op: "copyfile", Path: srcPath, Err: fs.ErrNotExist}
	}
	if e.IsRoot() {
		return &fs.PathError{Op: "copyfile", Path: srcPath, Err: errors.New("cannot copy root archive")}
	}

	if !cfg.overwrite {
		if _, err := os.Stat(destPath); err == nil {
			return &fs.PathError{Op: "copyfile", Path: destPath, Err: fs.ErrExist}
		}
	}

	write := v.rawWriter(e)
	if cfg.frames && v.isFrame(e) {
		write = v.pngWriter(e)
	}

	sink, err := batch.NewFileSink(filepath.Dir(destPath),
		batch.WithOverwrite(cfg.overwrite),
		batch.WithDirectWrites(cfg.direct),
	)
	if err != nil {
		return err
	}
	defer sink.Close()

	entry := &batch.Entry{Path: filepath.Base(destPath), Size: e.Size(), Write: write}
	stats, err := batch.NewProcessor(batch.WithWorkers(-1)).Process(context.Background(), []*batch.Entry{entry}, sink)
	switch {
	case err != nil:
		return err
	case stats.Dropped > 0:
		return fmt.Errorf("copyfile %s: frame cannot be decoded", srcPath)
	case stats.Processed == 0:
		return &fs.PathError{Op: "copyfile", Path: destPath, Err: fs.ErrExist}
	}
	return nil
}

func newCopyConfig(opts []CopyOption) copyConfig {
	cfg := copyConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// extractPath returns the destination path of e relative to the extraction
// root. Members keep their fs path; nested entries go below
// "<container>.frames/".
func extractPath(e EntryView) string {
	parent, ok := e.Parent()
	if !ok || parent.IsRoot() {
		return e.FSPath()
	}
	return extractPath(parent) + FramesSuffix + "/" + path.Base(e.FSPath())
}

// isFrame reports whether e is a frame of a texture container.
func (v *VFS) isFrame(e EntryView) bool {
	parent, ok := e.Parent()
	return ok && parent.Extension() == TextureExtension
}

// batchEntries converts views into batch entries.
func (v *VFS) batchEntries(views []EntryView, cfg *copyConfig) []*batch.Entry {
	entries := make([]*batch.Entry, 0, len(views))
	for _, e := range views {
		entry := &batch.Entry{Path: extractPath(e), Size: e.Size(), Write: v.rawWriter(e)}
		if cfg.frames && v.isFrame(e) {
			entry.Path += ".png"
			entry.Write = v.pngWriter(e)
		}
		entries = append(entries, entry)
	}
	return entries
}

// rawWriter writes the entry's bytes, holding a mapping reference while
// writing.
func (v *VFS) rawWriter(e EntryView) func(io.Writer) error {
	return func(w io.Writer) error {
		data, release, err := v.acquire(e)
		if err != nil {
			return err
		}
		defer release()
		_, err = w.Write(data)
		return err
	}
}

// pngWriter decodes a texture frame and writes it as PNG. Frames that fail
// to decode, or decode to no pixels, are skipped.
func (v *VFS) pngWriter(e EntryView) func(io.Writer) error {
	return func(w io.Writer) error {
		img, err := v.DecodeFrame(e)
		if err != nil {
			return fmt.Errorf("%w: %w", batch.ErrSkip, err)
		}
		if img.Bounds().Empty() {
			return fmt.Errorf("%w: %s: %s has no pixel data", batch.ErrSkip, e.AbsolutePath(), img.Format)
		}
		return EncodePNG(w, img)
	}
}

// copyEntries uses the batch processor to copy entries to destDir.
func (v *VFS) copyEntries(ctx context.Context, destDir string, entries []*batch.Entry, cfg *copyConfig) (CopyStats, error) {
	if len(entries) == 0 {
		return CopyStats{}, nil
	}
	for _, entry := range entries {
		if !fs.ValidPath(entry.Path) {
			return CopyStats{}, &fs.PathError{Op: "copy", Path: entry.Path, Err: fs.ErrInvalid}
		}
	}
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return CopyStats{}, fmt.Errorf("create destination %s: %w", destDir, err)
	}

	sink, err := batch.NewFileSink(destDir,
		batch.WithOverwrite(cfg.overwrite),
		batch.WithDirectWrites(cfg.direct),
	)
	if err != nil {
		return CopyStats{}, err
	}
	defer sink.Close()

	var procOpts []batch.ProcessorOption
	if cfg.workers != 0 {
		procOpts = append(procOpts, batch.WithWorkers(cfg.workers))
	}
	if v.logger != nil {
		procOpts = append(procOpts, batch.WithProcessorLogger(v.logger))
	}
	stats, err := batch.NewProcessor(procOpts...).Process(ctx, entries, sink)
	if err != nil {
		return stats, err
	}
	v.log().Debug("extraction finished", "dest", destDir, "processed", stats.Processed, "skipped", stats.Skipped, "dropped", stats.Dropped, "bytes", stats.TotalBytes)
	return stats, nil
}
