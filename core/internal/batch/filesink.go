package batch

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
)

const tempPrefix = ".vpp-"

// FileSink writes entries below a destination directory.
//
// All paths are resolved through an os.Root, so entry names taken from an
// archive directory can never escape the destination. Unless direct writes
// are enabled, content is staged in a hidden temp file next to its final
// path and renamed into place on Commit.
type FileSink struct {
	root        *os.Root
	overwrite   bool
	directWrite bool
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite replaces files that already exist. By default they are skipped.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) { s.overwrite = overwrite }
}

// WithDirectWrites writes straight to the final path without a temp file.
func WithDirectWrites(enabled bool) FileSinkOption {
	return func(s *FileSink) { s.directWrite = enabled }
}

// NewFileSink opens destDir, which must exist, as the sink root.
// The caller must Close the sink.
func NewFileSink(destDir string, opts ...FileSinkOption) (*FileSink, error) {
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination %s: %w", destDir, err)
	}
	s := &FileSink{root: root}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the destination root.
func (s *FileSink) Close() error {
	return s.root.Close()
}

// ShouldProcess reports whether entry should be written. Invalid paths are
// let through so that Writer reports them.
func (s *FileSink) ShouldProcess(entry *Entry) bool {
	if s.overwrite || !fs.ValidPath(entry.Path) {
		return true
	}
	_, err := s.root.Lstat(entry.Path)
	return errors.Is(err, fs.ErrNotExist)
}

// Writer creates the parent directories of entry and opens its staging file.
func (s *FileSink) Writer(entry *Entry) (Committer, error) {
	if !fs.ValidPath(entry.Path) || entry.Path == "." {
		return nil, &fs.PathError{Op: "extract", Path: entry.Path, Err: fs.ErrInvalid}
	}
	dir := path.Dir(entry.Path)
	if dir != "." {
		if err := s.root.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	if s.directWrite {
		f, err := s.root.OpenFile(entry.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, err
		}
		return &pending{sink: s, file: f, final: entry.Path, staged: entry.Path}, nil
	}

	f, staged, err := s.createTemp(dir)
	if err != nil {
		return nil, fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	return &pending{sink: s, file: f, final: entry.Path, staged: staged}, nil
}

func (s *FileSink) createTemp(dir string) (*os.File, string, error) {
	for range 10 {
		var b [8]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, "", err
		}
		name := path.Join(dir, tempPrefix+hex.EncodeToString(b[:]))
		f, err := s.root.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("exhausted retries")
}

// pending is an open write. staged equals final for direct writes.
type pending struct {
	sink   *FileSink
	file   *os.File
	final  string
	staged string
}

func (p *pending) Write(b []byte) (int, error) {
	return p.file.Write(b)
}

// Commit closes the staged file and moves it to its final path. Without
// overwrite a file that appeared at the final path meanwhile wins.
func (p *pending) Commit() error {
	if err := p.file.Close(); err != nil {
		_ = p.sink.root.Remove(p.staged) //nolint:errcheck // already failing
		return fmt.Errorf("close %s: %w", p.staged, err)
	}
	if p.staged == p.final {
		return nil
	}
	if !p.sink.overwrite {
		if _, err := p.sink.root.Lstat(p.final); err == nil {
			_ = p.sink.root.Remove(p.staged) //nolint:errcheck // already failing
			return &fs.PathError{Op: "extract", Path: p.final, Err: fs.ErrExist}
		}
	}
	if err := p.sink.root.Rename(p.staged, p.final); err != nil {
		_ = p.sink.root.Remove(p.staged) //nolint:errcheck // already failing
		return err
	}
	return nil
}

// Discard closes and removes the staged file.
func (p *pending) Discard() error {
	_ = p.file.Close() //nolint:errcheck // file is removed next
	return p.sink.root.Remove(p.staged)
}
