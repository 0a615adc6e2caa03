// Package mmap provides reference-counted read-only file mappings.
package mmap

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ErrReleased is returned when reading a mapping whose last reference was released.
var ErrReleased = errors.New("mmap: mapping released")

// Mapping is a read-only view of a whole file.
//
// A new Mapping holds one reference. Acquire adds a reference and Release
// drops one; the file is unmapped when the count reaches zero. Byte slices
// obtained from Bytes must not be used after the holder's reference is
// released.
type Mapping struct {
	path  string
	data  []byte
	refs  atomic.Int64
	unmap func([]byte) error

	closeOnce sync.Once
	closeErr  error
}

// Open maps the file at path read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path) //nolint:gosec // caller supplies the archive path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("mmap %s: not a regular file", path)
	}
	size := info.Size()
	if size > math.MaxInt {
		return nil, fmt.Errorf("mmap %s: file too large (%d bytes)", path, size)
	}

	m := &Mapping{path: path}
	if size > 0 {
		data, unmap, err := mapFile(f, int(size))
		if err != nil {
			return nil, fmt.Errorf("mmap %s: %w", path, err)
		}
		m.data = data
		m.unmap = unmap
	}
	m.refs.Store(1)
	return m, nil
}

// Path returns the mapped file path.
func (m *Mapping) Path() string { return m.path }

// Len returns the mapped length in bytes.
func (m *Mapping) Len() int { return len(m.data) }

// Bytes returns the mapped bytes. The slice is read-only.
func (m *Mapping) Bytes() []byte { return m.data }

// Refs returns the current reference count.
func (m *Mapping) Refs() int64 { return m.refs.Load() }

// Acquire adds a reference. It returns false if the mapping was already
// released, in which case no reference is taken.
func (m *Mapping) Acquire() bool {
	for {
		n := m.refs.Load()
		if n <= 0 {
			return false
		}
		if m.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference and unmaps the file when none remain.
func (m *Mapping) Release() error {
	n := m.refs.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		m.refs.Store(0)
		return nil
	}
	m.closeOnce.Do(func() {
		if m.unmap != nil {
			m.closeErr = m.unmap(m.data)
		}
		m.data = nil
	})
	return m.closeErr
}

// ReadAt copies mapped bytes starting at off into p.
//
// Page faults raised by I/O errors on the backing file are returned as
// errors instead of crashing the process.
func (m *Mapping) ReadAt(p []byte, off int64) (n int, err error) {
	if m.refs.Load() <= 0 {
		return 0, ErrReleased
	}
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}

	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			err = fmt.Errorf("page fault reading %s at offset %d: %v", m.path, off, r)
		}
	}()

	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
