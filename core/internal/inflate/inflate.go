// Package inflate decompresses whole-archive zlib payloads.
package inflate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// DefaultMaxMemory bounds the declared output size accepted by Inflate.
const DefaultMaxMemory = 1 << 30

// Decompression outcomes. Each failure returned by Inflate wraps exactly one.
var (
	ErrOutOfMemory        = errors.New("inflate: declared size exceeds memory limit")
	ErrIncompatibleFormat = errors.New("inflate: incompatible stream format")
	ErrInvalidParameters  = errors.New("inflate: invalid parameters")
	ErrCorruptData        = errors.New("inflate: input data corrupted")
	ErrInconsistentState  = errors.New("inflate: inconsistent stream state")
)

// Result reports how an output of the declared size was produced.
type Result struct {
	// Inflated is the number of bytes produced by the stream.
	Inflated int64

	// ZeroFilled is the number of trailing bytes padded because the stream
	// ended before the declared size.
	ZeroFilled int64
}

// Underrun reports whether the stream was shorter than declared.
func (r Result) Underrun() bool { return r.ZeroFilled > 0 }

// Inflater decompresses zlib streams with pooled readers.
// An Inflater is safe for concurrent use.
type Inflater struct {
	maxMemory uint64
	pool      sync.Pool
}

// New returns an Inflater that rejects outputs larger than maxMemory bytes.
// A maxMemory of 0 disables the limit.
func New(maxMemory uint64) *Inflater {
	return &Inflater{maxMemory: maxMemory}
}

// Inflate decompresses src and writes exactly size bytes to w.
//
// A stream that ends early is padded with zeros; bytes past size are ignored.
func (in *Inflater) Inflate(w io.Writer, src []byte, size int64) (Result, error) {
	var res Result
	if size < 0 || len(src) == 0 {
		return res, fmt.Errorf("%w: size %d, input %d bytes", ErrInvalidParameters, size, len(src))
	}
	if in.maxMemory > 0 && uint64(size) > in.maxMemory {
		return res, fmt.Errorf("%w: %d > %d bytes", ErrOutOfMemory, size, in.maxMemory)
	}

	zr, release, err := in.reader(src)
	if err != nil {
		return res, classify(err)
	}

	n, err := io.CopyN(w, zr, size)
	res.Inflated = n
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		filled, fillErr := io.CopyN(w, zeroReader{}, size-n)
		res.ZeroFilled = filled
		// A short stream leaves the reader holding its EOF error; Close would
		// report it again.
		_ = zr.Close() //nolint:errcheck // see above
		return res, fillErr
	default:
		_ = zr.Close() //nolint:errcheck // stream error takes precedence
		return res, classify(err)
	}

	if err := zr.Close(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrInconsistentState, err)
	}
	release()
	return res, nil
}

// reader returns a zlib reader over src and a function that returns it to
// the pool after a successful Close.
func (in *Inflater) reader(src []byte) (io.ReadCloser, func(), error) {
	if zr, ok := in.pool.Get().(io.ReadCloser); ok {
		if r, ok := zr.(zlib.Resetter); ok && r.Reset(bytes.NewReader(src), nil) == nil {
			return zr, func() { in.pool.Put(zr) }, nil
		}
	}
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, nil, err
	}
	return zr, func() { in.pool.Put(zr) }, nil
}

// classify maps a zlib or flate error to one of the package sentinels.
func classify(err error) error {
	var corrupt flate.CorruptInputError
	var internal flate.InternalError
	switch {
	case errors.Is(err, zlib.ErrHeader), errors.Is(err, zlib.ErrDictionary):
		return fmt.Errorf("%w: %w", ErrIncompatibleFormat, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: truncated stream header: %w", ErrInvalidParameters, err)
	case errors.Is(err, zlib.ErrChecksum), errors.As(err, &corrupt):
		return fmt.Errorf("%w: %w", ErrCorruptData, err)
	case errors.As(err, &internal):
		return fmt.Errorf("%w: %w", ErrInconsistentState, err)
	default:
		return fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
