// Package sizing checks archive offsets and sizes against overflow.
//
// Offsets and sizes read from archive directories are unsigned 64-bit values
// and may be arbitrary, so every conversion to a Go length goes through here.
package sizing

import (
	"math"
	"math/bits"
)

// ToInt64 converts size to int64, returning overflowErr if it does not fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > math.MaxInt64 {
		return 0, overflowErr
	}
	return int64(size), nil
}

// AddUint64 returns a+b and false if the sum wraps.
func AddUint64(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// Fits reports whether [off, off+size) lies inside a buffer of length n.
func Fits(off, size uint64, n int) bool {
	if n < 0 {
		return false
	}
	end, ok := AddUint64(off, size)
	return ok && end <= uint64(n)
}

// Slice returns data[off:off+size], or false if the range is out of bounds.
func Slice(data []byte, off, size uint64) ([]byte, bool) {
	if !Fits(off, size, len(data)) {
		return nil, false
	}
	return data[off : off+size], true
}
