package cache

import "errors"

var errEmptySource = errors.New("cache: key source is empty")

// ErrSizeMismatch is returned by Store when the written content does not
// match the declared layout.
var ErrSizeMismatch = errors.New("cache: content size mismatch")

// ErrTooLarge is returned by Store when an entry cannot fit under MaxBytes.
var ErrTooLarge = errors.New("cache: entry exceeds cache size limit")
