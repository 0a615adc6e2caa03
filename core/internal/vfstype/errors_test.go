package vfstype

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("load: %w", Invalid("a.vpp", "bad signature"))
	require.ErrorIs(t, err, ErrValidation)

	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "a.vpp", valErr.Path)
	assert.Equal(t, "vpp: validation failed: a.vpp: bad signature", valErr.Error())
	assert.Equal(t, "vpp: validation failed: short", (&ValidationError{Reason: "short"}).Error())
}

func TestLoadStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mapped", StateMapped.String())
	assert.Equal(t, "indexed", StateIndexed.String())
	assert.Equal(t, "unknown", LoadState(200).String())
}
