package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverflow = errors.New("overflow")

func TestToInt64(t *testing.T) {
	t.Parallel()

	n, err := ToInt64(math.MaxInt64, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), n)

	_, err = ToInt64(math.MaxInt64+1, errOverflow)
	require.ErrorIs(t, err, errOverflow)
}

func TestAddUint64(t *testing.T) {
	t.Parallel()

	sum, ok := AddUint64(1, 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), sum)

	_, ok = AddUint64(math.MaxUint64, 1)
	assert.False(t, ok)
}

func TestFits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		off, size uint64
		n         int
		want      bool
	}{
		{"empty range at end", 10, 0, 10, true},
		{"exact fit", 2, 8, 10, true},
		{"one past end", 3, 8, 10, false},
		{"offset overflow", math.MaxUint64, 2, 10, false},
		{"negative length", 0, 0, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Fits(tt.off, tt.size, tt.n))
		})
	}
}

func TestSlice(t *testing.T) {
	t.Parallel()

	data := []byte("archive")
	got, ok := Slice(data, 2, 3)
	require.True(t, ok)
	assert.Equal(t, []byte("chi"), got)

	got, ok = Slice(data, 7, 0)
	require.True(t, ok)
	assert.Empty(t, got)

	_, ok = Slice(data, 5, 3)
	assert.False(t, ok)
}
