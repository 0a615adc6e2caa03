package cache

import (
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFor(t *testing.T) {
	t.Parallel()

	k := KeyFor("/games/RF/SUMMONER.VPP", []byte("compressed bytes"))
	assert.Equal(t, "summoner.vpp", k.Source)
	assert.Equal(t, digest.FromBytes([]byte("compressed bytes")), k.Digest)
	require.NoError(t, k.Validate())

	other := KeyFor("/games/RF/SUMMONER.VPP", []byte("replaced bytes"))
	assert.NotEqual(t, k, other)
}

func TestKeyValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Key{Digest: digest.FromString("x")}.Validate())
	require.Error(t, Key{Source: "a.vpp", Digest: "sha256:nothex"}.Validate())
}

func TestMetaSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0x1800+100), Meta{DataOffset: 0x1800, UncompressedSize: 100}.Size())
}
