package disk

import (
	"errors"
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/vpp/core/cache"
	"github.com/meigma/vpp/core/internal/fb"
)

const manifestVersion = 1

var errManifest = errors.New("disk cache: invalid manifest")

type manifest struct {
	key         cache.Key
	meta        cache.Meta
	payloadSize uint64
	created     time.Time
}

func encodeManifest(m *manifest) []byte {
	builder := flatbuffers.NewBuilder(256)
	source := builder.CreateString(m.key.Source)
	dgst := builder.CreateString(m.key.Digest.String())

	fb.CacheManifestStart(builder)
	fb.CacheManifestAddVersion(builder, manifestVersion)
	fb.CacheManifestAddSource(builder, source)
	fb.CacheManifestAddDigest(builder, dgst)
	fb.CacheManifestAddDataOffset(builder, m.meta.DataOffset)
	fb.CacheManifestAddUncompressedSize(builder, m.meta.UncompressedSize)
	fb.CacheManifestAddPayloadSize(builder, m.payloadSize)
	fb.CacheManifestAddCreatedUnixNs(builder, m.created.UnixNano())
	builder.Finish(fb.CacheManifestEnd(builder))
	return builder.FinishedBytes()
}

func decodeManifest(data []byte) (m *manifest, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, errManifest
	}
	// Malformed buffers make the generated accessors index out of range.
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("%w: %v", errManifest, r)
		}
	}()

	root := fb.GetRootAsCacheManifest(data, 0)
	if root.Version() != manifestVersion {
		return nil, fmt.Errorf("%w: version %d", errManifest, root.Version())
	}
	key := cache.Key{Source: string(root.Source()), Digest: digest.Digest(root.Digest())}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errManifest, err)
	}
	return &manifest{
		key: key,
		meta: cache.Meta{
			DataOffset:       root.DataOffset(),
			UncompressedSize: root.UncompressedSize(),
		},
		payloadSize: root.PayloadSize(),
		created:     time.Unix(0, root.CreatedUnixNs()),
	}, nil
}
