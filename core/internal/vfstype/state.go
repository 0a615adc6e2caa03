package vfstype

// LoadState tracks a root archive through AddRootArchive.
type LoadState uint8

// Load states in the order an archive passes through them.
const (
	StateUnmapped LoadState = iota
	StateMapped
	StateDecompressing
	StateCacheReady
	StateRemapped
	StateDirectoryParsed
	StateIndexed
	StateRejected
)

func (s LoadState) String() string {
	switch s {
	case StateUnmapped:
		return "unmapped"
	case StateMapped:
		return "mapped"
	case StateDecompressing:
		return "decompressing"
	case StateCacheReady:
		return "cache-ready"
	case StateRemapped:
		return "remapped"
	case StateDirectoryParsed:
		return "directory-parsed"
	case StateIndexed:
		return "indexed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
