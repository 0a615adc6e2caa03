package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/vpp/core/internal/vfstype"
)

// Skip records a directory record that was dropped while listing members.
type Skip struct {
	Entry  vfstype.Entry
	Reason string
}

// Skip reasons.
const (
	ReasonEmpty   = "size is 0"
	ReasonOverrun = "offset + size exceeds data size"
)

// ReadOptions tunes member validation.
type ReadOptions struct {
	// ExactFit accepts members whose last byte is the last byte of data.
	// By default a member must end strictly before the end of data.
	ExactFit bool
}

// ReadEntries lists the members of an archive whose header is h.
//
// data must hold the header prefix and the member payload. For uncompressed
// archives that is the file itself; for compressed v2 archives it is the
// header prefix [0, DataOffset) followed by the inflated payload.
//
// Members with a zero size or a range that overruns data are returned as
// skips rather than errors. A directory that does not fit in data fails the
// whole archive.
func ReadEntries(name string, h *Header, data []byte, opts ReadOptions) ([]vfstype.Entry, []Skip, error) {
	var (
		names []string
		sizes []uint64
		rt    []uint64
		err   error
	)
	switch h.Version {
	case 1:
		names, sizes, err = readV1Directory(name, h, data)
	case 2:
		names, sizes, rt, err = readV2Directory(name, h, data)
	default:
		err = vfstype.Invalid(name, fmt.Sprintf("unsupported version %d", h.Version))
	}
	if err != nil {
		return nil, nil, err
	}

	dataOffset := h.DataOffset()
	length := uint64(len(data))
	entries := make([]vfstype.Entry, 0, len(names))
	var skips []Skip

	cursor := dataOffset
	for i := range names {
		e := vfstype.Entry{Name: names[i], Index: i, Size: sizes[i]}
		if h.Compressed() {
			e.Offset = dataOffset + rt[i]
		} else {
			e.Offset = cursor
			cursor = Align(cursor + sizes[i])
		}

		switch {
		case e.Size == 0:
			skips = append(skips, Skip{Entry: e, Reason: ReasonEmpty})
		case overruns(e.End(), length, opts.ExactFit):
			skips = append(skips, Skip{Entry: e, Reason: ReasonOverrun})
		default:
			entries = append(entries, e)
		}
	}
	return entries, skips, nil
}

func overruns(end, length uint64, exactFit bool) bool {
	if exactFit {
		return end > length
	}
	return end >= length
}

func readV1Directory(name string, h *Header, data []byte) ([]string, []uint64, error) {
	count := int(h.FileCount)
	end := ChunkSize + count*v1RecordSize
	if end > len(data) {
		return nil, nil, vfstype.Invalid(name, fmt.Sprintf("directory of %d records exceeds file size", count))
	}
	names := make([]string, count)
	sizes := make([]uint64, count)
	for i := range count {
		rec := data[ChunkSize+i*v1RecordSize:]
		names[i] = cString(rec[:v1NameSize])
		sizes[i] = uint64(binary.LittleEndian.Uint32(rec[v1NameSize:]))
	}
	return names, sizes, nil
}

func readV2Directory(name string, h *Header, data []byte) ([]string, []uint64, []uint64, error) {
	count := int(h.FileCount)
	end := ChunkSize + count*v2RecordSize
	if end > len(data) {
		return nil, nil, nil, vfstype.Invalid(name, fmt.Sprintf("directory of %d records exceeds file size", count))
	}
	le := binary.LittleEndian
	sizes := make([]uint64, count)
	rt := make([]uint64, count)
	for i := range count {
		rec := data[ChunkSize+i*v2RecordSize:]
		rt[i] = uint64(le.Uint32(rec[4:]))
		sizes[i] = uint64(le.Uint32(rec[12:]))
	}

	names, err := readFilenames(name, h, data)
	if err != nil {
		return nil, nil, nil, err
	}
	return names, sizes, rt, nil
}

// readFilenames reads NUL-terminated names from the v2 filename table until
// FilenamesSize bytes are consumed.
func readFilenames(name string, h *Header, data []byte) ([]string, error) {
	start := h.FilenamesOffset()
	tableEnd := start + uint64(h.FilenamesSize)
	if tableEnd > uint64(len(data)) {
		return nil, vfstype.Invalid(name, "filename table exceeds file size")
	}
	table := data[start:tableEnd]

	names := make([]string, 0, h.FileCount)
	for pos := 0; pos < len(table) && len(names) < int(h.FileCount); {
		n := cString(table[pos:])
		names = append(names, n)
		pos += len(n) + 1
	}
	if len(names) < int(h.FileCount) {
		return nil, vfstype.Invalid(name, fmt.Sprintf("filename table holds %d names, want %d", len(names), h.FileCount))
	}
	return names, nil
}
