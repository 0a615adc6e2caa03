package texture

import (
	"fmt"

	"github.com/meigma/vpp/core/internal/vfstype"
)

// Skip records a frame that was dropped while listing the container.
type Skip struct {
	Entry  vfstype.Entry
	Reason string
}

// Skip reasons.
const (
	ReasonBadName  = "invalid frame name"
	ReasonTooLarge = "frame too large"
	ReasonNegative = "negative frame size"
	ReasonOverrun  = "frame exceeds container"
)

// ReadEntries lists the frames of the container in data as entries whose
// offsets are relative to the container start.
//
// Frames with a name holding non-ASCII bytes, a name of exactly four bytes,
// a derived size above maxFrameSize (0 disables the limit), a negative size
// or a range outside data are returned as skips.
func ReadEntries(name string, data []byte, maxFrameSize uint64) ([]vfstype.Entry, []Skip, error) {
	h, err := ReadHeader(name, data)
	if err != nil {
		return nil, nil, err
	}
	frames, err := ReadFrames(name, h, data)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]vfstype.Entry, 0, len(frames))
	var skips []Skip
	for i := range frames {
		f := &frames[i]
		size := FrameSize(h, frames, i)
		e := vfstype.Entry{Name: f.Name, Index: i, Offset: uint64(f.Offset)}
		if size > 0 {
			e.Size = uint64(size)
		}

		var reason string
		switch {
		case !validName(f.Name):
			reason = ReasonBadName
		case size < 0:
			reason = ReasonNegative
		case maxFrameSize > 0 && e.Size > maxFrameSize:
			reason = fmt.Sprintf("%s (%d > %d bytes)", ReasonTooLarge, e.Size, maxFrameSize)
		case e.End() > uint64(len(data)):
			reason = ReasonOverrun
		}
		if reason != "" {
			skips = append(skips, Skip{Entry: e, Reason: reason})
			continue
		}
		entries = append(entries, e)
	}
	return entries, skips, nil
}

// validName rejects names with bytes above 127 and bare four-byte names,
// which in shipped containers are extension-only placeholders.
func validName(name string) bool {
	if len(name) == 4 {
		return false
	}
	for i := range len(name) {
		if name[i] > 127 {
			return false
		}
	}
	return true
}
