package vpp

import (
	"github.com/meigma/vpp/core/internal/texture"
	"github.com/meigma/vpp/core/internal/vfstype"
)

// maxDepth bounds nesting: root archive, member, nested member.
const maxDepth = 3

// Member describes one entry listed by an Expander. Offsets are relative to
// the start of the container's bytes.
type Member = vfstype.Entry

// SkippedMember is a member an Expander dropped, with the reason.
type SkippedMember struct {
	Member Member
	Reason string
}

// Expansion is the result of listing a nested container.
type Expansion struct {
	Members []Member
	Skipped []SkippedMember
}

// Expander lists the members of a nested container format.
//
// Expanders are registered by lowercased file extension. A failing Expander
// only drops the container's children; the container itself stays in the VFS.
type Expander interface {
	Expand(name string, data []byte) (Expansion, error)
}

// ExpanderFunc adapts a function to the Expander interface.
type ExpanderFunc func(name string, data []byte) (Expansion, error)

// Expand calls f.
func (f ExpanderFunc) Expand(name string, data []byte) (Expansion, error) {
	return f(name, data)
}

// TextureExtension is the extension of texture containers.
const TextureExtension = ".peg"

// TextureExpander lists the frames of a texture container.
type TextureExpander struct {
	// MaxFrameSize drops frames larger than this many bytes (0 = no limit).
	MaxFrameSize uint64
}

// Expand implements Expander.
func (x TextureExpander) Expand(name string, data []byte) (Expansion, error) {
	entries, skips, err := texture.ReadEntries(name, data, x.MaxFrameSize)
	if err != nil {
		return Expansion{}, err
	}
	exp := Expansion{Members: entries}
	for _, s := range skips {
		exp.Skipped = append(exp.Skipped, SkippedMember{Member: s.Entry, Reason: s.Reason})
	}
	return exp, nil
}
