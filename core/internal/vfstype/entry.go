// Package vfstype holds the descriptors and errors shared between the
// container readers and the virtual filesystem.
package vfstype

// Entry describes one member of a container as produced by a reader.
//
// Entries are transient: the virtual filesystem consumes them once while
// building nodes and does not retain them.
type Entry struct {
	// Name is the member name as stored in the container.
	Name string

	// Index is the member's position in the container directory.
	Index int

	// Offset is the byte offset of the member relative to the start of the
	// container's bytes.
	Offset uint64

	// Size is the member length in bytes.
	Size uint64
}

// End returns the offset one past the member's last byte.
func (e *Entry) End() uint64 {
	return e.Offset + e.Size
}
