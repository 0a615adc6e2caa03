package batch

import "io"

// Entry is one file to extract.
type Entry struct {
	// Path is the slash-separated destination path relative to the sink root.
	Path string

	// Size is the expected content length, used for scheduling and stats.
	Size uint64

	// Write produces the content.
	Write func(w io.Writer) error
}

// Sink receives extracted content during batch processing.
//
// Implementations determine where content is written and can filter which
// entries to process.
type Sink interface {
	// ShouldProcess returns false if this entry should be skipped.
	// This allows implementations to skip existing files.
	ShouldProcess(entry *Entry) bool

	// Writer returns a writer for the entry's content.
	// The returned Committer must have Commit() called after a successful
	// write, or Discard() called on any error.
	Writer(entry *Entry) (Committer, error)
}

// Committer is a writer that can be committed or discarded.
//
// Implementations should buffer or stage writes until Commit is called.
// For example, a file-based implementation might write to a temp file
// and rename it on Commit, or delete it on Discard.
type Committer interface {
	io.Writer

	// Commit finalizes the write, making content available.
	Commit() error

	// Discard aborts the write and cleans up any temporary resources.
	Discard() error
}
