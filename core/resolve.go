package vpp

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// Resolve returns the entry reached from the archive dir/archive by
// following member names, loading the archive first if needed.
//
// With no member names Resolve returns the root archive itself. This is how
// a consumer of one archive reaches a sibling archive shipped next to it.
func (v *VFS) Resolve(dir, archive string, members ...string) (EntryView, error) {
	root, err := v.AddRootArchive(filepath.Join(dir, archive))
	if err != nil {
		return EntryView{}, err
	}
	if len(members) == 0 {
		return root, nil
	}
	abs := root.AbsolutePath() + "/" + strings.Join(members, "/")
	e, ok := v.Entry(abs)
	if !ok {
		return EntryView{}, &fs.PathError{Op: "resolve", Path: abs, Err: fmt.Errorf("%w: no such member", fs.ErrNotExist)}
	}
	return e, nil
}
