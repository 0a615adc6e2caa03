package vpp

import "strings"

// NormalizePath turns a user-supplied path such as "/misc.vpp//a.tga/" into
// the form the fs.FS methods accept ("misc.vpp/a.tga"). Empty slash runs are
// dropped and a path with no elements becomes ".".
//
// "." and ".." elements are kept, so fs.ValidPath still rejects them.
func NormalizePath(p string) string {
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}
