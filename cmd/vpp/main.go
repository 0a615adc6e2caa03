// vpp browses VPP game archives and the texture containers nested in them.
//
// Usage:
//
//	vpp [global flags] ls <archive|dir>...
//	vpp [global flags] extract -o DIR [--png] <archive> [prefix]
//	vpp [global flags] frames [-o DIR] <archive> <container>
//	vpp [global flags] mount <mountpoint> <archive|dir>...
//	vpp [global flags] cache ls|prune [--max-bytes N]
//
// Global flags fall back to the VPP_CACHE_DIR and VPP_LOG_LEVEL environment
// variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `vpp reads VPP archives and the PEG texture containers inside them.

Usage:
  vpp [flags] <command> [args]

Commands:
  ls       list archive contents with sizes and offsets
  extract  copy archive entries to a directory
  frames   list texture frames, or export them as PNG
  mount    expose archives as a read-only FUSE filesystem
  cache    inspect (ls) or empty (prune) the decompression cache

Flags:
`)
}
