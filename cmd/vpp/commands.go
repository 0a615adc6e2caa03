package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/meigma/vpp"
	vppcore "github.com/meigma/vpp/core"
	coredisk "github.com/meigma/vpp/core/cache/disk"
	"github.com/meigma/vpp/fuse"
)

// globals holds the flags shared by every command.
type globals struct {
	cacheDir string
	logLevel string
	logger   *slog.Logger
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var g globals

	flagSet := pflag.NewFlagSet("vpp", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&g.cacheDir, "cache-dir", os.Getenv("VPP_CACHE_DIR"), "decompression cache directory (env VPP_CACHE_DIR)")
	flagSet.StringVar(&g.logLevel, "log-level", envOr("VPP_LOG_LEVEL", "error"), "log level: debug, info, warn, error (env VPP_LOG_LEVEL)")
	flagSet.Usage = func() {
		usage(stderr)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", g.logLevel, err)
	}
	g.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "ls":
		return runList(ctx, &g, cmdArgs, stdout, stderr)
	case "extract":
		return runExtract(ctx, &g, cmdArgs, stdout, stderr)
	case "frames":
		return runFrames(ctx, &g, cmdArgs, stdout, stderr)
	case "mount":
		return runMount(ctx, &g, cmdArgs, stderr)
	case "cache":
		return runCache(&g, cmdArgs, stdout, stderr)
	default:
		flagSet.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// load opens the archives named by paths with the global settings applied.
func (g *globals) load(ctx context.Context, paths ...string) (*vpp.VFS, error) {
	opts := []vpp.Option{vpp.WithLogger(g.logger)}
	if g.cacheDir != "" {
		opts = append(opts, vpp.WithCacheDir(g.cacheDir))
	}
	client, err := vpp.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return client.Load(ctx, paths...)
}

func (g *globals) diskCache() (*coredisk.Cache, error) {
	dir := g.cacheDir
	if dir == "" {
		dir = vppcore.DefaultCacheDir()
	}
	return coredisk.New(dir)
}

func subFlags(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("vpp "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func runList(ctx context.Context, g *globals, args []string, stdout, stderr io.Writer) error {
	flagSet := subFlags("ls", stderr)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() == 0 {
		return errors.New("ls: at least one archive is required")
	}

	v, err := g.load(ctx, flagSet.Args()...)
	if err != nil {
		return err
	}
	defer v.Close()

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SIZE\tOFFSET\t PATH")
	err = v.Walk(func(e vpp.EntryView) error {
		name := e.FSPath()
		if name == "" {
			name = e.AbsolutePath()
		}
		indent := strings.Repeat("  ", e.Depth())
		_, werr := fmt.Fprintf(tw, "%d\t%#x\t %s%s\n", e.Size(), e.OffsetInRoot(), indent, path.Base(name))
		return werr
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}

func runExtract(ctx context.Context, g *globals, args []string, stdout, stderr io.Writer) error {
	flagSet := subFlags("extract", stderr)
	out := flagSet.StringP("output", "o", "", "destination directory (required)")
	png := flagSet.Bool("png", false, "decode texture frames to PNG")
	overwrite := flagSet.Bool("overwrite", false, "replace existing files")
	workers := flagSet.Int("workers", 0, "parallel writers (0 = automatic, <0 = serial)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("extract: -o is required")
	}
	if flagSet.NArg() < 1 || flagSet.NArg() > 2 {
		return errors.New("extract: usage: extract -o DIR <archive> [prefix]")
	}

	v, err := g.load(ctx, flagSet.Arg(0))
	if err != nil {
		return err
	}
	defer v.Close()

	roots := v.Roots()
	if len(roots) == 0 {
		return fmt.Errorf("extract: no archive found at %s", flagSet.Arg(0))
	}
	prefix := roots[0].FSPath()
	if p := flagSet.Arg(1); p != "" {
		prefix = path.Join(prefix, vpp.NormalizePath(p))
	}

	start := time.Now()
	stats, err := v.CopyDir(ctx, *out, prefix,
		vpp.CopyWithDecodedFrames(*png),
		vpp.CopyWithOverwrite(*overwrite),
		vpp.CopyWithWorkers(*workers),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "extracted %d files (%d bytes), skipped %d in %s\n",
		stats.Processed, stats.TotalBytes, stats.Skipped, time.Since(start).Round(time.Millisecond))
	return nil
}

func runFrames(ctx context.Context, g *globals, args []string, stdout, stderr io.Writer) error {
	flagSet := subFlags("frames", stderr)
	out := flagSet.StringP("output", "o", "", "export frames as PNG into this directory")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		return errors.New("frames: usage: frames [-o DIR] <archive> <container>")
	}

	archive := flagSet.Arg(0)
	v, err := g.load(ctx)
	if err != nil {
		return err
	}
	defer v.Close()

	peg, err := v.Resolve(filepath.Dir(archive), filepath.Base(archive), flagSet.Arg(1))
	if err != nil {
		return err
	}
	if !peg.IsContainer() {
		return fmt.Errorf("frames: %s holds no frames", flagSet.Arg(1))
	}

	images, decodeErr := v.DecodeFrames(peg)

	if *out == "" {
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tWIDTH\tHEIGHT\tFORMAT\tSIZE")
		byName := make(map[string]*vpp.Image, len(images))
		for _, img := range images {
			byName[img.Name] = img
		}
		for _, frame := range peg.Children() {
			img, ok := byName[frame.Name()]
			if !ok {
				fmt.Fprintf(tw, "%s\t-\t-\t-\t%d\n", frame.Name(), frame.Size())
				continue
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\n", img.Name, img.Width, img.Height, img.Format, frame.Size())
		}
		if decodeErr != nil {
			g.logger.Warn("some frames could not be decoded", "container", peg.AbsolutePath(), "error", decodeErr)
		}
		return tw.Flush()
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	exported := 0
	for _, img := range images {
		if img.Bounds().Empty() {
			g.logger.Warn("frame has no pixel data", "frame", img.Name, "format", img.Format)
			continue
		}
		if err := writePNG(filepath.Join(*out, strings.ReplaceAll(img.Name, "/", "_")+".png"), img); err != nil {
			return err
		}
		exported++
	}
	fmt.Fprintf(stdout, "exported %d frames to %s\n", exported, *out)
	if decodeErr != nil {
		g.logger.Warn("some frames could not be decoded", "container", peg.AbsolutePath(), "error", decodeErr)
	}
	return nil
}

func writePNG(dest string, img *vpp.Image) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return vpp.EncodePNG(f, img)
}

func runMount(ctx context.Context, g *globals, args []string, stderr io.Writer) error {
	flagSet := subFlags("mount", stderr)
	allowOther := flagSet.Bool("allow-other", false, "let other users access the mount")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() < 2 {
		return errors.New("mount: usage: mount <mountpoint> <archive>...")
	}

	v, err := g.load(ctx, flagSet.Args()[1:]...)
	if err != nil {
		return err
	}
	defer v.Close()

	server, err := fuse.Mount(fuse.Options{
		Mountpoint: flagSet.Arg(0),
		VFS:        v,
		AllowOther: *allowOther,
		Logger:     g.logger,
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	if err := server.Unmount(); err != nil {
		return fmt.Errorf("unmount %s: %w", flagSet.Arg(0), err)
	}
	return nil
}

func runCache(g *globals, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New("cache: expected ls or prune")
	}

	c, err := g.diskCache()
	if err != nil {
		return err
	}

	switch args[0] {
	case "ls":
		entries, err := c.Entries()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SOURCE\tDIGEST\tSIZE\tCREATED")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Key.Source, e.Key.Digest.Encoded()[:12], e.Meta.Size(), e.Created.Format(time.RFC3339))
		}
		return tw.Flush()
	case "prune":
		flagSet := subFlags("cache prune", stderr)
		maxBytes := flagSet.Int64("max-bytes", 0, "keep at most this many bytes")
		if err := flagSet.Parse(args[1:]); err != nil {
			return err
		}
		freed, err := c.Prune(*maxBytes)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "freed %d bytes from %s\n", freed, c.Dir())
		return nil
	default:
		return fmt.Errorf("cache: unknown subcommand %q", args[0])
	}
}
