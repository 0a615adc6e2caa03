// Package batch writes many entries to a sink with a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/vpp/core/internal/sizing"
)

// parallelMinAvgBytes is the average entry size below which automatic mode
// writes serially.
const parallelMinAvgBytes = 64 << 10

// Processor writes entries to a Sink.
type Processor struct {
	workers int // 0 = auto, <0 = serial, >0 = fixed count
	logger  *slog.Logger
}

func (p *Processor) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers fixes the pool size. Negative values write serially and zero
// picks a size from the entries.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithProcessorLogger sets the logger. Without one nothing is logged.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a new batch processor.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process writes entries to the sink.
//
// Entries the sink declines are counted without being opened. The rest are
// written by up to workerCount goroutines. Processing stops on the first
// error or when ctx is cancelled; entries already committed stay in place.
func (p *Processor) Process(ctx context.Context, entries []*Entry, sink Sink) (ProcessStats, error) {
	var stats ProcessStats
	todo := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		if !sink.ShouldProcess(entry) {
			stats.Skipped++
			continue
		}
		todo = append(todo, entry)
	}
	if len(todo) == 0 {
		return stats, ctx.Err()
	}

	workers := p.workerCount(todo)
	p.log().Debug("batch processing", "entries", len(todo), "skipped", stats.Skipped, "workers", workers)

	var mu sync.Mutex
	record := func(entry *Entry, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			stats.Skipped++
			stats.Dropped++
			return
		}
		stats.Processed++
		stats.TotalBytes += entry.Size
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, entry := range todo {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			err := processEntry(entry, sink)
			switch {
			case errors.Is(err, ErrSkip):
				p.log().Warn("skipping entry", "path", entry.Path, "error", err)
			case err != nil:
				return err
			}
			record(entry, err)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return stats, err
	}
	return stats, ctx.Err()
}

// processEntry writes a single entry through a Committer.
func processEntry(entry *Entry, sink Sink) error {
	if entry.Write == nil {
		return fmt.Errorf("batch: %s: %w", entry.Path, errNoContent)
	}
	w, err := sink.Writer(entry)
	if err != nil {
		return fmt.Errorf("batch: %s: %w", entry.Path, err)
	}
	if err := entry.Write(w); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("batch: %s: %w", entry.Path, err)
	}
	if err := w.Commit(); err != nil {
		return fmt.Errorf("batch: %s: commit: %w", entry.Path, err)
	}
	return nil
}

var errNoContent = errors.New("entry has no content writer")

// ErrSkip may be returned (or wrapped) by Entry.Write to drop the entry
// without failing the batch. The entry is counted as skipped.
var ErrSkip = errors.New("batch: skip entry")

// workerCount picks the pool size for entries. Automatic mode fans out only
// when the average entry reaches parallelMinAvgBytes.
func (p *Processor) workerCount(entries []*Entry) int {
	n := len(entries)
	switch {
	case n < 2 || p.workers < 0:
		return 1
	case p.workers > 0:
		return min(p.workers, n)
	}

	var total uint64
	for _, entry := range entries {
		next, ok := sizing.AddUint64(total, entry.Size)
		if !ok {
			total = ^uint64(0)
			break
		}
		total = next
	}
	if total/uint64(n) < parallelMinAvgBytes {
		return 1
	}
	return max(1, min(runtime.GOMAXPROCS(0), n))
}
