package batch

// ProcessStats counts the outcome of Process.
type ProcessStats struct {
	// Processed entries were committed to the sink.
	Processed int

	// Skipped entries were not written: either the sink declined them or
	// their writer returned ErrSkip.
	Skipped int

	// Dropped is the part of Skipped whose writer returned ErrSkip.
	Dropped int

	// TotalBytes sums Entry.Size over processed entries.
	TotalBytes uint64
}
