package processor

import (
	"fmt"
	"time"

	"github.com/edwardmakesthings/pyweaver/internal/tracker"
)

// Result is the aggregated report returned by Process. It is the sole output
// contract of the core: error messages are collected here, never re-raised.
type Result struct {
	// RunID uniquely identifies the run; history rows key on it.
	RunID string

	// Success is true when no item ended terminally in Error.
	Success bool

	// Message is a one-line human-readable summary.
	Message string

	// FilesProcessed counts items that completed successfully.
	FilesProcessed int

	// Errors lists the collected error messages of terminally-failed items.
	Errors []string

	// Warnings lists non-fatal notices, e.g. items skipped by ignore rules.
	Warnings []string

	// Stats is the tracker snapshot taken before cleanup.
	Stats tracker.Stats

	// Duration is the wall-clock time of the Process call.
	Duration time.Duration
}

// summaryMessage builds the result message from the final stats.
func summaryMessage(stats tracker.Stats) string {
	if stats.Errors == 0 {
		return fmt.Sprintf("processed %d item(s), %d ignored", stats.Processed, stats.Ignored)
	}
	return fmt.Sprintf("processed %d item(s), %d ignored, %d failed",
		stats.Processed, stats.Ignored, stats.Errors)
}
