package processor

import (
	"sync"
	"time"
)

// Progress is a snapshot of a run's counters. TotalItems is fixed when
// Process starts; the remaining counters advance as items settle.
type Progress struct {
	TotalItems     int
	ProcessedItems int
	IgnoredItems   int
	ErrorItems     int
	StartTime      time.Time
	EndTime        time.Time
	CurrentItem    string
}

// CompletionPercentage reports how much of the run has settled, 0-100.
func (p Progress) CompletionPercentage() float64 {
	if p.TotalItems == 0 {
		return 0
	}
	done := p.ProcessedItems + p.IgnoredItems + p.ErrorItems
	return float64(done) / float64(p.TotalItems) * 100
}

// IsComplete reports whether every item has settled.
func (p Progress) IsComplete() bool {
	return p.TotalItems > 0 &&
		p.ProcessedItems+p.IgnoredItems+p.ErrorItems == p.TotalItems
}

// progressState is the mutable counterpart guarded by its own mutex so
// other goroutines can snapshot progress while the loop runs.
type progressState struct {
	mu sync.Mutex
	p  Progress
}

func (ps *progressState) snapshot() Progress {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.p
}

func (ps *progressState) update(f func(*Progress)) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	f(&ps.p)
}
