// Package tracker provides a thread-safe registry of filesystem items moving
// through the processing lifecycle. Items are claimed in insertion order and
// failed items are requeued until a configured attempt ceiling is reached.
package tracker

import (
	"os"
	"sync"
	"time"

	"github.com/edwardmakesthings/pyweaver/internal/errs"
)

// Status is the lifecycle position of one tracked item.
type Status int

const (
	// StatusPending means the item is queued and claimable.
	StatusPending Status = iota
	// StatusProcessing means the item has been claimed by the worker loop.
	StatusProcessing
	// StatusProcessed means the item completed successfully.
	StatusProcessed
	// StatusIgnored means the item was filtered out without processing.
	StatusIgnored
	// StatusError means the item failed and exhausted its retry ceiling.
	StatusError
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusProcessed:
		return "processed"
	case StatusIgnored:
		return "ignored"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ItemType filters what kind of filesystem entries a tracker accepts.
type ItemType int

const (
	// ItemTypeBoth accepts files and directories without stat-checking.
	ItemTypeBoth ItemType = iota
	// ItemTypeFiles accepts regular files only.
	ItemTypeFiles
	// ItemTypeDirectories accepts directories only.
	ItemTypeDirectories
)

// State is the tracker's own lifecycle position.
type State int

const (
	// StateInitialized is the state of a new tracker with no items.
	StateInitialized State = iota
	// StateActive means at least one item has been added.
	StateActive
	// StateCompleted means Cleanup ran; the tracker accepts no more items.
	StateCompleted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// DefaultMaxAttempts is the retry ceiling applied when none is configured.
const DefaultMaxAttempts = 3

// Item is one tracked filesystem path and its lifecycle bookkeeping.
type Item struct {
	Path      string
	Status    Status
	Err       error // last error recorded by MarkError
	Attempts  int   // failure count; increments only in MarkError
	Timestamp time.Time
}

// Stats is an immutable snapshot of the tracker's status counts. The counts
// always sum to Total.
type Stats struct {
	Pending    int
	Processing int
	Processed  int
	Ignored    int
	Errors     int
	Total      int
}

// ItemError pairs a path with the error that left it in terminal Error state.
type ItemError struct {
	Path string
	Err  error
}

// Tracker registers items and drives their status transitions. Every public
// method holds the single mutex for its full body, so a tracker may be shared
// between the processing loop and goroutines reading stats.
type Tracker struct {
	mu          sync.Mutex
	state       State
	itemType    ItemType
	maxAttempts int

	items map[string]*Item
	order []string // insertion order, drives NextPending claim order
}

// New creates a tracker accepting the given item type. maxAttempts values
// below 1 fall back to DefaultMaxAttempts.
func New(itemType ItemType, maxAttempts int) *Tracker {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Tracker{
		state:       StateInitialized,
		itemType:    itemType,
		maxAttempts: maxAttempts,
		items:       make(map[string]*Item),
	}
}

// State returns the tracker's current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// MaxAttempts returns the configured retry ceiling.
func (t *Tracker) MaxAttempts() int {
	return t.maxAttempts
}

// AddPending registers path with status Pending. Re-adding a tracked path is
// a no-op. When the tracker filters by item type the path is stat-ed and a
// mismatched entry is skipped without error; an unreadable path is rejected
// with a PathError. The first successful add flips the tracker to Active.
func (t *Tracker) AddPending(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateInitialized && t.state != StateActive {
		return errs.NewStateError("add_pending", "tracker cannot accept items",
			t.state.String(), "initialized or active")
	}

	if _, exists := t.items[path]; exists {
		return nil
	}

	if t.itemType != ItemTypeBoth {
		info, err := os.Stat(path)
		if err != nil {
			return errs.NewPathError("add_pending", "cannot stat item", path, err).
				WithCode(errs.CodePathAccess)
		}
		if t.itemType == ItemTypeFiles && info.IsDir() {
			return nil
		}
		if t.itemType == ItemTypeDirectories && !info.IsDir() {
			return nil
		}
	}

	t.items[path] = &Item{
		Path:      path,
		Status:    StatusPending,
		Timestamp: time.Now(),
	}
	t.order = append(t.order, path)
	t.state = StateActive
	return nil
}

// NextPending atomically claims the first Pending item in insertion order,
// transitioning it to Processing. The second return is false when nothing is
// claimable.
func (t *Tracker) NextPending() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, path := range t.order {
		item := t.items[path]
		if item.Status == StatusPending {
			item.Status = StatusProcessing
			item.Timestamp = time.Now()
			return path, true
		}
	}
	return "", false
}

// MarkProcessed transitions a Pending or Processing item to Processed.
func (t *Tracker) MarkProcessed(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, exists := t.items[path]
	if !exists {
		return errs.NewStateError("mark_processed", "item is not tracked: "+path,
			"", "pending or processing")
	}
	if item.Status != StatusPending && item.Status != StatusProcessing {
		return errs.NewStateError("mark_processed", "item cannot become processed: "+path,
			item.Status.String(), "pending or processing").WithCode(errs.CodeStateTransition)
	}

	item.Status = StatusProcessed
	item.Timestamp = time.Now()
	return nil
}

// MarkIgnored transitions any tracked item to Ignored.
func (t *Tracker) MarkIgnored(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, exists := t.items[path]
	if !exists {
		return errs.NewStateError("mark_ignored", "item is not tracked: "+path,
			"", "any tracked status")
	}

	item.Status = StatusIgnored
	item.Timestamp = time.Now()
	return nil
}

// MarkError records a failure for path and increments its attempt count.
// While the count is below the retry ceiling the item re-enters Pending
// immediately (no delay, no backoff) and requeued is true; at the ceiling the
// item settles in terminal Error.
func (t *Tracker) MarkError(path string, cause error) (requeued bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, exists := t.items[path]
	if !exists {
		return false, errs.NewStateError("mark_error", "item is not tracked: "+path,
			"", "any tracked status")
	}

	item.Attempts++
	item.Err = cause
	item.Timestamp = time.Now()

	if item.Attempts < t.maxAttempts {
		item.Status = StatusPending
		return true, nil
	}
	item.Status = StatusError
	return false, nil
}

// Stats returns a snapshot of the current status counts.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	var s Stats
	for _, item := range t.items {
		switch item.Status {
		case StatusPending:
			s.Pending++
		case StatusProcessing:
			s.Processing++
		case StatusProcessed:
			s.Processed++
		case StatusIgnored:
			s.Ignored++
		case StatusError:
			s.Errors++
		}
	}
	s.Total = len(t.items)
	return s
}

// Errors returns the items that settled in terminal Error state, in insertion
// order.
func (t *Tracker) Errors() []ItemError {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []ItemError
	for _, path := range t.order {
		item := t.items[path]
		if item.Status == StatusError {
			out = append(out, ItemError{Path: path, Err: item.Err})
		}
	}
	return out
}

// HasPending reports whether any item is claimable.
func (t *Tracker) HasPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, item := range t.items {
		if item.Status == StatusPending {
			return true
		}
	}
	return false
}

// Item returns a copy of the tracked item for path, if present.
func (t *Tracker) Item(path string) (Item, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, exists := t.items[path]
	if !exists {
		return Item{}, false
	}
	return *item, true
}

// Cleanup clears all tracked items and moves the tracker to Completed. A
// completed tracker rejects further adds.
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = make(map[string]*Item)
	t.order = nil
	t.state = StateCompleted
}
