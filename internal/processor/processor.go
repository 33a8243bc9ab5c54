// Package processor implements the file-processing orchestration core. A
// Processor owns a tracker of pending items and drives each one through a
// bounded-retry lifecycle, calling an injected ItemHandler for the actual
// per-item work. Per-item failures are recovered, counted and possibly
// retried; they never abort the batch.
package processor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/errs"
	"github.com/edwardmakesthings/pyweaver/internal/logger"
	"github.com/edwardmakesthings/pyweaver/internal/tracker"
)

// State is the processor's lifecycle position.
type State int

const (
	// StateInitialized is the state of a freshly-constructed processor.
	StateInitialized State = iota
	// StateConfiguring is the transient state while options are validated.
	StateConfiguring
	// StateReady means validation passed and Process may be called.
	StateReady
	// StateProcessing means the worker loop is draining pending items.
	StateProcessing
	// StatePaused means the loop is idling; no new item is claimed.
	StatePaused
	// StateCompleted means the loop drained every pending item.
	StateCompleted
	// StateError means a fatal (non-item) failure occurred.
	StateError
	// StateCleanup is terminal; tracker state has been released.
	StateCleanup
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	case StateCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// ItemHandler performs the actual work for one item. Implementations return
// a typed error from the errs taxonomy where possible; anything else is
// wrapped with operation and path context before being tracked.
type ItemHandler interface {
	ProcessItem(path string) error
}

// ItemHandlerFunc adapts a plain function to the ItemHandler interface.
type ItemHandlerFunc func(path string) error

// ProcessItem calls f(path).
func (f ItemHandlerFunc) ProcessItem(path string) error {
	return f(path)
}

// ItemFilter lets a tool replace the default include/ignore predicate. The
// returned reason, when non-empty, is recorded as a warning.
type ItemFilter interface {
	ShouldProcess(path string) (bool, string)
}

// defaultPausePoll is how long the loop sleeps between pause checks.
const defaultPausePoll = 25 * time.Millisecond

// Options configures a Processor.
type Options struct {
	// Operation names the run in errors and logs, e.g. "combine".
	Operation string

	// Paths supplies the default include/ignore predicate. May be nil, in
	// which case every item is processed.
	Paths *config.PathConfig

	// ItemType filters what the tracker accepts.
	ItemType tracker.ItemType

	// MaxAttempts is the retry ceiling; values below 1 use the tracker
	// default.
	MaxAttempts int

	// Filter overrides the default predicate when non-nil.
	Filter ItemFilter

	// Logger receives run progress. Defaults to the no-op logger.
	Logger logger.Logger

	// Progress, when non-nil, is kept in sync with the run: the total is set
	// once pending items are counted and the bar advances as items settle.
	Progress *logger.ProgressBar

	// PausePoll overrides the pause polling interval (tests shorten it).
	PausePoll time.Duration
}

// Processor drives tracked items through the processing lifecycle. One
// worker loop per instance; Pause, Resume, State and Progress may be called
// from other goroutines.
type Processor struct {
	mu       sync.Mutex
	state    State
	warnings []string

	opts     Options
	handler  ItemHandler
	tracker  *tracker.Tracker
	progress progressState
}

// New creates a Processor in Initialized state. Call Configure before
// Process.
func New(handler ItemHandler, opts Options) *Processor {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Operation == "" {
		opts.Operation = "process"
	}
	if opts.PausePoll <= 0 {
		opts.PausePoll = defaultPausePoll
	}
	return &Processor{
		state:   StateInitialized,
		opts:    opts,
		handler: handler,
		tracker: tracker.New(opts.ItemType, opts.MaxAttempts),
	}
}

// Configure validates the processor's options and moves it to Ready. It is
// callable only from Initialized; a validation failure moves the processor
// to Error and returns a ConfigError.
func (p *Processor) Configure() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateInitialized {
		return errs.NewStateError("configure", "processor cannot be configured",
			p.state.String(), StateInitialized.String())
	}
	p.state = StateConfiguring

	if p.handler == nil {
		p.state = StateError
		return errs.NewConfigError("configure", "item handler is required", nil).
			WithCode(errs.CodeConfigInit)
	}
	if p.opts.MaxAttempts < 0 {
		p.state = StateError
		return errs.NewConfigError("configure", "max attempts cannot be negative", nil).
			WithCode(errs.CodeConfigValidation).
			WithDetail("max_attempts", p.opts.MaxAttempts)
	}
	if p.opts.Paths != nil {
		if err := p.opts.Paths.Settings.Validate(); err != nil {
			p.state = StateError
			return err
		}
	}

	p.state = StateReady
	return nil
}

// State returns the processor's current lifecycle state.
func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Tracker exposes the underlying tracker for stats and error reads.
func (p *Processor) Tracker() *tracker.Tracker {
	return p.tracker
}

// Progress returns a snapshot of the run counters.
func (p *Processor) Progress() Progress {
	return p.progress.snapshot()
}

// AddPending queues an item for processing. Fatal on failure: a path that
// cannot be added is a caller bug, not an item-level error.
func (p *Processor) AddPending(path string) error {
	return p.tracker.AddPending(path)
}

// Pause suspends claiming of new items. The in-flight item, if any, runs to
// completion. Callable only while Processing.
func (p *Processor) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateProcessing {
		return errs.NewStateError("pause", "processor is not processing",
			p.state.String(), StateProcessing.String())
	}
	p.state = StatePaused
	p.opts.Logger.Info("%s paused", p.opts.Operation)
	return nil
}

// Resume continues a paused run. Callable only while Paused.
func (p *Processor) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePaused {
		return errs.NewStateError("resume", "processor is not paused",
			p.state.String(), StatePaused.String())
	}
	p.state = StateProcessing
	p.opts.Logger.Info("%s resumed", p.opts.Operation)
	return nil
}

// Process drains the pending queue and returns the aggregated result.
// Callable only from Ready; any other state returns a StateError and leaves
// the processor unchanged. Item failures are tracked and retried up to the
// attempt ceiling; only failures of the loop machinery itself propagate as
// an error. Tracker state is released on the way out regardless of outcome.
func (p *Processor) Process() (*Result, error) {
	p.mu.Lock()
	if p.state != StateReady {
		current := p.state
		p.mu.Unlock()
		return nil, errs.NewStateError("process", "processor is not ready",
			current.String(), StateReady.String())
	}
	p.state = StateProcessing
	p.mu.Unlock()

	defer func() {
		p.tracker.Cleanup()
		p.mu.Lock()
		p.state = StateCleanup
		p.mu.Unlock()
	}()

	start := time.Now()
	total := p.tracker.Stats().Total
	p.progress.update(func(pr *Progress) {
		pr.TotalItems = total
		pr.StartTime = start
	})
	if p.opts.Progress != nil {
		p.opts.Progress.SetTotal(total)
	}
	p.opts.Logger.Info("%s: starting with %d item(s)", p.opts.Operation, total)

	for p.tracker.HasPending() {
		if p.State() == StatePaused {
			// Pause never loses the about-to-be-claimed item; we simply do
			// not claim one.
			time.Sleep(p.opts.PausePoll)
			continue
		}

		path, ok := p.tracker.NextPending()
		if !ok {
			continue
		}

		process, reason := p.shouldProcess(path)
		if !process {
			if reason != "" {
				p.addWarning(reason)
				p.opts.Logger.Warn("%s", reason)
			}
			if err := p.tracker.MarkIgnored(path); err != nil {
				return nil, p.fail(err)
			}
			p.progress.update(func(pr *Progress) { pr.IgnoredItems++ })
			p.advanceBar()
			continue
		}

		if err := p.runItem(path); err != nil {
			wrapped := err
			if !errs.IsTyped(err) {
				wrapped = errs.NewProcessError(p.opts.Operation, "item processing failed", path, err).
					WithCode(errs.CodeProcessExecution)
			}
			requeued, trackErr := p.tracker.MarkError(path, wrapped)
			if trackErr != nil {
				return nil, p.fail(trackErr)
			}
			if requeued {
				p.opts.Logger.Debug("%s: retrying %s: %v", p.opts.Operation, path, wrapped)
			} else {
				p.progress.update(func(pr *Progress) { pr.ErrorItems++ })
				p.advanceBar()
				p.opts.Logger.Error("%s: giving up on %s: %v", p.opts.Operation, path, wrapped)
			}
			continue
		}

		if err := p.tracker.MarkProcessed(path); err != nil {
			return nil, p.fail(err)
		}
		p.progress.update(func(pr *Progress) { pr.ProcessedItems++ })
		p.advanceBar()
	}

	// Snapshot everything the result needs before the deferred cleanup
	// clears the tracker.
	stats := p.tracker.Stats()
	itemErrors := p.tracker.Errors()
	end := time.Now()
	p.progress.update(func(pr *Progress) {
		pr.EndTime = end
		pr.CurrentItem = ""
	})

	p.mu.Lock()
	p.state = StateCompleted
	warnings := append([]string(nil), p.warnings...)
	p.mu.Unlock()

	messages := make([]string, 0, len(itemErrors))
	for _, ie := range itemErrors {
		messages = append(messages, fmt.Sprintf("%s: %v", ie.Path, ie.Err))
	}

	result := &Result{
		RunID:          uuid.NewString(),
		Success:        len(itemErrors) == 0,
		Message:        summaryMessage(stats),
		FilesProcessed: stats.Processed,
		Errors:         messages,
		Warnings:       warnings,
		Stats:          stats,
		Duration:       end.Sub(start),
	}
	p.opts.Logger.Info("%s: %s in %s", p.opts.Operation, result.Message,
		logger.FormatDuration(result.Duration))
	return result, nil
}

// runItem executes the handler inside a scoped current-item context. The
// context is cleared on exit regardless of outcome, and a panicking handler
// is converted to a tracked error instead of tearing down the loop.
func (p *Processor) runItem(path string) (err error) {
	p.progress.update(func(pr *Progress) { pr.CurrentItem = path })
	defer p.progress.update(func(pr *Progress) { pr.CurrentItem = "" })

	defer func() {
		if r := recover(); r != nil {
			err = errs.NewProcessError(p.opts.Operation, "item handler panicked", path,
				fmt.Errorf("%v", r)).WithCode(errs.CodeProcessExecution)
		}
	}()

	return p.handler.ProcessItem(path)
}

// shouldProcess applies the configured filter, falling back to the default
// ignore/include predicate over the path settings.
func (p *Processor) shouldProcess(path string) (bool, string) {
	if p.opts.Filter != nil {
		return p.opts.Filter.ShouldProcess(path)
	}
	pc := p.opts.Paths
	if pc == nil {
		return true, ""
	}

	if matched, pat := pc.MatchesAny(path, pc.Settings.IgnorePatterns); matched {
		return false, fmt.Sprintf("ignoring %s (matched pattern %q)",
			pc.Matcher().RelativePath(path), pat)
	}
	if len(pc.Settings.IncludePatterns) > 0 {
		matched, _ := pc.MatchesAny(path, pc.Settings.IncludePatterns)
		return matched, ""
	}
	return true, ""
}

// fail records a fatal loop failure: state moves to Error and the returned
// error is a typed ProcessError. The deferred cleanup still runs afterwards.
func (p *Processor) fail(err error) error {
	p.mu.Lock()
	p.state = StateError
	p.mu.Unlock()

	wrapped := err
	if !errs.IsProcessError(err) {
		wrapped = errs.NewProcessError(p.opts.Operation, "processing aborted", "", err).
			WithCode(errs.CodeProcessExecution)
	}
	p.opts.Logger.Error("%s: fatal: %v", p.opts.Operation, wrapped)
	return wrapped
}

// advanceBar ticks the optional progress bar; items that will be retried do
// not advance it.
func (p *Processor) advanceBar() {
	if p.opts.Progress != nil {
		p.opts.Progress.Increment()
	}
}

func (p *Processor) addWarning(w string) {
	p.mu.Lock()
	p.warnings = append(p.warnings, w)
	p.mu.Unlock()
}
