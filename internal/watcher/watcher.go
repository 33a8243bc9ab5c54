// Package watcher provides a recursive filesystem watcher used by watch mode.
// It wraps fsnotify, follows the project's ignore rules, and coalesces rapid
// writes to the same path so a save burst triggers a single rebuild.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/errs"
)

// Op is the kind of change observed for a path.
type Op int

const (
	OpCreated Op = iota
	OpWritten
	OpRemoved
)

func (op Op) String() string {
	switch op {
	case OpCreated:
		return "created"
	case OpWritten:
		return "written"
	case OpRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one debounced filesystem change.
type Event struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// DefaultDebounce is the delay used to coalesce rapid writes to one path.
const DefaultDebounce = 100 * time.Millisecond

// Watcher watches a project root recursively, skipping excluded directories.
type Watcher struct {
	watcher *fsnotify.Watcher
	paths   *config.PathConfig
	events  chan Event
	errors  chan error
	done    chan struct{}

	mu          sync.Mutex
	debounce    time.Duration
	debounceMap map[string]*time.Timer
	closed      bool
}

// New creates a watcher over the PathConfig's root. Directories matching the
// ignore patterns are never registered, and events under them are dropped.
func New(paths *config.PathConfig, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	root, err := filepath.Abs(paths.Root)
	if err != nil {
		return nil, errs.NewPathError("watch", "cannot resolve root", paths.Root, err).
			WithCode(errs.CodePathInvalid)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, errs.NewPathError("watch", "root is not a watchable directory", root, err).
			WithCode(errs.CodePathInvalid)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.NewProcessError("watch", "cannot create filesystem watcher", root, err)
	}

	w := &Watcher{
		watcher:     fsw,
		paths:       paths,
		events:      make(chan Event, 100),
		errors:      make(chan error, 10),
		done:        make(chan struct{}),
		debounce:    debounce,
		debounceMap: make(map[string]*time.Timer),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// addRecursive registers dir and every non-excluded subdirectory.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && w.paths.IsExcluded(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return err
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if w.paths.IsExcluded(path) {
		return
	}

	// New directories start being watched immediately so files created
	// inside them are not missed.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				select {
				case w.errors <- err:
				default:
				}
			}
		}
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreated
	case event.Has(fsnotify.Write):
		op = OpWritten
	case event.Has(fsnotify.Remove):
		op = OpRemoved
	case event.Has(fsnotify.Rename):
		op = OpRemoved
	default:
		// Chmod-only events are noise.
		return
	}

	if op == OpWritten {
		w.debounceWrite(path)
		return
	}
	w.send(path, op)
}

// debounceWrite restarts the per-path timer so a burst of writes collapses
// into the single event emitted after the burst goes quiet.
func (w *Watcher) debounceWrite(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if timer, ok := w.debounceMap[path]; ok {
		timer.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()

		w.send(path, OpWritten)
	})
}

func (w *Watcher) send(path string, op Op) {
	event := Event{Path: path, Op: op, Timestamp: time.Now()}
	select {
	case w.events <- event:
	case <-w.done:
	default:
		// Channel full, drop rather than block the event loop.
	}
}

// Events returns the channel of debounced change events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher, cancels pending debounce timers, and releases the
// underlying filesystem watches. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, timer := range w.debounceMap {
		timer.Stop()
	}
	w.debounceMap = nil
	w.mu.Unlock()

	close(w.done)
	return w.watcher.Close()
}
