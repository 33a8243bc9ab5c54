package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/errs"
)

func newTestWatcher(t *testing.T, root string, settings config.PathSettings) *Watcher {
	t.Helper()
	pc := config.NewPathConfig(root, settings, nil)
	w, err := New(pc, 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

// waitForEvent drains the events channel until pred matches or the deadline
// passes.
func waitForEvent(t *testing.T, w *Watcher, timeout time.Duration, pred func(Event) bool) (Event, bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-w.Events():
			if pred(e) {
				return e, true
			}
		case <-deadline:
			return Event{}, false
		}
	}
}

func TestWatcherEmitsCreate(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, config.PathSettings{})

	path := filepath.Join(root, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0644))

	event, ok := waitForEvent(t, w, 2*time.Second, func(e Event) bool {
		return e.Path == path && e.Op == OpCreated
	})
	require.True(t, ok, "expected a create event")
	assert.Equal(t, "created", event.Op.String())
	assert.False(t, event.Timestamp.IsZero())
}

func TestWatcherDebouncesWrites(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "busy.py")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0644))

	w := newTestWatcher(t, root, config.PathSettings{})

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := f.WriteString("line\n")
		require.NoError(t, err)
		require.NoError(t, f.Sync())
	}
	require.NoError(t, f.Close())

	_, ok := waitForEvent(t, w, 2*time.Second, func(e Event) bool {
		return e.Path == path && e.Op == OpWritten
	})
	require.True(t, ok, "expected a write event after the burst")

	// The burst must have been coalesced; no further write for this path
	// should arrive once the debounce window has passed.
	quiet := time.After(100 * time.Millisecond)
	for {
		select {
		case e := <-w.Events():
			if e.Path == path && e.Op == OpWritten {
				t.Fatal("burst produced more than one write event")
			}
		case <-quiet:
			return
		}
	}
}

func TestWatcherIgnoresExcludedPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "__pycache__"), 0755))

	w := newTestWatcher(t, root, config.DefaultPathSettings())

	ignored := filepath.Join(root, "__pycache__", "mod.cpython-311.pyc")
	require.NoError(t, os.WriteFile(ignored, []byte("x"), 0644))
	watched := filepath.Join(root, "mod.py")
	require.NoError(t, os.WriteFile(watched, []byte("x = 1\n"), 0644))

	event, ok := waitForEvent(t, w, 2*time.Second, func(e Event) bool {
		return e.Op == OpCreated
	})
	require.True(t, ok)
	assert.Equal(t, watched, event.Path, "excluded paths must never surface")
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, config.PathSettings{})

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0755))

	// Give the watcher a moment to register the new directory.
	_, ok := waitForEvent(t, w, 2*time.Second, func(e Event) bool {
		return e.Path == sub && e.Op == OpCreated
	})
	require.True(t, ok)

	inner := filepath.Join(sub, "new.py")
	require.NoError(t, os.WriteFile(inner, []byte("x = 1\n"), 0644))

	_, ok = waitForEvent(t, w, 2*time.Second, func(e Event) bool {
		return e.Path == inner
	})
	assert.True(t, ok, "files in newly created directories must be seen")
}

func TestWatcherRemove(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.py")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	w := newTestWatcher(t, root, config.PathSettings{})
	require.NoError(t, os.Remove(path))

	_, ok := waitForEvent(t, w, 2*time.Second, func(e Event) bool {
		return e.Path == path && e.Op == OpRemoved
	})
	assert.True(t, ok, "expected a remove event")
}

func TestWatcherRejectsMissingRoot(t *testing.T) {
	pc := config.NewPathConfig(filepath.Join(t.TempDir(), "absent"), config.PathSettings{}, nil)
	_, err := New(pc, 0)
	require.Error(t, err)
	assert.True(t, errs.IsPathError(err))
}

func TestWatcherCloseIdempotent(t *testing.T) {
	w := newTestWatcher(t, t.TempDir(), config.PathSettings{})
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
