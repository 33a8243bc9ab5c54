package processor

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/errs"
	"github.com/edwardmakesthings/pyweaver/internal/logger"
	"github.com/edwardmakesthings/pyweaver/internal/tracker"
)

// countingHandler records every ProcessItem call and fails the paths listed
// in failPaths.
type countingHandler struct {
	mu        sync.Mutex
	calls     map[string]int
	failPaths map[string]error
	onCall    func(path string)
}

func newCountingHandler() *countingHandler {
	return &countingHandler{
		calls:     make(map[string]int),
		failPaths: make(map[string]error),
	}
}

func (h *countingHandler) ProcessItem(path string) error {
	h.mu.Lock()
	h.calls[path]++
	cb := h.onCall
	err := h.failPaths[path]
	h.mu.Unlock()

	if cb != nil {
		cb(path)
	}
	return err
}

func (h *countingHandler) callCount(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[path]
}

func newReadyProcessor(t *testing.T, handler ItemHandler, opts Options) *Processor {
	t.Helper()
	p := New(handler, opts)
	require.NoError(t, p.Configure())
	return p
}

func TestProcessRequiresReadyState(t *testing.T) {
	p := New(newCountingHandler(), Options{})

	// Not yet configured.
	_, err := p.Process()
	require.Error(t, err)
	assert.True(t, errs.IsStateError(err))
	assert.Equal(t, StateInitialized, p.State(), "failed guard must leave state unchanged")

	require.NoError(t, p.Configure())
	_, err = p.Process()
	require.NoError(t, err)

	// A drained processor cannot be reused.
	_, err = p.Process()
	require.Error(t, err)
	assert.True(t, errs.IsStateError(err))
}

func TestConfigureGuards(t *testing.T) {
	p := New(newCountingHandler(), Options{})
	require.NoError(t, p.Configure())
	assert.Equal(t, StateReady, p.State())

	err := p.Configure()
	require.Error(t, err)
	assert.True(t, errs.IsStateError(err))
}

func TestConfigureRejectsNilHandler(t *testing.T) {
	p := New(nil, Options{})
	err := p.Configure()
	require.Error(t, err)
	assert.True(t, errs.IsConfigError(err))
	assert.Equal(t, StateError, p.State())
}

func TestConfigureRejectsInvalidPatterns(t *testing.T) {
	paths := config.NewPathConfig("", config.PathSettings{
		IgnorePatterns: []string{"src/**x"},
	}, nil)
	p := New(newCountingHandler(), Options{Paths: paths})

	err := p.Configure()
	require.Error(t, err)
	assert.True(t, errs.IsValidationError(err))
	assert.Equal(t, StateError, p.State())
}

func TestProcessAllSucceed(t *testing.T) {
	handler := newCountingHandler()
	p := newReadyProcessor(t, handler, Options{Operation: "test"})

	for _, path := range []string{"a.py", "b.py", "c.py"} {
		require.NoError(t, p.AddPending(path))
	}

	result, err := p.Process()
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.FilesProcessed)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Stats.Processed)
	assert.Equal(t, StateCleanup, p.State())

	progress := p.Progress()
	assert.Equal(t, 3, progress.TotalItems)
	assert.True(t, progress.IsComplete())
	assert.InDelta(t, 100.0, progress.CompletionPercentage(), 0.01)
	assert.Empty(t, progress.CurrentItem)
}

// TestProcessRetryScenario is the canonical failure scenario: three files,
// one of which always throws. The failing item must be attempted exactly
// maxAttempts times within the same Process call, and the result reports the
// two survivors.
func TestProcessRetryScenario(t *testing.T) {
	const maxAttempts = 3

	handler := newCountingHandler()
	handler.failPaths["bad.py"] = errors.New("always fails")

	p := newReadyProcessor(t, handler, Options{
		Operation:   "test",
		MaxAttempts: maxAttempts,
	})
	for _, path := range []string{"good1.py", "bad.py", "good2.py"} {
		require.NoError(t, p.AddPending(path))
	}

	result, err := p.Process()
	require.NoError(t, err, "item failures must not escape Process")

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.FilesProcessed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad.py")
	assert.Equal(t, 1, result.Stats.Errors)
	assert.Equal(t, maxAttempts, handler.callCount("bad.py"),
		"failing item must be attempted exactly maxAttempts times")
	assert.Equal(t, 1, handler.callCount("good1.py"))
	assert.Equal(t, 1, handler.callCount("good2.py"))

	progress := p.Progress()
	assert.Equal(t, 2, progress.ProcessedItems)
	assert.Equal(t, 1, progress.ErrorItems)
}

func TestProcessTransientFailureRecovers(t *testing.T) {
	handler := newCountingHandler()
	handler.failPaths["flaky.py"] = errors.New("transient")
	handler.onCall = func(path string) {
		if path == "flaky.py" && handler.callCount("flaky.py") >= 2 {
			handler.mu.Lock()
			delete(handler.failPaths, "flaky.py")
			handler.mu.Unlock()
		}
	}

	p := newReadyProcessor(t, handler, Options{MaxAttempts: 3})
	require.NoError(t, p.AddPending("flaky.py"))

	result, err := p.Process()
	require.NoError(t, err)

	assert.True(t, result.Success, "item recovering within the ceiling must count as processed")
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Empty(t, result.Errors)
}

func TestProcessIgnorePatterns(t *testing.T) {
	paths := config.NewPathConfig("", config.PathSettings{
		IgnorePatterns: []string{"*.pyc"},
	}, nil)

	handler := newCountingHandler()
	p := newReadyProcessor(t, handler, Options{Paths: paths})
	require.NoError(t, p.AddPending("mod.py"))
	require.NoError(t, p.AddPending("mod.pyc"))

	result, err := p.Process()
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.Stats.Ignored)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "mod.pyc")
	assert.Zero(t, handler.callCount("mod.pyc"))
}

func TestProcessIncludePatterns(t *testing.T) {
	paths := config.NewPathConfig("", config.PathSettings{
		IncludePatterns: []string{"src/**/*.py"},
	}, nil)

	handler := newCountingHandler()
	p := newReadyProcessor(t, handler, Options{Paths: paths})
	require.NoError(t, p.AddPending("src/pkg/a.py"))
	require.NoError(t, p.AddPending("docs/readme.md"))

	result, err := p.Process()
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.Stats.Ignored)
	// Include misses are quiet; only ignore hits warn.
	assert.Empty(t, result.Warnings)
}

type evenOnlyFilter struct{}

func (evenOnlyFilter) ShouldProcess(path string) (bool, string) {
	if len(path)%2 == 0 {
		return true, ""
	}
	return false, "odd-length path " + path
}

func TestProcessCustomFilter(t *testing.T) {
	handler := newCountingHandler()
	p := newReadyProcessor(t, handler, Options{Filter: evenOnlyFilter{}})
	require.NoError(t, p.AddPending("ab.py")) // len 5, odd
	require.NoError(t, p.AddPending("abc.py")) // len 6, even

	result, err := p.Process()
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.Stats.Ignored)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "ab.py")
}

func TestProcessPanicIsRecovered(t *testing.T) {
	handler := ItemHandlerFunc(func(path string) error {
		if path == "boom.py" {
			panic("handler exploded")
		}
		return nil
	})

	p := newReadyProcessor(t, handler, Options{MaxAttempts: 1})
	require.NoError(t, p.AddPending("ok.py"))
	require.NoError(t, p.AddPending("boom.py"))

	result, err := p.Process()
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.FilesProcessed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "handler exploded")
}

func TestPauseResume(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	var once sync.Once
	handler := ItemHandlerFunc(func(path string) error {
		once.Do(func() {
			close(started)
			<-release
		})
		return nil
	})

	p := newReadyProcessor(t, handler, Options{PausePoll: time.Millisecond})
	for i := 0; i < 5; i++ {
		require.NoError(t, p.AddPending(fmt.Sprintf("f%d.py", i)))
	}

	done := make(chan *Result)
	go func() {
		result, err := p.Process()
		require.NoError(t, err)
		done <- result
	}()

	<-started
	require.NoError(t, p.Pause())
	assert.Equal(t, StatePaused, p.State())

	// Pausing twice is a state violation.
	err := p.Pause()
	require.Error(t, err)
	assert.True(t, errs.IsStateError(err))

	close(release)

	// The in-flight item completes but no further item is claimed.
	require.Eventually(t, func() bool {
		return p.Progress().ProcessedItems == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, p.Progress().ProcessedItems,
		"paused loop must not claim new items")

	require.NoError(t, p.Resume())

	result := <-done
	assert.True(t, result.Success)
	assert.Equal(t, 5, result.FilesProcessed)
}

func TestResumeRequiresPaused(t *testing.T) {
	p := newReadyProcessor(t, newCountingHandler(), Options{})
	err := p.Resume()
	require.Error(t, err)
	assert.True(t, errs.IsStateError(err))
}

func TestProcessEmptyQueue(t *testing.T) {
	p := newReadyProcessor(t, newCountingHandler(), Options{})

	result, err := p.Process()
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Zero(t, result.FilesProcessed)
	assert.Zero(t, result.Stats.Total)
}

// TestProcessStatsInvariant checks the tracker invariant through a mixed run.
func TestProcessStatsInvariant(t *testing.T) {
	handler := newCountingHandler()
	handler.failPaths["bad.py"] = errors.New("nope")

	paths := config.NewPathConfig("", config.PathSettings{
		IgnorePatterns: []string{"*.tmp"},
	}, nil)

	p := newReadyProcessor(t, handler, Options{Paths: paths, MaxAttempts: 2})
	for _, path := range []string{"a.py", "bad.py", "skip.tmp", "b.py"} {
		require.NoError(t, p.AddPending(path))
	}

	result, err := p.Process()
	require.NoError(t, err)

	s := result.Stats
	assert.Equal(t, s.Total, s.Pending+s.Processing+s.Processed+s.Ignored+s.Errors)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 1, s.Ignored)
	assert.Equal(t, 1, s.Errors)
}

// TestProgressBarTracksRun: every settled item advances the bar, retries do
// not, and the bar ends full even when some items fail or are ignored.
func TestProgressBarTracksRun(t *testing.T) {
	handler := newCountingHandler()
	handler.failPaths["bad.py"] = errors.New("nope")

	paths := config.NewPathConfig("", config.PathSettings{
		IgnorePatterns: []string{"*.tmp"},
	}, nil)

	bar := logger.NewProgressBar(0, 20, false)
	p := newReadyProcessor(t, handler, Options{
		Paths:       paths,
		MaxAttempts: 3,
		Progress:    bar,
	})
	for _, path := range []string{"a.py", "bad.py", "skip.tmp", "b.py"} {
		require.NoError(t, p.AddPending(path))
	}

	result, err := p.Process()
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 4, bar.Current())
	assert.Equal(t, 100, bar.Percentage())
}

func TestTrackerItemTypeThroughProcessor(t *testing.T) {
	p := newReadyProcessor(t, newCountingHandler(), Options{ItemType: tracker.ItemTypeFiles})

	err := p.AddPending("definitely/not/a/real/file.py")
	require.Error(t, err)
	assert.True(t, errs.IsPathError(err))
}
