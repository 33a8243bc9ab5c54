package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ProgressBar renders an ASCII progress bar for file-processing runs.
// Rendering is mutex-guarded so the processing loop and a display goroutine
// can share one bar.
type ProgressBar struct {
	current     int
	total       int
	width       int
	enableColor bool
	prefix      string
	mu          sync.RWMutex
}

// NewProgressBar creates a progress bar of the given character width.
// Widths below 1 fall back to 10.
func NewProgressBar(total, width int, enableColor bool) *ProgressBar {
	if width < 1 {
		width = 10
	}
	return &ProgressBar{
		total:       total,
		width:       width,
		enableColor: enableColor,
	}
}

// Update sets the current progress value.
func (pb *ProgressBar) Update(current int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = current
}

// Increment advances the current progress by 1.
func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current++
}

// SetTotal replaces the total, used when the item count is only known after
// scanning finishes.
func (pb *ProgressBar) SetTotal(total int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.total = total
}

// SetPrefix sets a label rendered before the bar.
func (pb *ProgressBar) SetPrefix(prefix string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.prefix = prefix
}

// Current returns the current progress value.
func (pb *ProgressBar) Current() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.current
}

// Percentage returns the progress percentage clamped to 0-100.
func (pb *ProgressBar) Percentage() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return clampPercent(pb.current, pb.total)
}

func clampPercent(current, total int) int {
	if total == 0 {
		return 0
	}
	perc := (current * 100) / total
	if perc > 100 {
		return 100
	}
	if perc < 0 {
		return 0
	}
	return perc
}

// Render generates the bar string: "prefix[====  ] 4/6 (66%)". The bar is
// cyan while in progress and green at 100% when color is enabled.
func (pb *ProgressBar) Render() string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	perc := clampPercent(pb.current, pb.total)
	filled := (perc * pb.width) / 100
	if filled > pb.width {
		filled = pb.width
	}

	var sb strings.Builder
	sb.WriteString(pb.prefix)
	sb.WriteByte('[')
	sb.WriteString(strings.Repeat("=", filled))
	sb.WriteString(strings.Repeat(" ", pb.width-filled))
	sb.WriteByte(']')

	result := fmt.Sprintf("%s %d/%d (%d%%)", sb.String(), pb.current, pb.total, perc)

	if pb.enableColor {
		if perc < 100 {
			return color.New(color.FgCyan).Sprint(result)
		}
		return color.New(color.FgGreen).Sprint(result)
	}
	return result
}
