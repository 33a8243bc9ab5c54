// Package logger provides the logging implementations used across pyweaver.
//
// Components log through the small Logger interface so tests can inject the
// no-op implementation. The console logger filters by a string level, prefixes
// every line with a [HH:MM:SS] timestamp, and colors the level tag when the
// destination is a terminal.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is the logging seam used by the processor and every tool.
type Logger interface {
	Trace(format string, args ...any)
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// ConsoleLogger writes leveled, timestamped messages to a writer. It is safe
// for concurrent use. Color output is enabled automatically when the writer
// is a TTY on os.Stdout or os.Stderr.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided
// io.Writer. If writer is nil, messages are silently discarded. Valid levels
// are trace, debug, info, warn, error (case-insensitive); empty or invalid
// levels default to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// DisableColor forces plain-text output regardless of TTY detection.
func (cl *ConsoleLogger) DisableColor() {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.colorOutput = false
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if f != os.Stdout && f != os.Stderr {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// Trace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) Trace(format string, args ...any) {
	cl.logWithLevel("TRACE", format, args...)
}

// Debug logs a debug-level message.
func (cl *ConsoleLogger) Debug(format string, args ...any) {
	cl.logWithLevel("DEBUG", format, args...)
}

// Info logs an info-level message.
func (cl *ConsoleLogger) Info(format string, args ...any) {
	cl.logWithLevel("INFO", format, args...)
}

// Warn logs a warning-level message.
func (cl *ConsoleLogger) Warn(format string, args ...any) {
	cl.logWithLevel("WARN", format, args...)
}

// Error logs an error-level message.
func (cl *ConsoleLogger) Error(format string, args ...any) {
	cl.logWithLevel("ERROR", format, args...)
}

// logWithLevel formats and writes one line if filtering allows it.
// Format: "[HH:MM:SS] [LEVEL] message"
func (cl *ConsoleLogger) logWithLevel(level, format string, args ...any) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	message := fmt.Sprintf(format, args...)
	ts := timestamp()

	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, colorLevel(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

// colorLevel wraps a level tag in its ANSI color.
func colorLevel(level string) string {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// FormatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m"
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, remainder/time.Second)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, remainder/time.Second)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Trace is a no-op implementation.
func (n *NoOpLogger) Trace(format string, args ...any) {}

// Debug is a no-op implementation.
func (n *NoOpLogger) Debug(format string, args ...any) {}

// Info is a no-op implementation.
func (n *NoOpLogger) Info(format string, args ...any) {}

// Warn is a no-op implementation.
func (n *NoOpLogger) Warn(format string, args ...any) {}

// Error is a no-op implementation.
func (n *NoOpLogger) Error(format string, args ...any) {}
