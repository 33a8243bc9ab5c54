package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileLogger writes leveled log lines to a timestamped per-run file under a
// log directory and maintains a latest.log symlink pointing at the most
// recent run. It is thread-safe and implements the Logger interface.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing to .pyweaver/logs/ in the
// current working directory at the default "info" level.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(filepath.Join(".pyweaver", "logs"), "info")
}

// NewFileLoggerWithDir creates a FileLogger with a custom log directory at
// the default "info" level.
func NewFileLoggerWithDir(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log
// directory and level. The directory is created if missing, a
// run-YYYYMMDD-HHMMSS.log file is opened, and latest.log is repointed at it.
func NewFileLoggerWithDirAndLevel(logDir, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	ts := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", ts))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	fl.write("=== pyweaver run log ===\n")
	fl.write(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return fl, nil
}

// RunFile returns the path of the current run log file.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

// shouldLog checks if a message at the given level should be logged.
func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// Trace logs a trace-level message (most verbose).
func (fl *FileLogger) Trace(format string, args ...any) {
	fl.logWithLevel("TRACE", format, args...)
}

// Debug logs a debug-level message.
func (fl *FileLogger) Debug(format string, args ...any) {
	fl.logWithLevel("DEBUG", format, args...)
}

// Info logs an info-level message.
func (fl *FileLogger) Info(format string, args ...any) {
	fl.logWithLevel("INFO", format, args...)
}

// Warn logs a warning-level message.
func (fl *FileLogger) Warn(format string, args ...any) {
	fl.logWithLevel("WARN", format, args...)
}

// Error logs an error-level message.
func (fl *FileLogger) Error(format string, args ...any) {
	fl.logWithLevel("ERROR", format, args...)
}

func (fl *FileLogger) logWithLevel(level, format string, args ...any) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	message := fmt.Sprintf(format, args...)
	fl.write(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

// write is a thread-safe helper appending to the run log. Each write is
// flushed so latest.log tails in real time.
func (fl *FileLogger) write(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

// Tee is a Logger that forwards every message to several loggers, typically
// console plus file.
type Tee struct {
	loggers []Logger
}

// NewTee creates a Tee over the given loggers. Nil entries are dropped.
func NewTee(loggers ...Logger) *Tee {
	out := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	return &Tee{loggers: out}
}

// Trace forwards to every logger.
func (t *Tee) Trace(format string, args ...any) {
	for _, l := range t.loggers {
		l.Trace(format, args...)
	}
}

// Debug forwards to every logger.
func (t *Tee) Debug(format string, args ...any) {
	for _, l := range t.loggers {
		l.Debug(format, args...)
	}
}

// Info forwards to every logger.
func (t *Tee) Info(format string, args ...any) {
	for _, l := range t.loggers {
		l.Info(format, args...)
	}
}

// Warn forwards to every logger.
func (t *Tee) Warn(format string, args ...any) {
	for _, l := range t.loggers {
		l.Warn(format, args...)
	}
}

// Error forwards to every logger.
func (t *Tee) Error(format string, args ...any) {
	for _, l := range t.loggers {
		l.Error(format, args...)
	}
}
