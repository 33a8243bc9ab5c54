package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileLoggerWritesRunLog(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")

	fl, err := NewFileLoggerWithDirAndLevel(logDir, "debug")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel: %v", err)
	}
	defer fl.Close()

	fl.Info("processing %s", "a.py")
	fl.Debug("detail")
	fl.Trace("filtered out")

	data, err := os.ReadFile(fl.RunFile())
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "pyweaver run log") {
		t.Errorf("missing header in %q", content)
	}
	if !strings.Contains(content, "processing a.py") {
		t.Errorf("missing info line in %q", content)
	}
	if !strings.Contains(content, "detail") {
		t.Errorf("missing debug line in %q", content)
	}
	if strings.Contains(content, "filtered out") {
		t.Errorf("trace should be filtered at debug level: %q", content)
	}
}

func TestFileLoggerLatestSymlink(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")

	first, err := NewFileLoggerWithDir(logDir)
	if err != nil {
		t.Fatalf("first logger: %v", err)
	}
	first.Close()

	second, err := NewFileLoggerWithDir(logDir)
	if err != nil {
		t.Fatalf("second logger: %v", err)
	}
	defer second.Close()

	target, err := os.Readlink(filepath.Join(logDir, "latest.log"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != filepath.Base(second.RunFile()) {
		t.Errorf("latest.log -> %q, want %q", target, filepath.Base(second.RunFile()))
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLoggerWithDir(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("NewFileLoggerWithDir: %v", err)
	}

	if err := fl.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	// Writes after close must not panic.
	fl.Info("after close")
}

func TestTeeForwardsToAll(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLoggerWithDir(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("NewFileLoggerWithDir: %v", err)
	}
	defer fl.Close()

	tee := NewTee(NewNoOpLogger(), fl, nil)
	tee.Info("teed message")

	data, err := os.ReadFile(fl.RunFile())
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	if !strings.Contains(string(data), "teed message") {
		t.Errorf("file logger missing teed message: %q", string(data))
	}
}
