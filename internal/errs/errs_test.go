package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestNewFileError verifies FileError creation and Error() formatting.
func TestNewFileError(t *testing.T) {
	tests := []struct {
		name        string
		operation   string
		message     string
		path        string
		err         error
		wantContain []string
	}{
		{
			name:      "simple file error",
			operation: "read_source",
			message:   "failed to read file",
			path:      "/tmp/a.py",
			err:       nil,
			wantContain: []string{
				"FILE001",
				"read_source",
				"failed to read file",
				"path: /tmp/a.py",
			},
		},
		{
			name:      "file error with wrapped cause",
			operation: "write_output",
			message:   "failed to write combined output",
			path:      "out.txt",
			err:       errors.New("disk full"),
			wantContain: []string{
				"write_output",
				"failed to write combined output",
				"disk full",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fileErr := NewFileError(tt.operation, tt.message, tt.path, tt.err)

			if fileErr == nil {
				t.Fatal("expected non-nil FileError")
			}
			if fileErr.Operation != tt.operation {
				t.Errorf("Operation = %q, want %q", fileErr.Operation, tt.operation)
			}
			if fileErr.Path != tt.path {
				t.Errorf("Path = %q, want %q", fileErr.Path, tt.path)
			}
			if fileErr.Code != CodeFileGeneral {
				t.Errorf("Code = %q, want %q", fileErr.Code, CodeFileGeneral)
			}
			if fileErr.Timestamp.IsZero() {
				t.Error("Timestamp should be set")
			}

			msg := fileErr.Error()
			for _, want := range tt.wantContain {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, missing %q", msg, want)
				}
			}
		})
	}
}

// TestWithCodeAndDetail verifies the chaining helpers and stable detail order.
func TestWithCodeAndDetail(t *testing.T) {
	err := NewFileError("read_source", "failed to read", "a.py", nil).
		WithCode(CodeFileRead).
		WithDetail("size", 42).
		WithDetail("attempt", 2)

	if err.Code != CodeFileRead {
		t.Errorf("Code = %q, want %q", err.Code, CodeFileRead)
	}

	msg := err.Error()
	if !strings.Contains(msg, "FILE003") {
		t.Errorf("Error() = %q, missing overridden code", msg)
	}
	// Details render sorted by key, "attempt" before "size".
	if !strings.Contains(msg, "attempt: 2 | size: 42") {
		t.Errorf("Error() = %q, details not in sorted order", msg)
	}
}

func TestStateErrorFormatting(t *testing.T) {
	err := NewStateError("process", "cannot start processing", "initialized", "ready")

	msg := err.Error()
	for _, want := range []string{"STATE002", "process", "current: initialized", "expected: ready"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestCodeCategory(t *testing.T) {
	tests := []struct {
		code Code
		want Category
	}{
		{CodeFileRead, CategoryFile},
		{CodePathInvalid, CategoryPath},
		{CodeConfigParse, CategoryConfig},
		{CodeProcessExecution, CategoryProcess},
		{CodeValidationFormat, CategoryValidation},
		{CodeStateTransition, CategoryState},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Category(); got != tt.want {
				t.Errorf("Category() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("permission denied")
	fileErr := NewFileError("open_output", "cannot open", "x.txt", cause).WithCode(CodeFilePermission)
	wrapped := fmt.Errorf("combine failed: %w", fileErr)

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should reach the root cause through the chain")
	}

	var fe *FileError
	if !errors.As(wrapped, &fe) {
		t.Fatal("errors.As should find the FileError")
	}
	if fe.Code != CodeFilePermission {
		t.Errorf("Code = %q, want %q", fe.Code, CodeFilePermission)
	}
}

// TestIsHelpers verifies the errors.As based classification helpers.
func TestIsHelpers(t *testing.T) {
	fileErr := NewFileError("read", "boom", "p", nil)
	stateErr := NewStateError("pause", "not processing", "ready", "processing")
	plain := errors.New("plain")

	tests := []struct {
		name string
		fn   func(error) bool
		err  error
		want bool
	}{
		{"file on file", IsFileError, fileErr, true},
		{"file on wrapped file", IsFileError, fmt.Errorf("x: %w", fileErr), true},
		{"file on state", IsFileError, stateErr, false},
		{"file on nil", IsFileError, nil, false},
		{"state on state", IsStateError, stateErr, true},
		{"process on plain", IsProcessError, plain, false},
		{"typed on file", IsTyped, fileErr, true},
		{"typed on plain", IsTyped, plain, false},
		{"typed on nil", IsTyped, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
