// Package errs defines the typed error taxonomy shared by every pyweaver
// component. Errors carry a category code, the operation that failed, an
// optional path and a structured detail map, and may wrap an underlying
// cause so errors.Is and errors.As traverse the chain.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Category is the high-level classification of an error.
type Category int

const (
	// CategoryFile covers filesystem read/write/lock failures.
	CategoryFile Category = iota
	// CategoryPath covers invalid or inaccessible paths.
	CategoryPath
	// CategoryConfig covers configuration loading and validation.
	CategoryConfig
	// CategoryProcess covers processing lifecycle failures.
	CategoryProcess
	// CategoryValidation covers pattern and format rejection.
	CategoryValidation
	// CategoryState covers illegal lifecycle transitions.
	CategoryState
)

// String returns the short code prefix for the category.
func (c Category) String() string {
	switch c {
	case CategoryFile:
		return "FILE"
	case CategoryPath:
		return "PATH"
	case CategoryConfig:
		return "CFG"
	case CategoryProcess:
		return "PROC"
	case CategoryValidation:
		return "VAL"
	case CategoryState:
		return "STATE"
	default:
		return "unknown"
	}
}

// Code identifies a specific failure within a category. The value embeds the
// category prefix followed by a three-digit number, e.g. "FILE003".
type Code string

const (
	CodeFileGeneral    Code = "FILE001"
	CodeFileNotFound   Code = "FILE002"
	CodeFileRead       Code = "FILE003"
	CodeFileWrite      Code = "FILE004"
	CodeFilePermission Code = "FILE005"
	CodeFileEncoding   Code = "FILE006"
	CodeFileLock       Code = "FILE007"

	CodePathGeneral  Code = "PATH001"
	CodePathInvalid  Code = "PATH002"
	CodePathNotFound Code = "PATH003"
	CodePathExcluded Code = "PATH004"
	CodePathAccess   Code = "PATH005"

	CodeConfigGeneral    Code = "CFG001"
	CodeConfigParse      Code = "CFG002"
	CodeConfigValidation Code = "CFG003"
	CodeConfigPath       Code = "CFG004"
	CodeConfigType       Code = "CFG005"
	CodeConfigMissing    Code = "CFG006"
	CodeConfigInit       Code = "CFG007"
	CodeConfigMerge      Code = "CFG008"

	CodeProcessGeneral   Code = "PROC001"
	CodeProcessInit      Code = "PROC002"
	CodeProcessExecution Code = "PROC003"
	CodeProcessState     Code = "PROC004"
	CodeProcessTimeout   Code = "PROC005"
	CodeProcessInterrupt Code = "PROC006"

	CodeValidationGeneral    Code = "VAL001"
	CodeValidationType       Code = "VAL002"
	CodeValidationFormat     Code = "VAL003"
	CodeValidationConstraint Code = "VAL004"
	CodeValidationDependency Code = "VAL005"

	CodeStateGeneral    Code = "STATE001"
	CodeStateInvalid    Code = "STATE002"
	CodeStateTransition Code = "STATE003"
)

// Category extracts the category from the code's alphabetic prefix.
func (c Code) Category() Category {
	s := string(c)
	i := 0
	for i < len(s) && (s[i] < '0' || s[i] > '9') {
		i++
	}
	switch s[:i] {
	case "FILE":
		return CategoryFile
	case "PATH":
		return CategoryPath
	case "CFG":
		return CategoryConfig
	case "VAL":
		return CategoryValidation
	case "STATE":
		return CategoryState
	default:
		return CategoryProcess
	}
}

// formatDetails renders a detail map as "k: v" pairs in sorted key order so
// error strings are stable.
func formatDetails(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, details[k]))
	}
	return strings.Join(parts, " | ")
}

// writeCommon renders the shared "[CODE] operation: message (path: p | k: v)"
// prefix followed by the wrapped cause, if any.
func writeCommon(sb *strings.Builder, code Code, operation, message, path string, details map[string]any, err error) {
	sb.WriteString(fmt.Sprintf("[%s] %s: %s", code, operation, message))

	extra := make([]string, 0, 2)
	if path != "" {
		extra = append(extra, fmt.Sprintf("path: %s", path))
	}
	if d := formatDetails(details); d != "" {
		extra = append(extra, d)
	}
	if len(extra) > 0 {
		sb.WriteString(fmt.Sprintf(" (%s)", strings.Join(extra, " | ")))
	}
	if err != nil {
		sb.WriteString(fmt.Sprintf(": %v", err))
	}
}

// FileError represents a failure of a filesystem operation.
type FileError struct {
	Operation string         // Operation that failed (e.g. "read_source")
	Message   string         // Human-readable error message
	Path      string         // Path the operation was acting on
	Code      Code           // Specific failure code, defaults to CodeFileGeneral
	Details   map[string]any // Additional structured context (optional)
	Err       error          // Underlying error (optional)
	Timestamp time.Time      // When the error occurred
}

// NewFileError creates a FileError with the current timestamp.
func NewFileError(operation, message, path string, err error) *FileError {
	return &FileError{
		Operation: operation,
		Message:   message,
		Path:      path,
		Code:      CodeFileGeneral,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithCode overrides the default code and returns the error for chaining.
func (e *FileError) WithCode(code Code) *FileError {
	e.Code = code
	return e
}

// WithDetail attaches one structured detail and returns the error for chaining.
func (e *FileError) WithDetail(key string, value any) *FileError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Error implements the error interface for FileError.
func (e *FileError) Error() string {
	var sb strings.Builder
	writeCommon(&sb, e.Code, e.Operation, e.Message, e.Path, e.Details, e.Err)
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *FileError) Unwrap() error {
	return e.Err
}

// PathError represents an invalid or inaccessible path.
type PathError struct {
	Operation string
	Message   string
	Path      string
	Code      Code
	Details   map[string]any
	Err       error
	Timestamp time.Time
}

// NewPathError creates a PathError with the current timestamp.
func NewPathError(operation, message, path string, err error) *PathError {
	return &PathError{
		Operation: operation,
		Message:   message,
		Path:      path,
		Code:      CodePathGeneral,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithCode overrides the default code and returns the error for chaining.
func (e *PathError) WithCode(code Code) *PathError {
	e.Code = code
	return e
}

// Error implements the error interface for PathError.
func (e *PathError) Error() string {
	var sb strings.Builder
	writeCommon(&sb, e.Code, e.Operation, e.Message, e.Path, e.Details, e.Err)
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *PathError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration loading or validation failure.
type ConfigError struct {
	Operation string
	Message   string
	Code      Code
	Details   map[string]any
	Err       error
	Timestamp time.Time
}

// NewConfigError creates a ConfigError with the current timestamp.
func NewConfigError(operation, message string, err error) *ConfigError {
	return &ConfigError{
		Operation: operation,
		Message:   message,
		Code:      CodeConfigGeneral,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithCode overrides the default code and returns the error for chaining.
func (e *ConfigError) WithCode(code Code) *ConfigError {
	e.Code = code
	return e
}

// WithDetail attaches one structured detail and returns the error for chaining.
func (e *ConfigError) WithDetail(key string, value any) *ConfigError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	var sb strings.Builder
	writeCommon(&sb, e.Code, e.Operation, e.Message, "", e.Details, e.Err)
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ProcessError represents a generic processing failure. It is the wrapper the
// orchestrator applies to untyped errors escaping an item handler.
type ProcessError struct {
	Operation string
	Message   string
	Path      string
	Code      Code
	Details   map[string]any
	Err       error
	Timestamp time.Time
}

// NewProcessError creates a ProcessError with the current timestamp. The path
// may be empty when the failure is not tied to a single item.
func NewProcessError(operation, message, path string, err error) *ProcessError {
	return &ProcessError{
		Operation: operation,
		Message:   message,
		Path:      path,
		Code:      CodeProcessGeneral,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithCode overrides the default code and returns the error for chaining.
func (e *ProcessError) WithCode(code Code) *ProcessError {
	e.Code = code
	return e
}

// WithDetail attaches one structured detail and returns the error for chaining.
func (e *ProcessError) WithDetail(key string, value any) *ProcessError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Error implements the error interface for ProcessError.
func (e *ProcessError) Error() string {
	var sb strings.Builder
	writeCommon(&sb, e.Code, e.Operation, e.Message, e.Path, e.Details, e.Err)
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// ValidationError represents rejection of a pattern, format or constraint.
type ValidationError struct {
	Operation string
	Message   string
	Code      Code
	Details   map[string]any
	Err       error
	Timestamp time.Time
}

// NewValidationError creates a ValidationError with the current timestamp.
func NewValidationError(operation, message string, err error) *ValidationError {
	return &ValidationError{
		Operation: operation,
		Message:   message,
		Code:      CodeValidationGeneral,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithCode overrides the default code and returns the error for chaining.
func (e *ValidationError) WithCode(code Code) *ValidationError {
	e.Code = code
	return e
}

// WithDetail attaches one structured detail and returns the error for chaining.
func (e *ValidationError) WithDetail(key string, value any) *ValidationError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	writeCommon(&sb, e.Code, e.Operation, e.Message, "", e.Details, e.Err)
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StateError represents an operation attempted in an illegal lifecycle state.
// It records the state the object was in and the state the operation required.
type StateError struct {
	Operation     string
	Message       string
	CurrentState  string
	ExpectedState string
	Code          Code
	Details       map[string]any
	Timestamp     time.Time
}

// NewStateError creates a StateError with the current timestamp.
func NewStateError(operation, message, current, expected string) *StateError {
	return &StateError{
		Operation:     operation,
		Message:       message,
		CurrentState:  current,
		ExpectedState: expected,
		Code:          CodeStateInvalid,
		Timestamp:     time.Now(),
	}
}

// WithCode overrides the default code and returns the error for chaining.
func (e *StateError) WithCode(code Code) *StateError {
	e.Code = code
	return e
}

// WithDetail attaches one structured detail and returns the error for chaining.
func (e *StateError) WithDetail(key string, value any) *StateError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Error implements the error interface for StateError.
func (e *StateError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Operation, e.Message))

	extra := make([]string, 0, 2)
	if e.CurrentState != "" {
		extra = append(extra, fmt.Sprintf("current: %s", e.CurrentState))
	}
	if e.ExpectedState != "" {
		extra = append(extra, fmt.Sprintf("expected: %s", e.ExpectedState))
	}
	if d := formatDetails(e.Details); d != "" {
		extra = append(extra, d)
	}
	if len(extra) > 0 {
		sb.WriteString(fmt.Sprintf(" (%s)", strings.Join(extra, " | ")))
	}
	return sb.String()
}

// IsFileError checks if the error is or wraps a FileError.
func IsFileError(err error) bool {
	if err == nil {
		return false
	}
	var fe *FileError
	return errors.As(err, &fe)
}

// IsPathError checks if the error is or wraps a PathError.
func IsPathError(err error) bool {
	if err == nil {
		return false
	}
	var pe *PathError
	return errors.As(err, &pe)
}

// IsConfigError checks if the error is or wraps a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsProcessError checks if the error is or wraps a ProcessError.
func IsProcessError(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProcessError
	return errors.As(err, &pe)
}

// IsValidationError checks if the error is or wraps a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStateError checks if the error is or wraps a StateError.
func IsStateError(err error) bool {
	if err == nil {
		return false
	}
	var se *StateError
	return errors.As(err, &se)
}

// IsTyped reports whether the error already belongs to the taxonomy. The
// orchestrator uses this to decide whether an item failure needs wrapping.
func IsTyped(err error) bool {
	return IsFileError(err) || IsPathError(err) || IsConfigError(err) ||
		IsProcessError(err) || IsValidationError(err) || IsStateError(err)
}
