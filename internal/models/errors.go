package models

import (
	"errors"
	"fmt"
)

// ValidationError represents a declaration or input validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// MissingSourceError reports a declared source file that does not exist
type MissingSourceError struct {
	Source string
	Path   string
	Err    error
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("source %s not found at %s", e.Source, e.Path)
}

func (e *MissingSourceError) Unwrap() error {
	return e.Err
}

// IsTransient returns false; a missing file does not appear by retrying
func (e *MissingSourceError) IsTransient() bool {
	return false
}

// UnreadableSourceError reports a declared source that exists, or may exist, but cannot
// be opened: a permission problem, a directory in place of a file, a broken path.
type UnreadableSourceError struct {
	Source string
	Path   string
	Err    error
}

func (e *UnreadableSourceError) Error() string {
	return fmt.Sprintf("source %s unreadable at %s: %v", e.Source, e.Path, e.Err)
}

func (e *UnreadableSourceError) Unwrap() error {
	return e.Err
}

// IsTransient returns true; permissions and mounts can be fixed without touching the catalog
func (e *UnreadableSourceError) IsTransient() bool {
	return true
}

// MalformedLayoutError reports a present source whose shape does not match its declaration
type MalformedLayoutError struct {
	Source   string
	Path     string
	Expected int
	Actual   int
	Reason   string
}

func (e *MalformedLayoutError) Error() string {
	if e.Expected > 0 {
		return fmt.Sprintf("source %s (%s): %s: expected at least %d columns, got %d",
			e.Source, e.Path, e.Reason, e.Expected, e.Actual)
	}
	return fmt.Sprintf("source %s (%s): %s", e.Source, e.Path, e.Reason)
}

// IsTransient returns false as layout errors are permanent
func (e *MalformedLayoutError) IsTransient() bool {
	return false
}

// WarningKind classifies a recoverable condition
type WarningKind string

const (
	WarnMissingSource   WarningKind = "missing_source"
	WarnMalformedLayout WarningKind = "malformed_layout"
	WarnUnreadable      WarningKind = "unreadable_source"
	WarnValueCoercion   WarningKind = "value_coercion"
	WarnMissingKey      WarningKind = "missing_key"
	WarnEmptyResult     WarningKind = "empty_result"
	WarnUnmappedFlag    WarningKind = "unmapped_flag"
	WarnDuplicateKey    WarningKind = "duplicate_key"
)

// Warning is a recoverable condition surfaced to the operator instead of failing the run
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Source  string      `json:"source,omitempty"`
	Message string      `json:"message"`
	Count   int         `json:"count,omitempty"`
}

// WarningFromError converts a recoverable source error into a Warning
func WarningFromError(err error) (Warning, bool) {
	var missing *MissingSourceError
	if errors.As(err, &missing) {
		return Warning{Kind: WarnMissingSource, Source: missing.Source, Message: missing.Error()}, true
	}
	var unreadable *UnreadableSourceError
	if errors.As(err, &unreadable) {
		return Warning{Kind: WarnUnreadable, Source: unreadable.Source, Message: unreadable.Error()}, true
	}
	var malformed *MalformedLayoutError
	if errors.As(err, &malformed) {
		return Warning{Kind: WarnMalformedLayout, Source: malformed.Source, Message: malformed.Error()}, true
	}
	return Warning{}, false
}

// EmptyResultWarning builds the warning raised when an aggregation has nothing to return
func EmptyResultWarning(operation, detail string) Warning {
	return Warning{
		Kind:    WarnEmptyResult,
		Source:  operation,
		Message: fmt.Sprintf("%s produced no rows: %s", operation, detail),
	}
}
