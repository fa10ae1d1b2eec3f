// SPDX-License-Identifier: MPL-2.0

package kpmmgr

import (
	"errors"
	"fmt"
)

var (
	// ErrHelperUnavailable is the sentinel error wrapped by UnavailableError.
	ErrHelperUnavailable = errors.New("kpm helper unavailable")
	// ErrHelperExecution is the sentinel error wrapped by ExecutionError.
	ErrHelperExecution = errors.New("kpm helper could not be executed")
	// ErrHelperReported is the sentinel error wrapped by ReportedError.
	ErrHelperReported = errors.New("kpm helper reported an error")

	// ErrNotExecutable is returned by Probe when the helper path exists but
	// carries no usable execute permission.
	ErrNotExecutable = errors.New("not executable")
	// ErrVersionReportsError is returned by Probe when the version query
	// succeeds but its output says the helper is in an error state.
	ErrVersionReportsError = errors.New("version output reports an error")
)

type (
	// ExecutionError is returned when the helper process cannot be started,
	// or is killed because its context ended. It wraps both
	// ErrHelperExecution and the underlying cause.
	ExecutionError struct {
		Op   string
		Path string
		Err  error
	}

	// ReportedError is returned when the helper exits with a non-zero status.
	// Message carries its trimmed standard error.
	ReportedError struct {
		Op       string
		ExitCode int
		Message  string
	}

	// UnavailableError is returned by Probe when the helper cannot be used.
	UnavailableError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface for ExecutionError.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("run %s %s: %v", e.Path, e.Op, e.Err)
}

// Unwrap returns ErrHelperExecution and the spawn error for errors.Is/As.
func (e *ExecutionError) Unwrap() []error { return []error{ErrHelperExecution, e.Err} }

// Error implements the error interface for ReportedError.
func (e *ReportedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("kpmmgr %s exited with status %d", e.Op, e.ExitCode)
	}
	return fmt.Sprintf("kpmmgr %s exited with status %d: %s", e.Op, e.ExitCode, e.Message)
}

// Unwrap returns ErrHelperReported for errors.Is() compatibility.
func (e *ReportedError) Unwrap() error { return ErrHelperReported }

// Error implements the error interface for UnavailableError.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("kpm helper %s unavailable: %v", e.Path, e.Err)
}

// Unwrap returns ErrHelperUnavailable and the cause for errors.Is/As.
func (e *UnavailableError) Unwrap() []error { return []error{ErrHelperUnavailable, e.Err} }
