// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

const (
	// ExitOK is a successful run.
	ExitOK = 0
	// ExitFailure is any error without a more specific code.
	ExitFailure = 1
	// ExitHelperUnavailable means the kpmmgr helper could not be used.
	ExitHelperUnavailable = 2
)

type (
	// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
	ExitError struct {
		Code int
		Err  error
	}

	// displayError renders its cause through formatErrorForDisplay.
	displayError struct {
		err     error
		verbose bool
	}
)

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

func (e *displayError) Error() string { return formatErrorForDisplay(e.err, e.verbose) }

func (e *displayError) Unwrap() error { return e.err }
