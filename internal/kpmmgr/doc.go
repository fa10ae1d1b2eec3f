// SPDX-License-Identifier: MPL-2.0

// Package kpmmgr is the client for the privileged kpmmgr helper that loads
// and unloads kernel plugin modules.
//
// Every operation is a synchronous subprocess invocation with a fixed
// argument list; no shell is involved. The helper's exit status is the only
// success signal for load and unload. Only the version query reads output.
//
// Errors are classified so callers can pick a policy per class:
//   - ExecutionError (wraps ErrHelperExecution): the process could not be spawned.
//   - ReportedError (wraps ErrHelperReported): the process ran and exited non-zero.
//   - UnavailableError (wraps ErrHelperUnavailable): Probe found the helper unusable.
package kpmmgr
