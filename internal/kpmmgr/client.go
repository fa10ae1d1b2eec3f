// SPDX-License-Identifier: MPL-2.0

package kpmmgr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kpmd/kpmd/internal/logging"
	"github.com/kpmd/kpmd/internal/metrics"

	"github.com/charmbracelet/log"
)

const (
	// DefaultPath is where KernelSU installs the helper.
	DefaultPath = "/data/adb/ksu/bin/kpmmgr"

	opVersion = "version"
	opLoad    = "load"
	opUnload  = "unload"

	// loadArgsPlaceholder fills the trailing argument slot of the load
	// command. The helper's argument contract reserves it; it carries no data.
	loadArgsPlaceholder = ""
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures a Client.
	Option func(*Client)

	// Client invokes the kpmmgr helper binary. It holds no state besides its
	// immutable configuration and is safe for concurrent use.
	Client struct {
		path        string
		execCommand ExecCommandFunc
		timeout     time.Duration
		logger      *log.Logger
		metrics     *metrics.Metrics
	}
)

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(c *Client) {
		c.execCommand = fn
	}
}

// WithTimeout bounds every helper invocation. Zero (the default) means the
// call runs until the helper exits or the caller's context is cancelled.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for debug traces of each invocation.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records each invocation in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a Client for the helper at path.
func New(path string, opts ...Option) *Client {
	c := &Client{
		path:        path,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger).With("component", "kpmmgr")
	return c
}

// Version queries the helper version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	return c.run(ctx, opVersion, opVersion)
}

// Load asks the helper to load the module file at path. The path is made
// absolute before it is passed on. Success is exit status zero; the helper's
// output is not interpreted.
func (c *Client) Load(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve module path %q: %w", path, err)
	}
	_, err = c.run(ctx, opLoad, opLoad, abs, loadArgsPlaceholder)
	return err
}

// Unload asks the helper to unload the module with the given logical name.
func (c *Client) Unload(ctx context.Context, name string) error {
	_, err := c.run(ctx, opUnload, opUnload, name)
	return err
}

// run executes the helper with args and classifies the outcome. On success
// it returns the trimmed standard output.
func (c *Client) run(ctx context.Context, op string, args ...string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := c.execCommand(ctx, c.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("invoking helper", "op", op, "args", args)

	if err := cmd.Run(); err != nil {
		// A helper killed by the timeout or by cancellation did not answer.
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.metrics.HelperInvocation(op, metrics.ResultError)
			return "", &ExecutionError{Op: op, Path: c.path, Err: ctxErr}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			c.metrics.HelperInvocation(op, metrics.ResultFailure)
			return "", &ReportedError{
				Op:       op,
				ExitCode: exitErr.ExitCode(),
				Message:  strings.TrimSpace(stderr.String()),
			}
		}
		c.metrics.HelperInvocation(op, metrics.ResultError)
		return "", &ExecutionError{Op: op, Path: c.path, Err: err}
	}

	c.metrics.HelperInvocation(op, metrics.ResultSuccess)
	return strings.TrimSpace(stdout.String()), nil
}
