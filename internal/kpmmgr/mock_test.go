// SPDX-License-Identifier: MPL-2.0

package kpmmgr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"
)

type (
	// mockHelper captures arguments passed to the exec command function and
	// answers through TestHelperProcess with the configured output.
	mockHelper struct {
		mu sync.Mutex
		// invocations records the argument list of each call.
		invocations [][]string
		// exitCode is the exit code to return (0 = success).
		exitCode int
		// stdout is written to the helper's standard output.
		stdout string
		// stderr is written to the helper's standard error.
		stderr string
		// sleep delays the helper's exit.
		sleep time.Duration
	}
)

// commandFunc returns an ExecCommandFunc that records invocations and runs
// TestHelperProcess in place of the real helper.
func (m *mockHelper) commandFunc(t *testing.T) ExecCommandFunc {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		m.mu.Lock()
		m.invocations = append(m.invocations, append([]string(nil), args...))
		exitCode, stdout, stderr, sleep := m.exitCode, m.stdout, m.stderr, m.sleep
		m.mu.Unlock()

		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...) //nolint:gosec // TestHelperProcess is a test-only pattern
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", exitCode),
			"GO_HELPER_STDOUT=" + stdout,
			"GO_HELPER_STDERR=" + stderr,
			"GO_HELPER_SLEEP=" + sleep.String(),
		}
		return cmd
	}
}

func (m *mockHelper) calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.invocations...)
}

// TestHelperProcess is not a real test. It stands in for the kpmmgr binary
// when a test injects mockHelper.commandFunc.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	if stdout := os.Getenv("GO_HELPER_STDOUT"); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	if stderr := os.Getenv("GO_HELPER_STDERR"); stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}

	if d, err := time.ParseDuration(os.Getenv("GO_HELPER_SLEEP")); err == nil {
		time.Sleep(d)
	}

	exitCode := 0
	if code := os.Getenv("GO_HELPER_EXIT_CODE"); code != "" {
		fmt.Sscanf(code, "%d", &exitCode) //nolint:errcheck // zero on malformed input
	}
	os.Exit(exitCode)
}
