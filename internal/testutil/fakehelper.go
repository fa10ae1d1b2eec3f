// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

type (
	// FakeHelperOptions controls how the fake helper answers.
	FakeHelperOptions struct {
		// Version is printed for "version". Empty means "0.12.0-fake".
		Version string
		// FailLoad lists module file basenames whose load exits 1.
		FailLoad []string
		// FailUnload lists logical names whose unload exits 1.
		FailUnload []string
	}

	// FakeHelper is an executable POSIX shell script that mimics the kpmmgr
	// argument contract and records every invocation.
	FakeHelper struct {
		// Path is the script location, suitable for --helper.
		Path string
		log  string
	}
)

// NewFakeHelper writes a fake helper into a fresh temp directory. Tests using
// it are skipped on Windows.
func NewFakeHelper(t testing.TB, opts FakeHelperOptions) *FakeHelper {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake helper is a POSIX shell script")
	}

	dir := t.TempDir()
	h := &FakeHelper{
		Path: filepath.Join(dir, "kpmmgr"),
		log:  filepath.Join(dir, "calls.log"),
	}
	version := opts.Version
	if version == "" {
		version = "0.12.0-fake"
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "echo \"$*\" >> %s\n", shellQuote(h.log))
	b.WriteString("case \"$1\" in\n")
	fmt.Fprintf(&b, "version) echo %s ;;\n", shellQuote(version))
	b.WriteString("load)\n")
	writeFailCase(&b, "\"$(basename \"$2\")\"", opts.FailLoad, "load failed")
	b.WriteString("  ;;\n")
	b.WriteString("unload)\n")
	writeFailCase(&b, "\"$2\"", opts.FailUnload, "module not loaded")
	b.WriteString("  ;;\n")
	b.WriteString("*) echo \"unknown command: $1\" >&2; exit 64 ;;\n")
	b.WriteString("esac\n")

	if err := os.WriteFile(h.Path, []byte(b.String()), 0o755); err != nil { //nolint:gosec // test helper must be executable
		t.Fatalf("failed to write fake helper: %v", err)
	}
	return h
}

func writeFailCase(b *strings.Builder, subject string, names []string, msg string) {
	if len(names) == 0 {
		return
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = shellQuote(n)
	}
	fmt.Fprintf(b, "  case %s in\n  %s) echo %s >&2; exit 1 ;;\n  esac\n",
		subject, strings.Join(quoted, "|"), shellQuote(msg))
}

// Calls returns the recorded invocations, one "op args..." string each.
func (h *FakeHelper) Calls(t testing.TB) []string {
	t.Helper()
	data, err := os.ReadFile(h.log)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to read fake helper log: %v", err)
	}
	var calls []string
	for line := range strings.Lines(string(data)) {
		if line = strings.TrimSpace(line); line != "" {
			calls = append(calls, line)
		}
	}
	return calls
}

// CallsWithPrefix returns the recorded invocations starting with prefix.
func (h *FakeHelper) CallsWithPrefix(t testing.TB, prefix string) []string {
	t.Helper()
	var out []string
	for _, c := range h.Calls(t) {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
