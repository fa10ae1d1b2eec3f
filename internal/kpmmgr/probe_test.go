// SPDX-License-Identifier: MPL-2.0

package kpmmgr

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestProbe_Available(t *testing.T) {
	t.Parallel()

	mock := &mockHelper{stdout: "0.10.7"}
	c := New(os.Args[0], WithExecCommand(mock.commandFunc(t)))

	avail, err := c.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if avail.Version != "0.10.7" || avail.Path != os.Args[0] {
		t.Errorf("Probe() = %+v", avail)
	}
}

func TestProbe_Unavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mock    *mockHelper
		path    func(t *testing.T) string
		wantErr error
		calls   int
	}{
		{
			name:    "missing helper",
			mock:    &mockHelper{stdout: "1.0"},
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "kpmmgr") },
			wantErr: fs.ErrNotExist,
			calls:   0,
		},
		{
			name:    "version exits non-zero",
			mock:    &mockHelper{exitCode: 1, stderr: "no kpm"},
			path:    func(*testing.T) string { return os.Args[0] },
			wantErr: ErrHelperReported,
			calls:   1,
		},
		{
			name:    "version output reports error",
			mock:    &mockHelper{stdout: "Error: kpm not enabled"},
			path:    func(*testing.T) string { return os.Args[0] },
			wantErr: ErrVersionReportsError,
			calls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New(tt.path(t), WithExecCommand(tt.mock.commandFunc(t)))
			_, err := c.Probe(context.Background())
			if !errors.Is(err, ErrHelperUnavailable) {
				t.Fatalf("Probe() error = %v, want ErrHelperUnavailable", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Probe() error = %v, want it to wrap %v", err, tt.wantErr)
			}
			if got := len(tt.mock.calls()); got != tt.calls {
				t.Errorf("helper invoked %d times, want %d", got, tt.calls)
			}
		})
	}
}

func TestProbe_NotExecutable(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("no execute permission bit on windows")
	}

	path := filepath.Join(t.TempDir(), "kpmmgr")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatalf("write helper: %v", err)
	}

	mock := &mockHelper{stdout: "1.0"}
	c := New(path, WithExecCommand(mock.commandFunc(t)))

	_, err := c.Probe(context.Background())
	if !errors.Is(err, ErrNotExecutable) {
		t.Fatalf("Probe() error = %v, want ErrNotExecutable", err)
	}
	if len(mock.calls()) != 0 {
		t.Error("version must not be queried when the helper is not executable")
	}
}
