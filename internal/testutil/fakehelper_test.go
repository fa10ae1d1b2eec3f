// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"errors"
	"os/exec"
	"slices"
	"testing"
)

func TestFakeHelper(t *testing.T) {
	t.Parallel()

	h := NewFakeHelper(t, FakeHelperOptions{
		Version:    "1.2.3",
		FailLoad:   []string{"bad.kpm"},
		FailUnload: []string{"it's"},
	})

	run := func(args ...string) (string, int) {
		out, err := exec.CommandContext(context.Background(), h.Path, args...).Output()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode()
		}
		if err != nil {
			t.Fatalf("run %v: %v", args, err)
		}
		return string(out), 0
	}

	if out, code := run("version"); code != 0 || out != "1.2.3\n" {
		t.Errorf("version = %q, %d", out, code)
	}
	if _, code := run("load", "/mods/good.kpm", ""); code != 0 {
		t.Errorf("load good exit = %d, want 0", code)
	}
	if _, code := run("load", "/mods/bad.kpm", ""); code != 1 {
		t.Errorf("load bad exit = %d, want 1", code)
	}
	if _, code := run("unload", "it's"); code != 1 {
		t.Errorf("unload quoted name exit = %d, want 1", code)
	}
	if _, code := run("frobnicate"); code != 64 {
		t.Errorf("unknown command exit = %d, want 64", code)
	}

	want := []string{"load /mods/good.kpm", "load /mods/bad.kpm"}
	if got := h.CallsWithPrefix(t, "load"); !slices.Equal(got, want) {
		t.Errorf("load calls = %q, want %q", got, want)
	}
	if n := len(h.Calls(t)); n != 5 {
		t.Errorf("recorded %d calls, want 5", n)
	}
}
