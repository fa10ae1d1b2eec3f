// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
)

func TestIsFatalFsnotifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "watch limit", err: unix.ENOSPC, want: true},
		{name: "process descriptors", err: unix.EMFILE, want: true},
		{name: "system descriptors", err: unix.ENFILE, want: true},
		{name: "wrapped watch limit", err: fmt.Errorf("inotify_add_watch: %w", unix.ENOSPC), want: true},
		{name: "permission denied", err: unix.EACCES, want: false},
		{name: "event queue overflow", err: fmt.Errorf("fsnotify: queue or buffer overflow"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isFatalFsnotifyError(tt.err); got != tt.want {
				t.Errorf("isFatalFsnotifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
