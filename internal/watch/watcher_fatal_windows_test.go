// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"fmt"
	"testing"

	"golang.org/x/sys/windows"
)

func TestIsFatalFsnotifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "handle limit", err: windows.ERROR_TOO_MANY_OPEN_FILES, want: true},
		{name: "lost handle", err: fmt.Errorf("ReadDirectoryChanges: %w", windows.ERROR_INVALID_HANDLE), want: true},
		{name: "out of memory", err: windows.ERROR_NOT_ENOUGH_MEMORY, want: true},
		{name: "access denied", err: windows.ERROR_ACCESS_DENIED, want: false},
		{name: "plain error", err: fmt.Errorf("something went wrong"), want: false},
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
