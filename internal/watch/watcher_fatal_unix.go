// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isFatalFsnotifyError reports whether err leaves the subscription unusable.
// These are the inotify resource exhaustion errors:
//   - ENOSPC: fs.inotify.max_user_watches reached
//   - EMFILE: per-process descriptor limit reached
//   - ENFILE: system-wide descriptor limit reached
func isFatalFsnotifyError(err error) bool {
	for _, errno := range []unix.Errno{unix.ENOSPC, unix.EMFILE, unix.ENFILE} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
