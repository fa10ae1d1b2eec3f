// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"

	"golang.org/x/sys/windows"
)

// isFatalFsnotifyError reports whether err leaves the subscription unusable.
// ReadDirectoryChangesW has no watch limit, but a lost handle or exhausted
// resources still end the subscription.
func isFatalFsnotifyError(err error) bool {
	for _, errno := range []error{
		windows.ERROR_TOO_MANY_OPEN_FILES,
		windows.ERROR_INVALID_HANDLE,
		windows.ERROR_NOT_ENOUGH_MEMORY,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
