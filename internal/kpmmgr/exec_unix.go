// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package kpmmgr

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// checkExecutable reports whether path is a regular file the current process
// may execute. The mode bits are checked first so a file without any execute
// bit is rejected even for root, then access(2) confirms the effective
// permission.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat helper: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotExecutable, path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s has mode %s", ErrNotExecutable, path, info.Mode().Perm())
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return errors.Join(ErrNotExecutable, fmt.Errorf("access %s: %w", path, err))
	}
	return nil
}
