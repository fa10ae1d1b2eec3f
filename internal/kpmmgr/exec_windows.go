// SPDX-License-Identifier: MPL-2.0

//go:build windows

package kpmmgr

import (
	"fmt"
	"os"
)

// checkExecutable reports whether path is a regular file. Windows has no
// execute permission bit, so existence is the whole check.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat helper: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotExecutable, path)
	}
	return nil
}
