// SPDX-License-Identifier: MPL-2.0

// Package moddir owns the module directory: the single location holding
// kernel plugin module files, identified by a recognized extension.
//
// A module's logical name is its file stem. The store never caches
// directory contents; every call reads the filesystem again.
package moddir

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/kpmd/kpmd/internal/logging"

	"github.com/charmbracelet/log"
)

const (
	// DefaultDir is where KernelSU keeps module files.
	DefaultDir = "/data/adb/kpm"
	// DefaultExt is the recognized module file extension, without the dot.
	DefaultExt = "kpm"

	// readBatch is how many directory entries Modules reads per syscall batch.
	readBatch = 64
)

var (
	// ErrDirectoryAccess is the sentinel error wrapped by DirectoryError.
	ErrDirectoryAccess = errors.New("module directory not accessible")
	// ErrFileDeletion is wrapped by Remove failures.
	ErrFileDeletion = errors.New("module file deletion failed")
)

type (
	// DirectoryError is returned when the module directory cannot be created
	// or read. It wraps both ErrDirectoryAccess and the filesystem error.
	DirectoryError struct {
		Op  string
		Dir string
		Err error
	}

	// Module is one module file found in the directory.
	Module struct {
		// Path is the file path inside the module directory.
		Path string
		// Name is the logical name (file stem) passed to the helper.
		Name string
	}

	// Store gives access to the module directory.
	Store struct {
		dir    string
		ext    string
		logger *log.Logger
	}
)

// Error implements the error interface for DirectoryError.
func (e *DirectoryError) Error() string {
	return fmt.Sprintf("%s module directory %s: %v", e.Op, e.Dir, e.Err)
}

// Unwrap returns ErrDirectoryAccess and the filesystem error for errors.Is/As.
func (e *DirectoryError) Unwrap() []error { return []error{ErrDirectoryAccess, e.Err} }

// New creates a Store for dir. ext may be given with or without its leading
// dot. A nil logger discards the warnings about skipped entries.
func New(dir, ext string, logger *log.Logger) *Store {
	return &Store{
		dir:    filepath.Clean(dir),
		ext:    strings.TrimPrefix(ext, "."),
		logger: logging.OrDiscard(logger).With("component", "moddir"),
	}
}

// Dir returns the module directory path.
func (s *Store) Dir() string { return s.dir }

// Ext returns the recognized extension without its leading dot.
func (s *Store) Ext() string { return s.ext }

// LogicalName returns the stem of path: its base name without the extension.
func LogicalName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasModuleExt reports whether path carries the recognized extension.
func (s *Store) HasModuleExt(path string) bool {
	return filepath.Ext(path) == "."+s.ext
}

// EnsureDirectory creates the module directory and its parents when missing.
// Callers must have confirmed helper availability first.
func (s *Store) EnsureDirectory() error {
	info, err := os.Stat(s.dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return &DirectoryError{Op: "create", Dir: s.dir, Err: fmt.Errorf("%s exists and is not a directory", s.dir)}
	case !errors.Is(err, fs.ErrNotExist):
		return &DirectoryError{Op: "create", Dir: s.dir, Err: err}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &DirectoryError{Op: "create", Dir: s.dir, Err: err}
	}
	s.logger.Info("created module directory", "dir", s.dir)
	return nil
}

// Modules returns a lazy sequence of the module files in the directory, in
// directory order. Each iteration reads the directory again, so the
// sequence is restartable. Entries whose logical name is empty are skipped
// with a warning. A directory read failure is yielded once as a
// *DirectoryError and ends the sequence.
func (s *Store) Modules() iter.Seq2[Module, error] {
	return func(yield func(Module, error) bool) {
		f, err := os.Open(s.dir)
		if err != nil {
			yield(Module{}, &DirectoryError{Op: "read", Dir: s.dir, Err: err})
			return
		}
		defer f.Close() //nolint:errcheck // read-only handle

		for {
			entries, readErr := f.ReadDir(readBatch)
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				path := filepath.Join(s.dir, entry.Name())
				if !s.HasModuleExt(path) {
					continue
				}
				name := LogicalName(path)
				if name == "" {
					s.logger.Warn("skipping module file with empty name", "path", path)
					continue
				}
				if !yield(Module{Path: path, Name: name}, nil) {
					return
				}
			}

			if errors.Is(readErr, io.EOF) {
				return
			}
			if readErr != nil {
				yield(Module{}, &DirectoryError{Op: "read", Dir: s.dir, Err: readErr})
				return
			}
		}
	}
}

// List collects Modules into a slice.
func (s *Store) List() ([]Module, error) {
	var mods []Module
	for mod, err := range s.Modules() {
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

// FindByName returns the path of the first module file whose logical name is
// name. Absence, including a missing directory, is reported with ok == false
// and a nil error.
func (s *Store) FindByName(name string) (path string, ok bool, err error) {
	for mod, iterErr := range s.Modules() {
		if iterErr != nil {
			if errors.Is(iterErr, fs.ErrNotExist) {
				return "", false, nil
			}
			return "", false, iterErr
		}
		if mod.Name == name {
			return mod.Path, true, nil
		}
	}
	return "", false, nil
}

// Resolve maps a user-supplied module reference to a path: an existing file
// path is returned as is, otherwise a bare name is looked up in the
// directory (with or without the extension).
func (s *Store) Resolve(ref string) (string, bool, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, true, nil
	}
	name := ref
	if s.HasModuleExt(ref) {
		name = LogicalName(ref)
	}
	return s.FindByName(name)
}

// Remove deletes the file at path. A file that is already gone counts as
// removed, so concurrent removers of the same path both succeed.
func (s *Store) Remove(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrFileDeletion, path, err)
}
