// SPDX-License-Identifier: MPL-2.0

// Package watch subscribes to the module directory and turns filesystem
// notifications into create, remove and modify events.
//
// The subscription is non-recursive. Events are handed to the Handler one at
// a time, in delivery order, on the goroutine that called Run; there is no
// debouncing and no coalescing, so every create notification reaches the
// handler exactly once.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/kpmd/kpmd/internal/logging"
	"github.com/kpmd/kpmd/internal/metrics"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const (
	// KindOther covers notifications that need no reaction, such as chmod.
	KindOther Kind = iota
	// KindCreate is a new entry in the directory.
	KindCreate
	// KindRemove is an entry deleted from the directory.
	KindRemove
	// KindModify is a write to, or a rename of, an entry.
	KindModify
)

const (
	// StateUnsubscribed means no directory subscription is held.
	StateUnsubscribed State = iota
	// StateWatching means the directory subscription is active.
	StateWatching
)

var (
	// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
	ErrInvalidWatchConfig = errors.New("invalid watch config")
	// ErrAlreadyStarted is returned by a second call to Run.
	ErrAlreadyStarted = errors.New("watch: Run called more than once")
)

type (
	// Kind classifies a filesystem notification.
	Kind int

	// State is the subscription state of a Watcher.
	State int32

	// Event is a classified notification for one path in the directory.
	Event struct {
		Kind Kind
		// Path is the full path reported by the event source.
		Path string
	}

	// Handler reacts to classified events. Handle must not assume events
	// arrive once or in order; duplicates and reordering are possible.
	Handler interface {
		Handle(ctx context.Context, ev Event)
	}

	// HandlerFunc adapts a function to Handler.
	HandlerFunc func(ctx context.Context, ev Event)

	// Config holds the parameters for a Watcher.
	Config struct {
		// Dir is the directory to subscribe to. Only direct children are
		// reported.
		Dir string

		// Ignore are doublestar-compatible glob patterns, relative to Dir,
		// for paths that are never dispatched.
		Ignore []string

		// Handler receives every non-ignored event whose kind is not
		// KindOther.
		Handler Handler

		// Logger receives event traces and non-fatal watcher errors. nil
		// discards them.
		Logger *log.Logger

		// Metrics counts events and non-fatal errors. nil disables counting.
		Metrics *metrics.Metrics
	}

	// InvalidWatchConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidWatchConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// Watcher delivers module directory events to a Handler. Run must be
	// called exactly once; calling it a second time returns ErrAlreadyStarted.
	Watcher struct {
		cfg     Config
		dir     string
		logger  *log.Logger
		started atomic.Bool
		state   atomic.Int32
	}
)

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev Event) { f(ctx, ev) }

// String returns the lowercase name of the kind, also used as a metric label.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindRemove:
		return "remove"
	case KindModify:
		return "modify"
	default:
		return "other"
	}
}

// String returns a human-readable name for the state.
func (s State) String() string {
	if s == StateWatching {
		return "watching"
	}
	return "unsubscribed"
}

// Error implements the error interface for InvalidWatchConfigError.
func (e *InvalidWatchConfigError) Error() string {
	return fmt.Sprintf("invalid watch config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidWatchConfig for errors.Is() compatibility.
func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// Validate checks every field of the Config and collects all problems into
// a single *InvalidWatchConfigError.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Dir) == "" {
		errs = append(errs, errors.New("dir must not be empty"))
	}
	if c.Handler == nil {
		errs = append(errs, errors.New("handler must not be nil"))
	}
	for _, pat := range c.Ignore {
		if err := validatePattern(pat); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

// Classify maps an fsnotify event to a Kind. When several operations are
// combined in one event, create wins over remove, and remove over
// write/rename.
func Classify(ev fsnotify.Event) Kind {
	switch {
	case ev.Has(fsnotify.Create):
		return KindCreate
	case ev.Has(fsnotify.Remove):
		return KindRemove
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Rename):
		return KindModify
	default:
		return KindOther
	}
}

// New validates cfg and creates a Watcher. No subscription is made until Run.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve directory: %w", err)
	}

	return &Watcher{
		cfg:    cfg,
		dir:    dir,
		logger: logging.OrDiscard(cfg.Logger).With("component", "watch"),
	}, nil
}

// State reports whether the directory subscription is currently held.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Run subscribes to the directory and dispatches events until ctx is
// cancelled or the event source fails fatally. Removing or renaming the
// directory itself is fatal. It returns nil on cancellation. The
// subscription is released before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	defer func() {
		w.state.Store(int32(StateUnsubscribed))
		if closeErr := fsw.Close(); closeErr != nil {
			w.logger.Warn("close fsnotify watcher", "error", closeErr)
		}
	}()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: subscribe to %s: %w", w.dir, err)
	}
	w.state.Store(int32(StateWatching))
	w.logger.Info("watching module directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopped watching module directory", "dir", w.dir)
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			// The kernel drops the subscription once the directory itself is
			// gone, so no further events can arrive.
			if w.isSelfRemoval(ev) {
				return fmt.Errorf("watch: module directory %s removed", w.dir)
			}
			w.dispatch(ctx, ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			// isFatalFsnotifyError is platform-specific (see watcher_fatal_*.go).
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.cfg.Metrics.WatchError()
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, raw fsnotify.Event) {
	if w.isIgnored(raw.Name) {
		w.logger.Debug("ignored event", "path", raw.Name, "op", raw.Op.String())
		return
	}

	kind := Classify(raw)
	if kind == KindOther {
		return
	}

	w.cfg.Metrics.WatchEvent(kind.String())
	w.logger.Debug("event", "kind", kind, "path", raw.Name)
	w.cfg.Handler.Handle(ctx, Event{Kind: kind, Path: raw.Name})
}

// isSelfRemoval reports whether ev removes or renames the watched directory.
func (w *Watcher) isSelfRemoval(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Clean(ev.Name) == w.dir
}

// isIgnored returns true if path matches any ignore pattern. Patterns match
// against the path relative to the watched directory.
func (w *Watcher) isIgnored(path string) bool {
	if len(w.cfg.Ignore) == 0 {
		return false
	}
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.cfg.Ignore {
		if matched, matchErr := doublestar.Match(pat, normalized); matchErr == nil && matched {
			return true
		}
	}
	return false
}

func validatePattern(pat string) error {
	if strings.TrimSpace(pat) == "" {
		return errors.New("ignore pattern must not be empty")
	}
	if !doublestar.ValidatePattern(pat) {
		return fmt.Errorf("invalid ignore pattern %q: %w", pat, doublestar.ErrBadPattern)
	}
	return nil
}
