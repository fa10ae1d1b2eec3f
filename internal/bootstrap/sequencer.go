// SPDX-License-Identifier: MPL-2.0

// Package bootstrap runs the kpmd startup sequence: verify the helper,
// prepare the module directory, then either purge everything (safe mode) or
// watch the directory until shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/kpmd/kpmd/internal/issue"
	"github.com/kpmd/kpmd/internal/kpmmgr"
	"github.com/kpmd/kpmd/internal/lifecycle"
	"github.com/kpmd/kpmd/internal/logging"
	"github.com/kpmd/kpmd/internal/metrics"
	"github.com/kpmd/kpmd/internal/moddir"
	"github.com/kpmd/kpmd/internal/safemode"
	"github.com/kpmd/kpmd/internal/watch"

	"github.com/charmbracelet/log"
)

type (
	// Prober reports helper availability. *kpmmgr.Client satisfies it.
	Prober interface {
		Probe(ctx context.Context) (kpmmgr.Availability, error)
	}

	// Lifecycle is the set of operations the sequence drives.
	// *lifecycle.Manager satisfies it.
	Lifecycle interface {
		watch.Lifecycle
		PurgeAll(ctx context.Context) (lifecycle.Report, error)
		BulkLoad(ctx context.Context) (lifecycle.Report, error)
	}

	// Runner is a started-once watcher.
	Runner interface {
		Run(ctx context.Context) error
	}

	// Config wires the sequence to its collaborators.
	Config struct {
		Helper    Prober
		Store     *moddir.Store
		Lifecycle Lifecycle
		SafeMode  safemode.Detector

		// BulkLoadOnStart loads every module file present before watching.
		BulkLoadOnStart bool
		// Ignore is passed to the watcher.
		Ignore []string

		Logger  *log.Logger
		Metrics *metrics.Metrics

		// NewWatcher builds the watcher. nil means watch.New.
		NewWatcher func(watch.Config) (Runner, error)
	}

	// Sequencer runs the startup sequence once.
	Sequencer struct {
		cfg    Config
		logger *log.Logger
	}
)

// New creates a Sequencer. A nil SafeMode detector means "never safe mode".
func New(cfg Config) *Sequencer {
	if cfg.SafeMode == nil {
		cfg.SafeMode = safemode.Static(false)
	}
	if cfg.NewWatcher == nil {
		cfg.NewWatcher = func(wc watch.Config) (Runner, error) { return watch.New(wc) }
	}
	return &Sequencer{
		cfg:    cfg,
		logger: logging.OrDiscard(cfg.Logger).With("component", "bootstrap"),
	}
}

// Run executes the sequence. In safe mode it returns once every module has
// been purged. Otherwise it blocks until ctx is cancelled and returns nil, or
// returns the watcher's error.
//
// Nothing touches the module directory before the helper has been verified.
func (s *Sequencer) Run(ctx context.Context) error {
	avail, err := s.cfg.Helper.Probe(ctx)
	if err != nil {
		return HelperUnavailable(err)
	}
	s.logger.Info("kpm helper ready", "path", avail.Path, "version", avail.Version)

	if err := s.cfg.Store.EnsureDirectory(); err != nil {
		return DirectoryUnavailable(s.cfg.Store.Dir(), err)
	}

	// An unknown boot state never loads the modules already on disk; only
	// files dropped in while watching are loaded.
	bulkLoad := s.cfg.BulkLoadOnStart
	safe, err := s.cfg.SafeMode.InSafeMode(ctx)
	if err != nil {
		s.logger.Error("safe mode detection failed, watching without loading existing modules", "error", err)
		safe, bulkLoad = false, false
	}

	if safe {
		s.logger.Warn("safe mode detected, unloading and deleting all modules")
		report, err := s.cfg.Lifecycle.PurgeAll(ctx)
		if err != nil {
			s.logger.Error("purge aborted", "error", err)
		} else {
			s.logger.Info("purge complete", "report", report.String())
		}
		s.logSummary()
		return nil
	}

	if bulkLoad {
		if _, err := s.cfg.Lifecycle.BulkLoad(ctx); err != nil {
			s.logger.Error("bulk load aborted", "error", err)
		}
	}

	w, err := s.cfg.NewWatcher(watch.Config{
		Dir:     s.cfg.Store.Dir(),
		Ignore:  s.cfg.Ignore,
		Handler: watch.NewDispatcher(s.cfg.Lifecycle, s.cfg.Store, s.cfg.Logger),
		Logger:  s.cfg.Logger,
		Metrics: s.cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	runErr := w.Run(ctx)
	s.logSummary()
	if runErr != nil {
		return issue.NewErrorContext().
			WithOperation("watch module directory").
			WithResource(s.cfg.Store.Dir()).
			WithIssue(issue.WatcherFailedId).
			Wrap(runErr).
			BuildError()
	}
	return nil
}

func (s *Sequencer) logSummary() {
	summary, err := s.cfg.Metrics.Summary()
	if err != nil {
		s.logger.Warn("cannot gather metrics", "error", err)
		return
	}
	if len(summary) == 0 {
		return
	}
	kv := make([]any, 0, 2*len(summary))
	for name, value := range summary {
		kv = append(kv, name, value)
	}
	s.logger.Info("activity summary", kv...)
}

// HelperUnavailable wraps a failed helper probe into the user-facing error
// pointing at the helper-unavailable troubleshooting page.
func HelperUnavailable(err error) error {
	return issue.NewErrorContext().
		WithOperation("verify kpm helper").
		WithResource(helperPath(err)).
		WithSuggestion("Check that KernelSU with KPM support is installed").
		WithSuggestion("Pass the helper location with --helper").
		WithIssue(issue.HelperUnavailableId).
		Wrap(err).
		BuildError()
}

// DirectoryUnavailable wraps a module directory failure. Permission
// failures point at their own troubleshooting page.
func DirectoryUnavailable(dir string, err error) error {
	id := issue.DirectoryAccessId
	if errors.Is(err, fs.ErrPermission) {
		id = issue.PermissionDeniedId
	}
	return issue.NewErrorContext().
		WithOperation("prepare module directory").
		WithResource(dir).
		WithSuggestion("Run kpmd as root").
		WithIssue(id).
		Wrap(err).
		BuildError()
}

func helperPath(err error) string {
	var unavailable *kpmmgr.UnavailableError
	if errors.As(err, &unavailable) {
		return unavailable.Path
	}
	return ""
}
