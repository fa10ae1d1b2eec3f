// SPDX-License-Identifier: MPL-2.0

// Package lifecycle turns module files into helper load and unload calls.
//
// There is no record of which modules are loaded. A file present in the
// module directory stands for "should be loaded" and an absent file for
// "should not be loaded", so every operation here tolerates repeats: unloading
// something already unloaded and deleting something already deleted both
// count as success.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/kpmd/kpmd/internal/kpmmgr"
	"github.com/kpmd/kpmd/internal/logging"
	"github.com/kpmd/kpmd/internal/metrics"
	"github.com/kpmd/kpmd/internal/moddir"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"
)

const (
	opLoad   = "load"
	opUnload = "unload"
	opPurge  = "purge"
)

type (
	// Helper is the subset of the helper client the lifecycle layer needs.
	// *kpmmgr.Client satisfies it.
	Helper interface {
		Load(ctx context.Context, path string) error
		Unload(ctx context.Context, name string) error
	}

	// Option configures a Manager.
	Option func(*Manager)

	// Manager runs load, unload, purge and bulk load against one module
	// directory. It keeps no state between calls and may be used from several
	// goroutines.
	Manager struct {
		helper  Helper
		store   *moddir.Store
		logger  *log.Logger
		metrics *metrics.Metrics
	}
)

// WithLogger sets the logger for per-module outcomes.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics records lifecycle outcomes in mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// New creates a Manager.
func New(helper Helper, store *moddir.Store, opts ...Option) *Manager {
	m := &Manager{helper: helper, store: store}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrDiscard(m.logger).With("component", "lifecycle")
	return m
}

// Store returns the module directory the manager operates on.
func (m *Manager) Store() *moddir.Store { return m.store }

// LoadModule asks the helper to load the file at path. The file is never
// moved or deleted, whatever the outcome.
func (m *Manager) LoadModule(ctx context.Context, path string) error {
	if err := m.helper.Load(ctx, path); err != nil {
		m.metrics.LifecycleOperation(opLoad, resultOf(err))
		return fmt.Errorf("load module %s: %w", path, err)
	}
	m.metrics.LifecycleOperation(opLoad, metrics.ResultSuccess)
	m.logger.Info("module loaded", "path", path)
	return nil
}

// UnloadModule asks the helper to unload name and, when it succeeds, deletes
// the matching module file.
//
// A rejection reported by the helper is logged as a warning and nil is
// returned, since the module may never have been loaded. A helper that cannot
// be run at all is returned as an error. A missing file and a failed deletion
// are logged; neither is returned.
func (m *Manager) UnloadModule(ctx context.Context, name string) error {
	err := m.unload(ctx, name)
	if errors.Is(err, kpmmgr.ErrHelperReported) {
		m.logger.Warn("helper refused unload", "name", name, "error", err)
		return nil
	}
	return err
}

// unload is UnloadModule without the demotion of helper rejections.
func (m *Manager) unload(ctx context.Context, name string) error {
	if err := m.helper.Unload(ctx, name); err != nil {
		m.metrics.LifecycleOperation(opUnload, resultOf(err))
		return fmt.Errorf("unload module %s: %w", name, err)
	}
	m.metrics.LifecycleOperation(opUnload, metrics.ResultSuccess)
	m.logger.Info("module unloaded", "name", name)

	path, ok, err := m.store.FindByName(name)
	switch {
	case err != nil:
		m.logger.Error("cannot look up unloaded module file", "name", name, "error", err)
	case !ok:
		m.logger.Debug("no module file left for unloaded module", "name", name)
	default:
		if err := m.store.Remove(path); err != nil {
			m.logger.Error("cannot delete unloaded module file", "path", path, "error", err)
		} else {
			m.logger.Info("module file deleted", "path", path)
		}
	}
	return nil
}

// PurgeAll unloads every module file in the directory and deletes each file
// whether or not its unload succeeded. Per-file failures go into the Report
// and the log; only a directory read failure is returned.
func (m *Manager) PurgeAll(ctx context.Context) (Report, error) {
	var report Report
	for mod, err := range m.store.Modules() {
		if err != nil {
			return report, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}

		report.Attempted++
		itemErr := m.unload(ctx, mod.Name)
		if itemErr != nil {
			m.logger.Warn("unload during purge failed", "name", mod.Name, "error", itemErr)
		}
		if rmErr := m.store.Remove(mod.Path); rmErr != nil {
			m.logger.Error("cannot delete module file during purge", "path", mod.Path, "error", rmErr)
			itemErr = multierr.Append(itemErr, rmErr)
		}
		report.record(itemErr)
	}

	m.metrics.LifecycleOperation(opPurge, report.result())
	m.logger.Info("purge finished", "attempted", report.Attempted, "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// BulkLoad loads every module file currently in the directory. Failures are
// logged and isolated per file; only a directory read failure is returned.
func (m *Manager) BulkLoad(ctx context.Context) (Report, error) {
	var report Report
	for mod, err := range m.store.Modules() {
		if err != nil {
			return report, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}

		report.Attempted++
		loadErr := m.LoadModule(ctx, mod.Path)
		if loadErr != nil {
			m.logger.Error("bulk load of module failed", "path", mod.Path, "error", loadErr)
		}
		report.record(loadErr)
	}

	m.logger.Info("bulk load finished", "attempted", report.Attempted, "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

func resultOf(err error) string {
	if errors.Is(err, kpmmgr.ErrHelperExecution) {
		return metrics.ResultError
	}
	return metrics.ResultFailure
}
