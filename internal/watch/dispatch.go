// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"os"

	"github.com/kpmd/kpmd/internal/logging"
	"github.com/kpmd/kpmd/internal/moddir"

	"github.com/charmbracelet/log"
)

type (
	// Lifecycle is what the Dispatcher drives. *lifecycle.Manager satisfies it.
	Lifecycle interface {
		LoadModule(ctx context.Context, path string) error
		UnloadModule(ctx context.Context, name string) error
	}

	// Dispatcher maps classified events to lifecycle operations. Errors are
	// logged and never stop the watcher.
	Dispatcher struct {
		lifecycle Lifecycle
		store     *moddir.Store
		logger    *log.Logger
	}
)

// NewDispatcher creates a Dispatcher. A nil logger discards its output.
func NewDispatcher(lc Lifecycle, store *moddir.Store, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		lifecycle: lc,
		store:     store,
		logger:    logging.OrDiscard(logger).With("component", "dispatch"),
	}
}

// Handle implements Handler.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case KindCreate:
		d.onCreate(ctx, ev.Path)
	case KindRemove:
		d.onRemove(ctx, ev.Path)
	case KindModify:
		d.logger.Info("module directory entry modified", "path", ev.Path)
	}
}

func (d *Dispatcher) onCreate(ctx context.Context, path string) {
	if !d.store.HasModuleExt(path) {
		d.logger.Debug("ignoring new non-module file", "path", path)
		return
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		d.logger.Debug("ignoring new directory", "path", path)
		return
	}

	d.logger.Info("module file created", "path", path)
	if err := d.lifecycle.LoadModule(ctx, path); err != nil {
		d.logger.Error("load on create failed", "path", path, "error", err)
	}
}

// onRemove reacts to any removed path, whatever its extension: the helper
// decides whether the name was loaded.
func (d *Dispatcher) onRemove(ctx context.Context, path string) {
	name := moddir.LogicalName(path)
	if name == "" {
		d.logger.Debug("skipping removed entry with empty name", "path", path)
		return
	}

	d.logger.Info("module directory entry removed", "path", path, "name", name)
	if err := d.lifecycle.UnloadModule(ctx, name); err != nil {
		d.logger.Error("unload on remove failed", "name", name, "error", err)
	}
	if err := d.store.Remove(path); err != nil {
		d.logger.Error("delete after remove failed", "path", path, "error", err)
	}
}
