// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/kpmd/kpmd/internal/bootstrap"
	"github.com/kpmd/kpmd/internal/issue"
	"github.com/kpmd/kpmd/internal/lifecycle"
	"github.com/kpmd/kpmd/internal/moddir"

	"github.com/spf13/cobra"
)

// newLoadCommand creates the `kpmd load` command.
func newLoadCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file|name>",
		Short: "Load one module",
		Long: `Load one module through the helper. The argument is a file path, or a
module name looked up in the module directory. The file is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := app.open(ctx)
			if err != nil {
				return app.fail(err)
			}
			if err := s.requireHelper(ctx); err != nil {
				return app.fail(err)
			}

			path, ok, err := s.store.Resolve(args[0])
			if err != nil {
				return app.fail(err)
			}
			if !ok {
				return app.fail(issue.NewErrorContext().
					WithOperation("load module").
					WithResource(args[0]).
					WithSuggestion("Run 'kpmd list' to see the available modules").
					WithIssue(issue.ModuleNotFoundId).
					BuildError())
			}

			if err := s.manager.LoadModule(ctx, path); err != nil {
				return app.fail(issue.WrapWithContext(err, "load module", path))
			}
			fmt.Fprintf(app.stdout, "%s Loaded %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(moddir.LogicalName(path)))
			return nil
		},
	}
}

// newUnloadCommand creates the `kpmd unload` command.
func newUnloadCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unload <name>",
		Short: "Unload a module and delete its file",
		Long: `Unload a module by logical name, then delete its file from the module
directory. A helper that reports the module was not loaded is logged as a
warning and leaves the file in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := app.open(ctx)
			if err != nil {
				return app.fail(err)
			}
			if err := s.requireHelper(ctx); err != nil {
				return app.fail(err)
			}

			name := args[0]
			if s.store.HasModuleExt(name) {
				name = moddir.LogicalName(name)
			}
			if err := s.manager.UnloadModule(ctx, name); err != nil {
				return app.fail(issue.WrapWithContext(err, "unload module", name))
			}
			fmt.Fprintf(app.stdout, "%s Unloaded %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(name))
			return nil
		},
	}
}

// newLoadAllCommand creates the `kpmd load-all` command.
func newLoadAllCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "load-all",
		Short: "Load every module file in the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runBatch(cmd.Context(), "load", (*lifecycle.Manager).BulkLoad)
		},
	}
}

// newPurgeCommand creates the `kpmd purge` command.
func newPurgeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Unload and delete every module file",
		Long: `Unload every module found in the directory and delete its file, whether
or not the unload succeeded. This is what 'kpmd run' does in safe mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runBatch(cmd.Context(), "purge", (*lifecycle.Manager).PurgeAll)
		},
	}
}

// newListCommand creates the `kpmd list` command.
func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List module files in the module directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return app.fail(err)
			}

			mods, err := s.store.List()
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(app.stdout, "%s\n", SubtitleStyle.Render("(module directory "+s.store.Dir()+" does not exist)"))
				return nil
			}
			if err != nil {
				return app.fail(err)
			}
			if len(mods) == 0 {
				fmt.Fprintf(app.stdout, "%s\n", SubtitleStyle.Render("(no modules)"))
				return nil
			}
			for _, m := range mods {
				fmt.Fprintf(app.stdout, "%s\t%s\n", CmdStyle.Render(m.Name), m.Path)
			}
			return nil
		},
	}
}

// newVersionCommand creates the `kpmd version` command.
func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show kpmd and helper versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render("kpmd"), getVersionString())

			s, err := app.open(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			avail, err := s.client.Probe(cmd.Context())
			if err != nil {
				return app.fail(bootstrap.HelperUnavailable(err))
			}
			fmt.Fprintf(app.stdout, "%s %s (%s)\n", TitleStyle.Render("kpmmgr"), avail.Version, avail.Path)
			return nil
		},
	}
}

// runBatch verifies the helper and the directory, then runs a batch
// operation and prints its report. Per-module failures exit 1.
func (a *App) runBatch(ctx context.Context, verb string, op func(*lifecycle.Manager, context.Context) (lifecycle.Report, error)) error {
	s, err := a.open(ctx)
	if err != nil {
		return a.fail(err)
	}
	if err := s.requireHelper(ctx); err != nil {
		return a.fail(err)
	}
	if err := s.store.EnsureDirectory(); err != nil {
		return a.fail(bootstrap.DirectoryUnavailable(s.store.Dir(), err))
	}

	report, err := op(s.manager, ctx)
	if err != nil {
		return a.fail(err)
	}

	fmt.Fprintf(a.stdout, "%s %s: %s\n", TitleStyle.Render(verb), s.store.Dir(), report.String())
	for _, e := range report.Errors() {
		fmt.Fprintf(a.stdout, "  %s %v\n", ErrorStyle.Render("✗"), e)
	}
	if report.Failed > 0 {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("%s: %d of %d modules failed", verb, report.Failed, report.Attempted)}
	}
	return nil
}

// requireHelper probes the helper and converts a failure into the
// user-facing helper-unavailable error.
func (s *session) requireHelper(ctx context.Context) error {
	if _, err := s.client.Probe(ctx); err != nil {
		return bootstrap.HelperUnavailable(err)
	}
	return nil
}
