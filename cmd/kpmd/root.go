// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for kpmd.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/kpmd/kpmd/internal/issue"
	"github.com/kpmd/kpmd/internal/kpmmgr"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the kpmd command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kpmd",
		Short: "Kernel patch module lifecycle manager",
		Long: TitleStyle.Render("kpmd") + SubtitleStyle.Render(" - Kernel patch module lifecycle manager") + `

kpmd keeps a module directory and the set of loaded kernel patch
modules in step: dropping a .kpm file into the directory loads it,
deleting the file unloads it. In safe mode every module is unloaded
and deleted instead.

` + SubtitleStyle.Render("Examples:") + `
  kpmd run                  Watch the module directory until interrupted
  kpmd list                 List module files
  kpmd load hello.kpm       Load one module
  kpmd unload hello         Unload a module and delete its file
  kpmd config show          Show the effective configuration`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&app.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/kpmd/config.cue)")
	pf.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	pf.StringVar(&app.flags.moduleDir, "module-dir", "", "module directory (overrides module_dir)")
	pf.StringVar(&app.flags.helper, "helper", "", "kpmmgr helper path (overrides helper.path)")

	rootCmd.AddCommand(
		newRunCommand(app),
		newLoadCommand(app),
		newUnloadCommand(app),
		newLoadAllCommand(app),
		newPurgeCommand(app),
		newListCommand(app),
		newVersionCommand(app),
		newConfigCommand(app),
		newIssueCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the command tree and runs it. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// exitCodeFor maps a command error to the process exit status.
func exitCodeFor(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, kpmmgr.ErrHelperUnavailable):
		return ExitHelperUnavailable
	default:
		return ExitFailure
	}
}

// fail converts err into an ExitError whose message is the user-facing
// rendering of err.
func (a *App) fail(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{
		Code: exitCodeFor(err),
		Err:  &displayError{err: err, verbose: a.flags.verbose},
	}
}
