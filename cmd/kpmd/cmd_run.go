// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/kpmd/kpmd/internal/bootstrap"
	"github.com/kpmd/kpmd/internal/config"
	"github.com/kpmd/kpmd/internal/safemode"

	"github.com/spf13/cobra"
)

// newRunCommand creates the `kpmd run` command.
func newRunCommand(app *App) *cobra.Command {
	var (
		bulkLoad bool
		safeMode string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Verify the helper, then watch the module directory",
		Long: `Run the startup sequence: verify the kpmmgr helper, create the module
directory, then either purge every module (safe mode) or load and unload
modules as files appear and disappear. Blocks until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return app.fail(err)
			}

			if cmd.Flags().Changed("bulk-load") {
				s.cfg.BulkLoadOnStart = bulkLoad
			}
			if safeMode != "" {
				setting := config.SafeModeSetting(safeMode)
				if ok, errs := setting.IsValid(); !ok {
					return app.fail(errs[0])
				}
				s.cfg.SafeMode.Mode = setting
			}

			seq := bootstrap.New(bootstrap.Config{
				Helper:          s.client,
				Store:           s.store,
				Lifecycle:       s.manager,
				SafeMode:        safemode.FromConfig(s.cfg.SafeMode, s.logger),
				BulkLoadOnStart: s.cfg.BulkLoadOnStart,
				Ignore:          s.cfg.Watch.Ignore,
				Logger:          s.logger,
				Metrics:         s.metrics,
			})
			return app.fail(seq.Run(cmd.Context()))
		},
	}

	runCmd.Flags().BoolVar(&bulkLoad, "bulk-load", false, "load every module file present before watching (overrides bulk_load_on_start)")
	runCmd.Flags().StringVar(&safeMode, "safe-mode", "", "safe mode setting: auto, on or off (overrides safe_mode.mode)")
	return runCmd
}
