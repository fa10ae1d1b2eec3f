// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/kpmd/kpmd/internal/config"

	"github.com/spf13/cobra"
)

const (
	formatCUE  = "cue"
	formatTOML = "toml"
)

// newConfigCommand creates the `kpmd config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage kpmd configuration",
		Long: `Manage kpmd configuration.

Configuration is read from the --config file, else from config.cue in the
configuration directory ($XDG_CONFIG_HOME/kpmd, or ` + config.SystemConfigDir + `
when there is none), else from ./config.cue. KPMD_* environment variables
override file values, for example KPMD_MODULE_DIR or KPMD_HELPER_PATH.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}

			source := loaded.Path
			if source == "" {
				source = "(defaults)"
			}

			switch format {
			case formatCUE:
				fmt.Fprintf(app.stdout, "// source: %s\n", source)
				fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
			case formatTOML:
				out, err := config.GenerateTOML(loaded.Config)
				if err != nil {
					return app.fail(err)
				}
				fmt.Fprintf(app.stdout, "# source: %s\n", source)
				fmt.Fprint(app.stdout, out)
			default:
				return app.fail(fmt.Errorf("unknown format %q (valid: %s, %s)", format, formatCUE, formatTOML))
			}
			return nil
		},
	}
	showCmd.Flags().StringVar(&format, "format", formatCUE, "output format: cue or toml")

	cfgCmd.AddCommand(
		showCmd,
		&cobra.Command{
			Use:   "init",
			Short: "Create the default configuration file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, written, err := config.CreateDefaultConfig(app.configDir)
				if err != nil {
					return app.fail(err)
				}
				if !written {
					fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
					return nil
				}
				fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the configuration directory",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dir := app.configDir
				if dir == "" {
					dir = config.ConfigDir()
				}
				fmt.Fprintln(app.stdout, dir)
				return nil
			},
		},
	)
	return cfgCmd
}
