// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/kpmd/kpmd/internal/issue"

	"github.com/spf13/cobra"
)

// newIssueCommand creates the `kpmd issue` command.
func newIssueCommand(app *App) *cobra.Command {
	var style string

	issueCmd := &cobra.Command{
		Use:       "issue [name]",
		Short:     "Show a troubleshooting page",
		Long:      "Show a troubleshooting page. Without a name, list the available pages.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: issue.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(app.stdout, TitleStyle.Render("Troubleshooting pages"))
				for _, name := range issue.Names() {
					fmt.Fprintf(app.stdout, "  %s\n", CmdStyle.Render(name))
				}
				return nil
			}

			page, ok := issue.Lookup(args[0])
			if !ok {
				return app.fail(fmt.Errorf("unknown issue %q (available: %s)", args[0], strings.Join(issue.Names(), ", ")))
			}
			rendered, err := page.Render(style)
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&style, "style", "dark", "glamour style name or path")
	return issueCmd
}
