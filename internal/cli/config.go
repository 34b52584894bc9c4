package cli

import "github.com/spf13/cobra"

func newConfigCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration and where each value came from",
		Args:  noArgs("todo config"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Config.Write(app.Out)
		},
	}
}
