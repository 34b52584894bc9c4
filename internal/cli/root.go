// Package cli wires the todo command line: a cobra root with the item,
// auth and config subcommands.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

const longHelp = `todo - a tiny CLI for a hosted todo table

Examples:
  todo add "Buy milk"
  todo ls
  todo done 2
  todo rm 3
  todo auth login --backend supabase`

// NewRootCmd creates the root command writing to out and errw.
func NewRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "todo",
		Short:         "A tiny todo list backed by a hosted table",
		Long:          longHelp,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErr("unknown subcommand: "+args[0], "Run `todo --help` for usage")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelpShown
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return app.setup()
		},
	}
	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErr(err.Error())
	})

	pf := cmd.PersistentFlags()
	pf.BoolVar(&app.Opt.Group, "group", false, "Group output by pending/done")
	pf.StringVar(&app.Opt.Theme, "theme", "", "Color theme: classic, neon or mono")
	pf.BoolVar(&app.Opt.NoColor, "no-color", false, "Disable ANSI colors")
	pf.StringVar(&app.Opt.Backend, "backend", "", "Store backend: file, sqlite, redis, azure or supabase")
	pf.StringVar(&app.Opt.ConfigFile, "config", "", "Config file (skips the user and project files)")
	pf.StringVar(&app.Opt.LogFile, "log-file", "", "Log file, - for stderr")
	pf.StringVar(&app.Opt.LogLevel, "log-level", "", "Log level: debug, info, warn, error or off")

	cmd.AddCommand(
		newLsCmd(app),
		newAddCmd(app),
		newDoneCmd(app),
		newRmCmd(app),
		newAuthCmd(app),
		newConfigCmd(app),
	)
	return cmd
}

// Run executes args and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, out, errw io.Writer) int {
	app := newApp(out, errw)
	root := NewRootCmd(app)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := app.Close(); err == nil && cerr != nil {
		err = cerr
	}
	report(errw, err)
	return exitCode(err)
}
