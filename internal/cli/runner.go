package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/todosync/internal/listsync"
	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/tui"
	"github.com/idilsaglam/todosync/internal/ui"
)

func newLsCmd(app *App) *cobra.Command {
	var (
		plain  bool
		format string
		jq     string
	)
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List items (interactive on a terminal)",
		Args:  noArgs("todo ls"),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ui.ParseFormat(format)
			if err != nil {
				return usageErr(err.Error())
			}
			ctx := cmd.Context()
			s, err := app.openSync(ctx)
			if err != nil {
				return err
			}

			if f == ui.FormatText && jq == "" && !plain && ui.IsInteractive() {
				if err := tui.Run(ctx, s); err != nil {
					return fmt.Errorf("tui: %w", err)
				}
				return nil
			}

			if err := s.Load(ctx); err != nil {
				return err
			}
			items := s.Items()
			switch {
			case jq != "":
				return ui.Query(ctx, app.Out, items, jq)
			case f != ui.FormatText:
				return ui.WriteItems(app.Out, items, f)
			}
			ui.Panel(app.Out, ui.ListLines(items, app.Opt.Group))
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print the static list even on a terminal")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or yaml")
	cmd.Flags().StringVar(&jq, "jq", "", "Filter the JSON output with a jq expression")
	return cmd
}

func newAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title...>",
		Short: "Add a new item (title can be multiple words)",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageErr("usage: todo add <title...>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openSync(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Add(cmd.Context(), strings.Join(args, " ")); err != nil {
				return err
			}
			items := s.Items()
			it := items[len(items)-1]
			ui.OK(app.Out, fmt.Sprintf("added %q (id %s)", it.Name, it.ID))
			return nil
		},
	}
}

func newDoneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "done <index>",
		Short: "Toggle done for item at 1-based index",
		Args:  indexArg("done"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, it, err := app.pick(cmd, args[0])
			if err != nil {
				return err
			}
			if err := s.Toggle(ctx, it.ID, it.IsCompleted); err != nil {
				return err
			}
			verb := "completed"
			if now, ok := s.Find(it.ID); ok && !now.IsCompleted {
				verb = "reopened"
			}
			ui.OK(app.Out, fmt.Sprintf("%s %q", verb, it.Name))
			return nil
		},
	}
}

func newRmCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rm <index>",
		Short: "Remove item at 1-based index",
		Args:  indexArg("rm"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, it, err := app.pick(cmd, args[0])
			if err != nil {
				return err
			}
			if !yes && ui.IsInteractive() {
				ok, err := tui.Confirm(fmt.Sprintf("Delete %q?", it.Name))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(app.Out, ui.Dim("cancelled"))
					return nil
				}
			}
			if err := s.Remove(ctx, it.ID); err != nil {
				return err
			}
			ui.OK(app.Out, fmt.Sprintf("removed %q", it.Name))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// -------------- helpers ----------------

// pick loads the list and resolves a 1-based index to its item.
func (a *App) pick(cmd *cobra.Command, arg string) (*listsync.Synchronizer, model.Item, error) {
	n, _ := strconv.Atoi(arg)
	s, err := a.openSync(cmd.Context())
	if err != nil {
		return nil, model.Item{}, err
	}
	if err := s.Load(cmd.Context()); err != nil {
		return nil, model.Item{}, err
	}
	items := s.Items()
	if n < 1 || n > len(items) {
		return nil, model.Item{}, usageErr(
			fmt.Sprintf("index out of range: have %d, got %d", len(items), n),
			"Hint: run `todo ls` to see valid indexes",
		)
	}
	return s, items[n-1], nil
}

func indexArg(name string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return usageErr(fmt.Sprintf("usage: todo %s <index>", name))
		}
		if _, err := strconv.Atoi(args[0]); err != nil {
			return usageErr(fmt.Sprintf("%s: not a number: %s", name, args[0]))
		}
		return nil
	}
}

func noArgs(usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return usageErr("usage: " + usage)
		}
		return nil
	}
}
