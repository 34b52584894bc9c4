package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/todosync/internal/auth"
	"github.com/idilsaglam/todosync/internal/tui"
	"github.com/idilsaglam/todosync/internal/ui"
)

// stdin is swapped in tests.
var stdin io.Reader = os.Stdin

func newAuthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth <login|logout|status|whoami>",
		Short: "Manage backend credentials",
		Args: func(cmd *cobra.Command, args []string) error {
			return usageErr("usage: todo auth <login|logout|status|whoami>")
		},
		RunE: func(cmd *cobra.Command, args []string) error { return nil },
	}
	cmd.AddCommand(
		newAuthLoginCmd(app),
		newAuthLogoutCmd(app),
		newAuthStatusCmd(app),
		newAuthWhoAmICmd(app),
	)
	return cmd
}

// needsSecret rejects backends that have nothing to log in to.
func (a *App) needsSecret() error {
	if !auth.NeedsSecret(a.Config.Backend) {
		return usageErr(
			fmt.Sprintf("backend %q needs no credentials", a.Config.Backend),
			"Pick one with --backend supabase|azure|redis",
		)
	}
	return nil
}

func newAuthLoginCmd(app *App) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the secret for the active backend",
		Args:  noArgs("todo auth login"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.needsSecret(); err != nil {
				return err
			}
			backend := app.Config.Backend
			value := token
			if value == "" {
				v, err := readSecret(backend)
				if err != nil {
					return fmt.Errorf("read secret: %w", err)
				}
				value = v
			}
			if err := app.Secrets.Set(backend, value, nil); err != nil {
				return fmt.Errorf("save secret: %w", err)
			}
			where := "keyring"
			if !app.Secrets.UsingKeyring() {
				where = app.Secrets.Path()
			}
			ui.OK(app.Out, fmt.Sprintf("logged in to %s (stored in %s)", backend, where))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Secret value (prompted for when omitted)")
	return cmd
}

// readSecret prompts on a terminal and reads one line otherwise.
func readSecret(backend string) (string, error) {
	if ui.IsInteractive() {
		return tui.Secret(promptTitle(backend), "Input is hidden. Env var "+auth.EnvName(backend)+" overrides it.")
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("empty secret")
	}
	return line, nil
}

func promptTitle(backend string) string {
	switch backend {
	case "supabase":
		return "Supabase API key"
	case "azure":
		return "Azure Storage connection string"
	case "redis":
		return "Redis password"
	}
	return "Secret"
}

func newAuthLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored secret for the active backend",
		Args:  noArgs("todo auth logout"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.needsSecret(); err != nil {
				return err
			}
			sec, err := app.Secrets.Get(app.Config.Backend)
			if err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			if sec != nil && sec.Source == auth.SourceEnv {
				ui.OK(app.Out, "secret is provided by the environment (nothing to delete)")
				return nil
			}
			if err := app.Secrets.Delete(app.Config.Backend); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			ui.OK(app.Out, "logged out")
			return nil
		},
	}
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the active backend's secret comes from",
		Args:  noArgs("todo auth status"),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := app.Config.Backend
			out := app.Out
			fmt.Fprintf(out, "backend: %s\n", backend)
			if !auth.NeedsSecret(backend) {
				fmt.Fprintln(out, ui.Dim("no credentials needed"))
				return nil
			}
			sec, err := app.Secrets.Get(backend)
			if err != nil {
				return err
			}
			if sec == nil {
				fmt.Fprintln(out, ui.Dim("not logged in"))
				fmt.Fprintln(out, "Run: todo auth login")
				return nil
			}
			fmt.Fprintf(out, "source: %s\n", sec.Source)
			if sec.ExpiresAt != nil {
				fmt.Fprintf(out, "expires: %s\n", sec.ExpiresAt.UTC().Format(time.RFC3339))
			} else {
				fmt.Fprintln(out, "expires: (unknown)")
			}
			fmt.Fprintf(out, "env override: %s, %s\n", auth.EnvName(backend), auth.GenericEnv)
			return nil
		},
	}
}

// whoami decodes a JWT key locally (unverified); opaque secrets print basic info.
func newAuthWhoAmICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Decode the active backend's key",
		Args:  noArgs("todo auth whoami"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.needsSecret(); err != nil {
				return err
			}
			sec, err := app.Secrets.Get(app.Config.Backend)
			if err != nil {
				return err
			}
			if sec == nil {
				return usageErr("not logged in", "Run: todo auth login")
			}
			out := app.Out
			c, err := auth.ParseClaims(sec.Value)
			if err != nil {
				fmt.Fprintln(out, "Opaque token (cannot introspect locally).")
				fmt.Fprintln(out, "source:", sec.Source)
				return nil
			}
			printClaim := func(k, v string) {
				if v != "" {
					fmt.Fprintf(out, "%-8s %s\n", k+":", v)
				}
			}
			printClaim("issuer", c.Issuer)
			printClaim("role", c.Role)
			printClaim("project", c.Ref)
			if c.IssuedAt != nil {
				printClaim("issued", c.IssuedAt.Format(time.RFC3339))
			}
			if c.ExpiresAt != nil {
				exp := c.ExpiresAt.Format(time.RFC3339)
				if c.Expired(time.Now()) {
					exp += " " + ui.C(ui.Current().Error, "(expired)")
				}
				printClaim("expires", exp)
			}
			printClaim("source", sec.Source)
			return nil
		},
	}
}
