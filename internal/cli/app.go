package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/todosync/internal/auth"
	"github.com/idilsaglam/todosync/internal/config"
	"github.com/idilsaglam/todosync/internal/listsync"
	"github.com/idilsaglam/todosync/internal/logging"
	"github.com/idilsaglam/todosync/internal/store"
	"github.com/idilsaglam/todosync/internal/store/aztable"
	"github.com/idilsaglam/todosync/internal/store/jsonstore"
	"github.com/idilsaglam/todosync/internal/store/postgrest"
	"github.com/idilsaglam/todosync/internal/store/redisstore"
	"github.com/idilsaglam/todosync/internal/store/sqlitestore"
	"github.com/idilsaglam/todosync/internal/ui"
)

// Options tune output behavior from root flags.
type Options struct {
	Group      bool // list grouped by pending/done
	Theme      string
	NoColor    bool
	Backend    string
	ConfigFile string
	LogFile    string
	LogLevel   string
}

// App carries what every subcommand needs once the root has run.
type App struct {
	Opt     Options
	Config  *config.Config
	Log     *log.Logger
	Secrets *auth.Store
	Out     io.Writer
	Err     io.Writer

	closers []io.Closer
}

func newApp(out, errw io.Writer) *App {
	return &App{Out: out, Err: errw}
}

// setup loads config and builds the logger and secret store.
func (a *App) setup() error {
	cfg, err := config.Load(config.FlagOverrides{
		ConfigFile: a.Opt.ConfigFile,
		Backend:    a.Opt.Backend,
		Theme:      a.Opt.Theme,
		LogFile:    a.Opt.LogFile,
		LogLevel:   a.Opt.LogLevel,
	})
	if err != nil {
		return usageErr(err.Error())
	}
	a.Config = cfg

	ui.SetColorForcing(false, a.Opt.NoColor)
	ui.SetTheme(cfg.Theme)

	logger, closer, err := logging.New(logging.Options{
		File:   cfg.LogFile,
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}
	a.Log = logger
	a.closers = append(a.closers, closer)

	dir, err := config.StateDir()
	if err != nil {
		return err
	}
	a.Secrets = auth.NewStore(dir)
	return nil
}

// Close releases everything opened during the command, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// backendStore is what every backend package returns.
type backendStore interface {
	store.Store
	io.Closer
}

// openStore connects to the configured backend.
func (a *App) openStore(ctx context.Context) (store.Store, error) {
	st, err := a.dialBackend(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st)
	a.Log.Debug("store opened", "backend", a.Config.Backend, "table", a.Config.Table)
	return st, nil
}

func (a *App) dialBackend(ctx context.Context) (backendStore, error) {
	cfg := a.Config
	switch cfg.Backend {
	case config.BackendFile:
		path := cfg.File.Path
		if path == "" {
			p, err := jsonstore.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return jsonstore.New(path), nil

	case config.BackendSQLite:
		st, err := sqlitestore.Open(ctx, cfg.SQLite.Path, cfg.Table)
		if err != nil {
			return nil, err
		}
		return st, nil

	case config.BackendRedis:
		password, err := a.secret(false)
		if err != nil {
			return nil, err
		}
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = cfg.Table
		}
		st, err := redisstore.Dial(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: password,
			DB:       cfg.Redis.DB,
			Prefix:   prefix,
		})
		if err != nil {
			return nil, err
		}
		return st, nil

	case config.BackendAzure:
		conn, err := a.secret(true)
		if err != nil {
			return nil, err
		}
		st, err := aztable.New(conn, cfg.Table, cfg.Azure.Partition)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureTable(ctx); err != nil {
			return nil, err
		}
		return st, nil

	case config.BackendSupabase:
		if cfg.Supabase.URL == "" {
			return nil, usageErr("supabase.url is not set",
				"Set it in config.toml or TADA_SUPABASE_URL")
		}
		key, err := a.secret(true)
		if err != nil {
			return nil, err
		}
		st, err := postgrest.New(cfg.Supabase.URL, key, cfg.Table)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, usageErr(fmt.Sprintf("unknown backend %q", cfg.Backend))
}

// secret returns the stored credential for the active backend.
func (a *App) secret(required bool) (string, error) {
	sec, err := a.Secrets.Get(a.Config.Backend)
	if err != nil {
		return "", err
	}
	if sec == nil || sec.Value == "" {
		if required {
			return "", usageErr(
				fmt.Sprintf("no credentials for %s", a.Config.Backend),
				fmt.Sprintf("Set %s or run `todo auth login`", auth.EnvName(a.Config.Backend)),
			)
		}
		return "", nil
	}
	return sec.Value, nil
}

// openSync wires a synchronizer to the configured backend.
func (a *App) openSync(ctx context.Context) (*listsync.Synchronizer, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return listsync.New(st, a.Log), nil
}
