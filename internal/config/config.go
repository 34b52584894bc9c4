// Package config handles configuration loading and defaults.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Source represents where a configuration value came from.
type Source string

const (
	SourceDefault  Source = "default"
	SourceUserFile Source = "user file"
	SourceProjFile Source = "project file"
	SourceEnv      Source = "environment"
	SourceFlag     Source = "flag"
)

// Backend names.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendAzure    = "azure"
	BackendSupabase = "supabase"
)

// Backends lists the accepted backend names.
var Backends = []string{BackendFile, BackendSQLite, BackendRedis, BackendAzure, BackendSupabase}

// Default values.
const (
	DefaultBackend   = BackendFile
	DefaultTable     = "TodoList"
	DefaultTheme     = "classic"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultRedisAddr = "localhost:6379"

	projectFileName = ".tada.toml"
	userFileName    = "config.toml"
)

// Config holds the full configuration. Secrets are not part of it; they
// live in the credential store.
type Config struct {
	Backend string `toml:"backend"`
	Table   string `toml:"table"`
	Theme   string `toml:"theme"`

	LogFile   string `toml:"log_file"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Supabase SupabaseConfig `toml:"supabase"`
	Azure    AzureConfig    `toml:"azure"`
	Redis    RedisConfig    `toml:"redis"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	File     FileConfig     `toml:"file"`

	// Sources maps dotted keys to where their value came from.
	Sources map[string]Source `toml:"-"`
}

type SupabaseConfig struct {
	URL string `toml:"url"`
}

type AzureConfig struct {
	Partition string `toml:"partition"`
}

type RedisConfig struct {
	Addr   string `toml:"addr"`
	DB     int    `toml:"db"`
	Prefix string `toml:"prefix"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

type FileConfig struct {
	// Path of the JSON table; empty means todos.json in the working dir.
	Path string `toml:"path"`
}

// FlagOverrides holds command-line flag values. Empty fields are unset.
type FlagOverrides struct {
	ConfigFile string
	Backend    string
	Theme      string
	LogFile    string
	LogLevel   string
}

// StateDir is where credentials, logs and the local database live:
// $TADA_HOME, else ~/.tada.
func StateDir() (string, error) {
	if v := os.Getenv("TADA_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".tada"), nil
}

// Default returns the configuration before any file, env or flag.
func Default() *Config {
	cfg := &Config{
		Backend:   DefaultBackend,
		Table:     DefaultTable,
		Theme:     DefaultTheme,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Redis:     RedisConfig{Addr: DefaultRedisAddr},
		Sources:   map[string]Source{},
	}
	if dir, err := StateDir(); err == nil {
		cfg.LogFile = filepath.Join(dir, "todo.log")
		cfg.SQLite.Path = filepath.Join(dir, "todos.sqlite3")
	}
	for _, k := range keys() {
		cfg.Sources[k] = SourceDefault
	}
	return cfg
}

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file ($XDG_CONFIG_HOME/tada/config.toml)
// 3. Project config file (.tada.toml in the current directory), or the
//    file named by --config instead of both
// 4. Environment variables (TADA_*)
// 5. CLI flags
func Load(flags FlagOverrides) (*Config, error) {
	cfg := Default()

	if flags.ConfigFile != "" {
		if err := loadFile(cfg, flags.ConfigFile, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", flags.ConfigFile, err)
		}
	} else {
		if p := findUserConfigFile(); p != "" {
			if err := loadFile(cfg, p, SourceUserFile); err != nil {
				return nil, fmt.Errorf("loading user config file %s: %w", p, err)
			}
		}
		if p := findProjectConfigFile(); p != "" {
			if err := loadFile(cfg, p, SourceProjFile); err != nil {
				return nil, fmt.Errorf("loading project config file %s: %w", p, err)
			}
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}
	applyFlags(cfg, flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have a fixed set of choices.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	for _, b := range Backends {
		if c.Backend == b {
			return nil
		}
	}
	return fmt.Errorf("unknown backend %q (want one of %s)", c.Backend, strings.Join(Backends, ", "))
}

func loadFile(cfg *Config, path string, source Source) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	for _, k := range md.Keys() {
		if _, known := cfg.Sources[k.String()]; known {
			cfg.Sources[k.String()] = source
		}
	}
	return nil
}

type envVar struct {
	name string
	key  string
	set  func(c *Config, v string) error
}

func str(dst func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

var envVars = []envVar{
	{"TADA_BACKEND", "backend", str(func(c *Config) *string { return &c.Backend })},
	{"TADA_TABLE", "table", str(func(c *Config) *string { return &c.Table })},
	{"TADA_THEME", "theme", str(func(c *Config) *string { return &c.Theme })},
	{"TADA_LOG_FILE", "log_file", str(func(c *Config) *string { return &c.LogFile })},
	{"TADA_LOG_LEVEL", "log_level", str(func(c *Config) *string { return &c.LogLevel })},
	{"TADA_LOG_FORMAT", "log_format", str(func(c *Config) *string { return &c.LogFormat })},
	{"TADA_SUPABASE_URL", "supabase.url", str(func(c *Config) *string { return &c.Supabase.URL })},
	{"TADA_AZURE_PARTITION", "azure.partition", str(func(c *Config) *string { return &c.Azure.Partition })},
	{"TADA_REDIS_ADDR", "redis.addr", str(func(c *Config) *string { return &c.Redis.Addr })},
	{"TADA_REDIS_PREFIX", "redis.prefix", str(func(c *Config) *string { return &c.Redis.Prefix })},
	{"TADA_REDIS_DB", "redis.db", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TADA_REDIS_DB: %w", err)
		}
		c.Redis.DB = n
		return nil
	}},
	{"TADA_SQLITE_PATH", "sqlite.path", str(func(c *Config) *string { return &c.SQLite.Path })},
	{"TADA_FILE_PATH", "file.path", str(func(c *Config) *string { return &c.File.Path })},
}

func loadFromEnv(cfg *Config) error {
	for _, ev := range envVars {
		v, ok := os.LookupEnv(ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(cfg, v); err != nil {
			return err
		}
		cfg.Sources[ev.key] = SourceEnv
	}
	return nil
}

func applyFlags(cfg *Config, f FlagOverrides) {
	set := func(dst *string, v, key string) {
		if v == "" {
			return
		}
		*dst = v
		cfg.Sources[key] = SourceFlag
	}
	set(&cfg.Backend, f.Backend, "backend")
	set(&cfg.Theme, f.Theme, "theme")
	set(&cfg.LogFile, f.LogFile, "log_file")
	set(&cfg.LogLevel, f.LogLevel, "log_level")
}

// keys returns every configurable key in a stable order.
func keys() []string {
	out := make([]string, 0, len(envVars))
	for _, ev := range envVars {
		out = append(out, ev.key)
	}
	return out
}

// Write prints the resolved configuration as TOML, followed by where each
// value came from.
func (c *Config) Write(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return err
	}
	ks := make([]string, 0, len(c.Sources))
	for k := range c.Sources {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	fmt.Fprintln(w)
	for _, k := range ks {
		fmt.Fprintf(w, "# %-16s %s\n", k, c.Sources[k])
	}
	return nil
}

func findProjectConfigFile() string {
	if _, err := os.Stat(projectFileName); err == nil {
		return projectFileName
	}
	return ""
}

func findUserConfigFile() string {
	dir := osUserConfigDir()
	if dir == "" {
		return ""
	}
	p := filepath.Join(dir, "tada", userFileName)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// osUserConfigDir returns the OS-specific user config directory.
func osUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	switch runtime.GOOS {
	case "windows":
		return os.Getenv("APPDATA")
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support")
		}
	default:
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config")
		}
	}
	return ""
}
