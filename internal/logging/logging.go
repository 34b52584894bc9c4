// Package logging builds the diagnostic logger. The TUI owns the terminal,
// so logs normally go to a file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Options select where and how much to log.
type Options struct {
	// File is the log path. "-" means stderr, "" discards.
	File   string
	Level  string
	Format string
	Prefix string
}

// ParseLevel parses a level name. "off" disables logging.
func ParseLevel(s string) (level log.Level, off bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return log.InfoLevel, false, nil
	case "debug":
		return log.DebugLevel, false, nil
	case "warn", "warning":
		return log.WarnLevel, false, nil
	case "error":
		return log.ErrorLevel, false, nil
	case "off", "none":
		return log.InfoLevel, true, nil
	}
	return log.InfoLevel, false, fmt.Errorf("unknown log level %q", s)
}

// ParseFormatter parses a formatter name.
func ParseFormatter(s string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	}
	return log.TextFormatter, fmt.Errorf("unknown log format %q", s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger and the closer for its output.
func New(opt Options) (*log.Logger, io.Closer, error) {
	level, off, err := ParseLevel(opt.Level)
	if err != nil {
		return nil, nil, err
	}
	formatter, err := ParseFormatter(opt.Format)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer = io.Discard
		closer io.Closer = nopCloser{}
	)
	switch {
	case off || opt.File == "":
	case opt.File == "-":
		w = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(opt.File), 0o700); err != nil {
			return nil, nil, fmt.Errorf("mkdir: %w", err)
		}
		f, err := os.OpenFile(opt.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	prefix := opt.Prefix
	if prefix == "" {
		prefix = "todo"
	}
	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: w != os.Stderr,
		Prefix:          prefix,
	})
	return logger, closer, nil
}
