// Package logging builds the logrus loggers shared by the CLI and the core
// packages.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config controls logger construction.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// New constructs a logger from cfg. Empty fields fall back to info level,
// text format and stderr.
func New(cfg Config) (*logrus.Logger, error) {
	logger := logrus.New()

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	level := logrus.InfoLevel
	if value := strings.TrimSpace(cfg.Level); value != "" {
		parsed, err := logrus.ParseLevel(value)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: !IsTerminal(out),
		})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q (want %s or %s)", cfg.Format, FormatText, FormatJSON)
	}

	return logger, nil
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Component returns an entry tagged with the component name.
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("component", name)
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
