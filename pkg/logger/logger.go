// Package logger provides opinionated logging for the spool system.
//
// New returns a *slog.Logger configured through functional options. The
// default handler is slog's text handler writing to stdout; WithJSON swaps
// in the JSON handler for service logs, and WithPretty swaps in the
// charmbracelet/log handler for colorized CLI output.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level   slog.Level
	pretty  bool
	json    bool
	source  bool
	writers []io.Writer
}

// New creates a *slog.Logger from the provided options.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:   slog.LevelInfo,
		writers: []io.Writer{os.Stdout},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var w io.Writer
	switch len(cfg.writers) {
	case 0:
		w = os.Stdout
	case 1:
		w = cfg.writers[0]
	default:
		w = io.MultiWriter(cfg.writers...)
	}

	return slog.New(newHandler(cfg, w))
}

// Nop returns a logger that discards everything. Intended for tests and for
// consumers that treat the logger as optional.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newHandler(cfg *config, w io.Writer) slog.Handler {
	if cfg.pretty {
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmLevel(cfg.level),
			ReportCaller:    cfg.source,
			ReportTimestamp: true,
		})
	}

	hopts := &slog.HandlerOptions{
		Level:     cfg.level,
		AddSource: cfg.source,
	}
	if cfg.json {
		return slog.NewJSONHandler(w, hopts)
	}
	return slog.NewTextHandler(w, hopts)
}

func charmLevel(level slog.Level) charmlog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmlog.DebugLevel
	case level <= slog.LevelInfo:
		return charmlog.InfoLevel
	case level <= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.ErrorLevel
	}
}
