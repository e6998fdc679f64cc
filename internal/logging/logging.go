// Package logging builds the process logger
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/kass/go-aqi-viz/internal/config"
)

// New returns a logger writing to stdout
func New(cfg *config.Config, version, app string) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg, version, app)
}

// NewWithWriter picks a colored text handler for terminals (or log.format: text)
// and JSON otherwise.
func NewWithWriter(w io.Writer, cfg *config.Config, version, app string) *slog.Logger {
	level := cfg.Log.SlogLevel()

	if useText(w, cfg.Log.Format) {
		h := tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  level == slog.LevelDebug,
			TimeFormat: time.Kitchen,
			NoColor:    !IsTerminal(w),
		})
		return slog.New(h).With("app", app)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With(
		"app", app,
		"version", version,
		"env", cfg.AppEnv,
	)
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func useText(w io.Writer, format string) bool {
	switch format {
	case "text":
		return true
	case "json":
		return false
	}
	return IsTerminal(w)
}
