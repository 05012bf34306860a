// Package logging builds the slog logger used by the claudelite command:
// colored output through tint on a terminal, JSON otherwise.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/randalmurphal/claudelite/claude/session"
)

// Level is the level of every logger built by New. It can be changed at
// runtime.
var Level = new(slog.LevelVar) // default: INFO

// New returns a logger writing to w. A terminal gets tint output, anything
// else JSON. debug, or CLAUDE_SDK_DEBUG in the environment, lowers Level to
// debug.
func New(w io.Writer, debug bool) *slog.Logger {
	if debug || envDebug() {
		Level.Set(slog.LevelDebug)
	}
	return slog.New(newHandler(w, isTerminal(w)))
}

// Setup installs New(os.Stderr, debug) as the default logger.
func Setup(debug bool) *slog.Logger {
	l := New(os.Stderr, debug)
	slog.SetDefault(l)
	return l
}

func newHandler(w io.Writer, tty bool) slog.Handler {
	if tty {
		return tint.NewHandler(w, &tint.Options{
			Level:      Level,
			TimeFormat: time.TimeOnly,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: Level})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func envDebug() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(session.DebugEnv))) {
	case "1", "true":
		return true
	}
	return false
}

// ParseLevel converts "debug", "info", "warn" or "error", in any case, to a
// slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.ToUpper(s)))
	return l, err
}
