// Package logging builds the zerolog logger shared by the CLI and server.
package logging

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// New constructs a logger writing to w. Format is "json", "console" or
// "auto"; auto picks console output when w is a terminal.
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Logger{}, err
		}
		lvl = parsed
	}

	var out io.Writer
	switch strings.ToLower(format) {
	case "json":
		out = w
	case "console":
		out = consoleWriter(w)
	case "", "auto":
		if isTerminal(w) {
			out = consoleWriter(w)
		} else {
			out = w
		}
	default:
		return zerolog.Logger{}, errors.New("unsupported log format")
	}

	return zerolog.New(out).With().Timestamp().Logger().Level(lvl), nil
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(w),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && IsTerminal(f)
}
