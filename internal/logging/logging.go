// Package logging configures the zerolog logger shared by the backtest
// core and the cmd/backtest CLI, replacing the teacher's plain "log"
// calls with structured, leveled logging.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a console-formatted logger at the given level. Passing an
// empty level string defaults to "info".
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return newWithWriter(os.Stdout, lvl)
}

// Nop returns a logger that discards everything, used as the zero-value
// default for components constructed without an explicit logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func newWithWriter(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	return zerolog.New(console).Level(lvl).With().Timestamp().Logger()
}
