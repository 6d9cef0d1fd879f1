package utils

import (
	"io"
	"os"

	"github.com/kairos-io/diskplan/internal/constants"
	"github.com/rs/zerolog"
)

// Log is the shared logger. It discards everything until SetLogger is called.
var Log = zerolog.Nop()

// SetLogger logs to stderr so the rendered script can go to stdout.
func SetLogger(debug bool) {
	SetLoggerWithOutput(debug, os.Stderr)
}

func SetLoggerWithOutput(debug bool, out io.Writer) {
	level := zerolog.InfoLevel
	if debug || os.Getenv(constants.EnvPrefix+"DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	Log = zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: true}).Level(level).With().Timestamp().Logger()
}
