package util

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// SetCliLoggerDefaults routes console logging to stderr. Stdout is
// reserved for manifest JSON and tables so the output stays pipeable.
func SetCliLoggerDefaults() {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z"
	log.Logger = log.Logger.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    false,
		TimeFormat: time.RFC3339,
	}).With().Logger()
}

// SetCliLogLevel maps the verbosity flags to a global zerolog level.
func SetCliLogLevel(c *cli.Command) {
	switch {
	case c.Bool("very-verbose"):
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case c.Bool("verbose"):
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
