package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. Development gets a human console writer at
// debug level; production logs structured JSON at info.
func New(environment string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if environment == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	return zerolog.New(out).With().
		Timestamp().
		Str("service", "playtube-api").
		Str("env", environment).
		Logger()
}
