package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger builds the process logger described by the config.
func (c Config) Logger() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if c.LogFormat != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(out).Level(c.LogLevel).With().Timestamp().Logger()
}
