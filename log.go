package fabriq

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Development mode gets the console
// writer; anything else logs structured JSON.
func NewLogger(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = zerolog.New(os.Stderr)
	if cfg.DeployMode == "development" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return out.Level(level).With().Timestamp().Str("world", cfg.WorldID).Logger()
}
