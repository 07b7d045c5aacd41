// Package logger builds the process-wide zerolog root logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the log level and output format.
type Config struct {
	Level  string // zerolog level name; anything unknown falls back to info
	Pretty bool   // human-readable console output instead of JSON
}

// New returns the root logger. Components derive their own loggers from
// it via With().Str("component", ...).
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// SetGlobalLogger routes zerolog's package-level log calls through l.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
