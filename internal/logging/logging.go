// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/relay-lights/internal/config"
)

// Setup sets the global level and output format from cfg. Output goes to
// stderr.
func Setup(cfg config.LoggingConfig) error {
	return setup(cfg, os.Stderr)
}

func setup(cfg config.LoggingConfig, w io.Writer) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	switch cfg.Format {
	case "", "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}
