package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger returns the logger used across bundleserve. Output is JSON by
// default; set BUNDLESERVE_LOG_PRETTY to get a human-readable console writer.
func NewLogger() *zerolog.Logger {
	var logger zerolog.Logger
	if os.Getenv("BUNDLESERVE_LOG_PRETTY") != "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Keep the package-level zerolog logger in sync so code using
	// rs/zerolog/log gets the same output.
	log.Logger = logger
	return &logger
}

// SetLevel applies a configured level string to the global logger.
// Unrecognized levels fall back to info.
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
