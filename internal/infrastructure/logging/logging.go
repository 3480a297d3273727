// Package logging configures the process-wide zerolog logger used by every
// component in the hypothesis tree engine.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog's global logger and returns it. level is one of
// "debug", "info", "warn", "error" (case-insensitive, default "info").
// format "console" renders human-readable output; anything else (including
// the empty string) keeps zerolog's default structured JSON.
func Setup(level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out zerolog.Logger
	if strings.EqualFold(format, "console") {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		out = zerolog.New(os.Stdout)
	}
	out = out.With().Timestamp().Logger().Level(parseLevel(level))
	zerolog.DefaultContextLogger = &out
	log.Logger = out
	return out
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
