// Package logging configures the global zerolog logger for the shop admin
// client and CLI.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrUnknownLevel is returned by ParseLevel for unrecognised level names.
var ErrUnknownLevel = errors.New("unknown log level")

// LogLevel is a textual log level as found in config files and env.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written.
	Level LogLevel `yaml:"level"`

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool `yaml:"pretty"`

	// Output defaults to os.Stderr.
	Output io.Writer `yaml:"-"`
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup installs a logger built from cfg as the global zerolog logger and
// returns it. An unknown level falls back to info.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	if err != nil {
		logger.Warn().Str("level", string(cfg.Level)).Msg("Unknown log level, using info")
	}
	return logger
}

// ParseLevel converts a level name into a zerolog level. The empty string
// means info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// NewLogger returns the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Level guidelines:
//
// Debug: cache hits and revalidations, page fetch sequence numbers,
// skipped mutations.
//
// Info: committed loads, income seeding, committed mutations, server
// start and stop.
//
// Warn: retries, throttling, discarded stale responses, rolled back
// mutations, cache errors that fall back to a plain request.
//
// Error: requests failed after retries, rate limit blocks, failed loads.
//
// Common fields: component, endpoint, order_id, product_id, error_class,
// attempt, seq, request_id.
