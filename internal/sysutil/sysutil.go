// Package sysutil holds process-level setup shared by the server binary and
// tests: global logger configuration.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a level name (case-insensitive, "warning" accepted) to a
// zerolog level. Unknown or empty names yield info.
func ParseLevel(lvl string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLogLevel sets the global zerolog level from a level name.
func SetLogLevel(lvl string) {
	zerolog.SetGlobalLevel(ParseLevel(lvl))
}

// LogOptions configures ConfigureLogging.
type LogOptions struct {
	Level  string
	Pretty bool      // human readable console output for development
	Out    io.Writer // nil means stderr
	Hooks  []zerolog.Hook
}

// ConfigureLogging replaces the global logger: RFC3339 timestamps in UTC,
// the given level and hooks, JSON unless Pretty.
func ConfigureLogging(opts LogOptions) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lg := zerolog.New(out).With().Timestamp().Logger()
	for _, h := range opts.Hooks {
		lg = lg.Hook(h)
	}
	log.Logger = lg
	SetLogLevel(opts.Level)
}
