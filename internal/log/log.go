// Package log provides structured logging for the engine, wrapping
// zerolog the way the ambient stack it is modeled on does: a global
// logger, component sub-loggers, and a JSON/console output toggle.
//
// Logging is limited to the WAL writer, database open and recovery, the
// transaction manager's idle-reader and long-write warnings, and catalog
// ID allocation (debug level). The hot read path never logs.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured by Init.
var Logger zerolog.Logger

// Level names accepted by Config.Level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls global logger construction.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

func init() {
	// A sane default so packages that log before Init (tests, early
	// startup) don't panic on a zero-value Logger.
	Init(Config{Level: InfoLevel, JSONOutput: false, Output: io.Discard})
}

// Init (re)configures the global Logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the owning subsystem, e.g.
// log.Component("wal"), log.Component("txn"), log.Component("engine").
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
