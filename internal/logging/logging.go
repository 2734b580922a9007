// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const EnvLogLevel = "BOXSCAN_LOG_LEVEL"

// Options selects log level and sinks.
type Options struct {
	Level   string
	File    string    // rotating log file; empty disables it
	Console io.Writer // defaults to os.Stderr
	NoColor bool
}

// New builds a logger writing to the console and, when opts.File is set,
// to a rotating file. The level in EnvLogLevel wins over opts.Level.
func New(app string, opts Options) zerolog.Logger {
	out := opts.Console
	if out == nil {
		out = os.Stderr
	}
	var w io.Writer = zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}
	if opts.File != "" {
		w = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    5,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}

	level := zerolog.InfoLevel
	if lvl, ok := ParseLevel(opts.Level); ok {
		level = lvl
	}
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("app", app).Logger()
}

// Init builds a logger with New and installs it as the global log.Logger.
func Init(app string, opts Options) zerolog.Logger {
	logger := New(app, opts)
	log.Logger = logger
	return logger
}

// ParseLevel maps a level name to a zerolog level. It reports false for
// empty or unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
