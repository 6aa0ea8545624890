// Package log provides the process-wide structured logger for ipfreq.
// It wraps go.uber.org/zap and writes diagnostics to stderr so that the
// resolution lines and the final summary on stdout stay clean.
//
// Per-domain failures are logged at debug level only. They stay hidden
// unless the caller turns on verbose mode (or LOG_LEVEL=debug is set).
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// level is shared with the built logger so verbosity can change after init.
var level = zap.NewAtomicLevelAt(zap.InfoLevel)

// Logger is the global logger instance.
var Logger = newLogger()

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level

	if os.Getenv("LOG_LEVEL") == "debug" {
		level.SetLevel(zap.DebugLevel)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true

	l, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// SetVerbose switches diagnostic (debug) output on or off.
func SetVerbose(on bool) {
	if on {
		level.SetLevel(zap.DebugLevel)
		return
	}
	level.SetLevel(zap.InfoLevel)
}

// Level returns the level shared by Logger, for callers that build their
// own core and want it to honour SetVerbose.
func Level() zap.AtomicLevel { return level }

// Sync flushes any buffered log entries.
func Sync() { _ = Logger.Sync() }

// Warnf logs a formatted message at warn level.
func Warnf(format string, a ...any) { Logger.Warnf(format, a...) }

// Debug logs a message at debug level with optional key-value pairs.
func Debug(msg string, kv ...any) { Logger.Debugw(msg, kv...) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, a ...any) { Logger.Debugf(format, a...) }
