// Package log provides a structured logging interface for tree growing and prediction.
//
// The interface is slog-compatible so callers can plug any backend; the default
// provider is backed by zerolog (see zerolog.go). Library code obtains a named
// logger and attaches the attribute keys from attributes.go:
//
//	logger := log.GetLoggerWithName("mob.builder").With(
//	    log.RunIDKey, runID,
//	)
//	logger.Info("node split",
//	    log.NodeIDKey, 1,
//	    log.VariableKey, "age",
//	    log.PValueKey, 1e-7,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are passed as alternating key/value pairs. With returns a child
// logger carrying the given fields on every record.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it is
	// attached under the "error" key together with its stack trace.
	//
	//	logger.Error("growth aborted", err, log.NodeIDKey, 4)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	// Use it to skip building expensive fields:
	//
	//	if logger.Enabled(ctx, log.LevelDebug) {
	//	    logger.Debug("candidate objectives", "values", objectives)
	//	}
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger
	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger
	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
