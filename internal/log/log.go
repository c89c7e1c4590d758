package log

import (
	"log/slog"
	"sync/atomic"
)

// current holds the logger used by the package level functions.  Nil until SetDefaultLogger is called, in which case
// every call is dropped; tests and `kiri env` run that way.
var current atomic.Pointer[Logger]

// SetDefaultLogger sets the logger used by the package level functions
func SetDefaultLogger(logger *Logger) {
	current.Store(logger)
}

// DefaultLogger returns the current default logger, nil when none is set
func DefaultLogger() *Logger {
	return current.Load()
}

// Debug logs at debug level using the default logger.
func Debug(msg string, args ...any) {
	if l := current.Load(); l != nil {
		l.Debug(msg, args...)
	}
}

// Info logs at info level using the default logger.
func Info(msg string, args ...any) {
	if l := current.Load(); l != nil {
		l.Info(msg, args...)
	}
}

// Warn logs at warn level using the default logger.
func Warn(msg string, args ...any) {
	if l := current.Load(); l != nil {
		l.Warn(msg, args...)
	}
}

// Error logs at error level using the default logger.
func Error(msg string, args ...any) {
	if l := current.Load(); l != nil {
		l.Error(msg, args...)
	}
}

// Trace logs at debug level with a TRACE prefix, only when the configured level is trace.
func Trace(msg string, args ...any) {
	if l := current.Load(); l != nil && l.traceEnabled {
		l.Debug("TRACE: "+msg, args...)
	}
}

// Slog returns the default logger as a *slog.Logger, or a discarding logger when none has been configured.
func Slog() *slog.Logger {
	if l := current.Load(); l != nil {
		return l.Slog()
	}
	return NewDiscard().Slog()
}
