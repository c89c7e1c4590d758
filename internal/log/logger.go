package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps slog with Kiri's rotating log file and the pseudo trace level.
type Logger struct {
	logger       *slog.Logger
	out          io.WriteCloser
	traceEnabled bool
}

// Config contains logging information used to set up the logging framework
type Config struct {
	// Log Level.  One of: trace, debug, info, warn, error
	Level string
	// Path to the file to log into
	FilePath string
	// MaxSizeMB is the size a log file may reach before it is rotated.  Zero uses the lumberjack default of 100MB.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept.  Zero keeps them all.
	MaxBackups int
	// MaxAgeDays is how long rotated files are kept.  Zero disables age based removal.
	MaxAgeDays int
}

func New(config Config) (*Logger, error) {
	dir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	// Opening the file up front surfaces permission problems at startup rather than on the first write.
	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	_ = file.Close()

	out := &lumberjack.Logger{
		Filename:   config.FilePath,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAgeDays,
	}

	return newWithWriter(out, config.Level), nil
}

// NewDiscard returns a logger that drops everything.  Used by tests and tools that do not want a log file.
func NewDiscard() *Logger {
	return newWithWriter(nopCloser{io.Discard}, "error")
}

func newWithWriter(out io.WriteCloser, level string) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}

	return &Logger{
		logger:       slog.New(slog.NewJSONHandler(out, opts)).With("app", "kiri"),
		out:          out,
		traceEnabled: strings.EqualFold(level, "trace"),
	}
}

// Close the log file
func (l *Logger) Close() {
	if err := l.out.Close(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error closing logger: %v\n", err)
	}
}

// Debug logs a message a debug Level
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs a message at info Level
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a message at warn Level
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs a message at error Level.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// Slog exposes the underlying slog logger for libraries that accept one, such as the relay's request logger.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// parseLogLevel is a helper to convert a string log Level into the slog version.  Defaults to info if a matching log
// Level cannot be found.
func parseLogLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug", "trace":
		// Trace is handled by this package rather than slog
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
