// Package logger provides leveled logging for the whole tool. Messages go to
// stderr through a tint console handler and, when a log file is configured,
// to a plain text handler writing the same records without colour codes.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// DEBUG level for detailed diagnostic information (verbose mode only)
	DEBUG LogLevel = iota
	// INFO level for general informational messages
	INFO
	// WARNING level for potentially problematic situations
	WARNING
	// ERROR level for error events that might still allow the session to continue
	ERROR
)

// Logger fans every record out to one or more slog loggers and filters
// messages below the configured level.
type Logger struct {
	level      LogLevel
	fileWriter io.WriteCloser
	sinks      []*slog.Logger
}

var (
	// globalLogger is the singleton logger instance used throughout the application
	globalLogger *Logger
)

// SetupLogging initializes the global logger.
//
// Parameters:
//   - verbose: If true, enables DEBUG level logging
//   - logFile: If non-empty, records are appended to this file as well as stderr
//
// Colour is only used when stderr is a terminal. Returns an error if the log
// file cannot be opened.
func SetupLogging(verbose bool, logFile string) error {
	level := INFO
	if verbose {
		level = DEBUG
	}

	var console io.Writer = os.Stderr
	color := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if color {
		console = colorable.NewColorable(os.Stderr)
	}

	var fileWriter io.WriteCloser
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		fileWriter = f
	}

	globalLogger = newLogger(level, console, !color, fileWriter)
	return nil
}

// newLogger builds a Logger writing to console and, if non-nil, to file.
func newLogger(level LogLevel, console io.Writer, noColor bool, file io.WriteCloser) *Logger {
	slogLevel := toSlogLevel(level)
	sinks := []*slog.Logger{
		slog.New(tint.NewHandler(console, &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
			NoColor:    noColor,
		})),
	}
	if file != nil {
		sinks = append(sinks, slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: slogLevel})))
	}
	return &Logger{level: level, fileWriter: file, sinks: sinks}
}

// Close closes the log file if one was opened. Safe to call repeatedly.
func Close() error {
	if globalLogger != nil && globalLogger.fileWriter != nil {
		err := globalLogger.fileWriter.Close()
		globalLogger.fileWriter = nil
		globalLogger.sinks = globalLogger.sinks[:1]
		return err
	}
	return nil
}

// Debug logs a debug-level message (only shown in verbose mode).
func Debug(format string, args ...interface{}) {
	logMessage(DEBUG, format, args...)
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	logMessage(INFO, format, args...)
}

// Warning logs a warning message.
// Warnings cover skipped candidates and strategies that failed but were
// followed by another one.
func Warning(format string, args ...interface{}) {
	logMessage(WARNING, format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	logMessage(ERROR, format, args...)
}

// LogAttempt records the outcome of one deletion strategy with structured
// attributes so log files can be filtered by strategy.
func LogAttempt(strategy string, err error) {
	if globalLogger == nil {
		return
	}
	if err == nil {
		globalLogger.emit(INFO, "deletion attempt succeeded", slog.String("strategy", strategy))
		return
	}
	globalLogger.emit(WARNING, "deletion attempt failed",
		slog.String("strategy", strategy),
		slog.String("reason", err.Error()))
}

// LogSkipped records an owner the release planner refused to touch.
func LogSkipped(pid int, name string, reason string) {
	if globalLogger == nil {
		return
	}
	globalLogger.emit(WARNING, "owner skipped",
		slog.Int("pid", pid),
		slog.String("process", name),
		slog.String("reason", reason))
}

// logMessage formats and dispatches a printf-style message. If the logger
// is not initialized it falls back to the standard log package.
func logMessage(level LogLevel, format string, args ...interface{}) {
	if globalLogger == nil {
		log.Printf(format, args...)
		return
	}
	if level < globalLogger.level {
		return
	}
	globalLogger.emit(level, fmt.Sprintf(format, args...))
}

func (l *Logger) emit(level LogLevel, msg string, attrs ...slog.Attr) {
	if level < l.level {
		return
	}
	for _, sink := range l.sinks {
		sink.LogAttrs(context.Background(), toSlogLevel(level), msg, attrs...)
	}
}

// toSlogLevel maps a LogLevel onto the slog level scale.
func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case DEBUG:
		return slog.LevelDebug
	case INFO:
		return slog.LevelInfo
	case WARNING:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// levelToString converts a LogLevel to its string representation.
func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// String returns the name of the level.
func (l LogLevel) String() string {
	return levelToString(l)
}
