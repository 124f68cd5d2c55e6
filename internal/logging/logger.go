// Package logging provides structured logging for fleetrun.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// LogFormat represents the output format for logs.
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Config holds logging configuration.
type Config struct {
	Debug  bool      // If true, emit per-event debug lines
	Format LogFormat // Output format (json or text)
	Output io.Writer // Output destination (defaults to stderr)
	Quiet  bool      // If true, suppress non-error output
}

// Logger wraps slog.Logger. All writes through one Logger are serialized so
// debug lines never interleave with each other mid-line.
type Logger struct {
	logger *slog.Logger
	config Config
	mu     sync.Mutex
}

// NewLogger creates a logger. Session events (connect, reconnect, close) are
// logged at debug level and only shown when the debug flag is set.
func NewLogger(config Config) *Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	level := slog.LevelInfo
	if config.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &Logger{
		logger: slog.New(handler),
		config: config,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Debug(msg, args...)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) {
	if l.config.Quiet {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Info(msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Error(msg, args...)
}

// LogConnect logs a successful connection. Passwords are never logged.
func (l *Logger) LogConnect(host string, port int, jump bool, duration time.Duration) {
	l.Debug("connection established",
		"host", host,
		"port", port,
		"jump", jump,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogConnectError logs a failed connection attempt.
func (l *Logger) LogConnectError(host string, port int, err error) {
	l.Debug("connection failed",
		"host", host,
		"port", port,
		"error", err.Error(),
	)
}

// LogReconnect logs a reconnect attempt after a dropped connection.
func (l *Logger) LogReconnect(host string, success bool) {
	l.Debug("reconnecting after dropped connection",
		"host", host,
		"success", success,
	)
}

// LogClose logs a session close.
func (l *Logger) LogClose(host string) {
	l.Debug("session closed", "host", host)
}

// LogDispatch logs the start of a fan-out run.
func (l *Logger) LogDispatch(targets, workers, commands int) {
	l.Info("dispatching targets",
		"targets", targets,
		"workers", workers,
		"commands", commands,
	)
}

// LogRunComplete logs the completion of a fan-out run.
func (l *Logger) LogRunComplete(targets, failed int, duration time.Duration) {
	l.Info("run complete",
		"targets", targets,
		"failed", failed,
		"duration_ms", duration.Milliseconds(),
	)
}
