// Package log provides structured logging utilities for poolsim.
// It wraps the standard library's slog package with simulation helpers.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with additional context and convenience methods
type Logger struct {
	*slog.Logger
	service string
	version string
}

// New creates a new logger writing to stdout
func New(service, version, level, format string) *Logger {
	return NewWithWriter(os.Stdout, service, version, level, format)
}

// NewWithWriter creates a new logger writing to w
func NewWithWriter(w io.Writer, service, version, level, format string) *Logger {
	logLevel := ParseLevel(level)

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	baseLogger := slog.New(handler).With(
		"service", service,
		"version", version,
	)

	return &Logger{
		Logger:  baseLogger,
		service: service,
		version: version,
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "test", "test", "error", "json")
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger:  l.With(fields...),
		service: l.service,
		version: l.version,
	}
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithExperiment returns a logger tagged with the experiment id and seed
func (l *Logger) WithExperiment(id string, seed uint64) *Logger {
	return l.WithFields("experiment_id", id, "seed", seed)
}

// WithPool returns a logger with pool-specific fields
func (l *Logger) WithPool(pool, scheme string) *Logger {
	return l.WithFields("pool", pool, "reward_scheme", scheme)
}

// WithMiner returns a logger with miner-specific fields
func (l *Logger) WithMiner(address, behaviour string) *Logger {
	return l.WithFields("miner_address", address, "behaviour", behaviour)
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields("error", err.Error())
}

// Simulation logging helpers

// LogBlockFound logs a block handled by a pool's reward scheme. The pool
// fields come from WithPool.
func (l *Logger) LogBlockFound(minerAddr string, sharesPerBlock uint64, seq uint64) {
	l.Debug("block found",
		"miner_address", minerAddr,
		"shares_per_block", sharesPerBlock,
		"share_seq", seq,
	)
}

// LogMigration logs a miner moving between pools
func (l *Logger) LogMigration(minerAddr, from, to string, seq uint64) {
	l.Info("miner migrated",
		"miner_address", minerAddr,
		"from_pool", from,
		"to_pool", to,
		"share_seq", seq,
	)
}

// LogProgress logs periodic run progress
func (l *Logger) LogProgress(processed, total, blocks uint64) {
	l.Info("simulation progress",
		"shares_processed", processed,
		"shares_total", total,
		"blocks", blocks,
	)
}

// LogRunSummary logs the outcome of a completed run
func (l *Logger) LogRunSummary(shares, blocks uint64, elapsed time.Duration) {
	rate := 0.0
	if elapsed > 0 {
		rate = float64(shares) / elapsed.Seconds()
	}
	l.Info("simulation finished",
		"shares", shares,
		"blocks", blocks,
		"duration_ms", float64(elapsed.Nanoseconds())/1e6,
		"shares_per_sec", rate,
	)
}

// LogExportFailure logs a failed export without aborting the run
func (l *Logger) LogExportFailure(backend, operation string, err error) {
	l.Warn("export failed",
		"backend", backend,
		"operation", operation,
		"error", err,
	)
}
