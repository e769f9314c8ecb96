// Package logging provides structured logging for docsync. It wraps Go's
// log/slog package with context-aware logging, correlation IDs and sync
// specific log helpers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// contextKey is used for storing logger-related values in context.
type contextKey string

const (
	// CorrelationIDKey is the context key for the per-invocation correlation ID.
	CorrelationIDKey contextKey = "correlation_id"
	// DirectionKey is the context key for the sync direction.
	DirectionKey contextKey = "direction"
	// SourceIDKey is the context key for the source document identifier.
	SourceIDKey contextKey = "source_id"
	// StateKey is the context key for the sync state machine state.
	StateKey contextKey = "state"
)

// Level represents log levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format represents log output formats.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// FileConfig configures rotating file output.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Config holds logging configuration.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	File       *FileConfig
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     os.Stderr,
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger.
type Logger struct {
	slogger *slog.Logger
	level   *slog.LevelVar
	closer  io.Closer
	mu      sync.Mutex
}

// New creates a new Logger with the provided configuration. When cfg.File
// is set, records are also written to a size-rotated log file.
func New(cfg Config) *Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var closer io.Closer
	if cfg.File != nil && cfg.File.Path != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		output = io.MultiWriter(output, rotating)
		closer = rotating
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		slogger: slog.New(handler),
		level:   level,
		closer:  closer,
	}
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return New(Config{Output: io.Discard, Level: LevelError})
}

// parseLevel converts a Level to slog.Level.
func parseLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel dynamically changes the log level.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(parseLevel(level))
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slogger: l.slogger.With(args...),
		level:   l.level,
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// DebugContext logs at debug level with context.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// InfoContext logs at info level with context.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// WarnContext logs at warn level with context.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// ErrorContext logs at error level with context.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// enrichArgs extracts context values and adds them as log attributes.
func (l *Logger) enrichArgs(ctx context.Context, args []any) []any {
	enriched := make([]any, 0, len(args)+8)

	for _, key := range []contextKey{CorrelationIDKey, DirectionKey, SourceIDKey, StateKey} {
		if v := ctx.Value(key); v != nil {
			enriched = append(enriched, string(key), v)
		}
	}

	return append(enriched, args...)
}

// Underlying returns the underlying slog.Logger.
func (l *Logger) Underlying() *slog.Logger {
	return l.slogger
}

// --- Context helpers ---

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithSync adds the direction and source of a sync invocation to the context.
func WithSync(ctx context.Context, direction, sourceID string) context.Context {
	ctx = context.WithValue(ctx, DirectionKey, direction)
	return context.WithValue(ctx, SourceIDKey, sourceID)
}

// WithState records the current state machine state in the context.
func WithState(ctx context.Context, state string) context.Context {
	return context.WithValue(ctx, StateKey, state)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if v := ctx.Value(CorrelationIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// --- Sync logging helpers ---

// LogSyncStart logs the start of a sync invocation.
func LogSyncStart(ctx context.Context, logger *Logger, direction, sourceID string) {
	logger.InfoContext(ctx, "sync started",
		"sync_direction", direction,
		"sync_source", sourceID,
	)
}

// LogSyncComplete logs a finished sync invocation.
func LogSyncComplete(ctx context.Context, logger *Logger, status, destinationID string, committed, total, warnings int, duration time.Duration) {
	logger.InfoContext(ctx, "sync completed",
		"status", status,
		"destination_id", destinationID,
		"committed", committed,
		"total", total,
		"warnings", warnings,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogSyncFailed logs a failed sync invocation.
func LogSyncFailed(ctx context.Context, logger *Logger, failedState string, err error, duration time.Duration) {
	logger.ErrorContext(ctx, "sync failed",
		"failed_state", failedState,
		"error", err.Error(),
		"duration_ms", duration.Milliseconds(),
	)
}

// LogStateEnter logs entry into a state machine state.
func LogStateEnter(ctx context.Context, logger *Logger, state string) {
	logger.DebugContext(ctx, "state entered", "entered", state)
}

// LogStateExit logs a state that finished successfully.
func LogStateExit(ctx context.Context, logger *Logger, state string, duration time.Duration) {
	logger.DebugContext(ctx, "state completed",
		"completed", state,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogWindowCommitted logs a destination window written successfully.
func LogWindowCommitted(ctx context.Context, logger *Logger, start, end, total int) {
	logger.DebugContext(ctx, "window committed",
		"start", start,
		"end", end,
		"total", total,
	)
}

// LogConversionWarning logs a fidelity warning raised during conversion.
func LogConversionWarning(ctx context.Context, logger *Logger, code, blockType, message string) {
	logger.WarnContext(ctx, "conversion warning",
		"warning_code", code,
		"block_type", blockType,
		"message", message,
	)
}
